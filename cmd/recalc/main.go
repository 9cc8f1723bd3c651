// Package main is the admin recalculation tool. It refreshes a period's
// stocktake figures from the movement ledger, optionally reseeding opening
// balances from the prior period's snapshots first.
//
// Without -apply it is a dry run: figures are recomputed in memory and the
// differences printed, nothing is persisted. Applied runs are recorded in
// the recalc run ledger so an identical rerun replays the stored summary
// instead of executing twice.
//
// Usage:
//
//	recalc -hotel <uuid> -period <YYYY-MM> [-reseed-openings] [-apply]
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"stockbook/internal/core/id"
	"stockbook/internal/domain/alerts"
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/internal/domain/documents/stocktake"
	"stockbook/internal/domain/periods"
	"stockbook/internal/domain/registers/movement"
	"stockbook/internal/domain/registers/snapshot"
	"stockbook/internal/domain/rollover"
	"stockbook/internal/infrastructure/cache"
	"stockbook/internal/infrastructure/numerator"
	"stockbook/internal/infrastructure/storage/postgres"
	"stockbook/internal/infrastructure/storage/postgres/catalog_repo"
	"stockbook/internal/infrastructure/storage/postgres/document_repo"
	"stockbook/internal/infrastructure/storage/postgres/period_repo"
	"stockbook/internal/infrastructure/storage/postgres/register_repo"
	"stockbook/pkg/logger"
)

const runTTL = 7 * 24 * time.Hour

type runSummary struct {
	StocktakeNumber  string `json:"stocktakeNumber"`
	Lines            int    `json:"lines"`
	Alerts           int    `json:"alerts"`
	TotalVariance    string `json:"totalVariance"`
	ReseededOpenings bool   `json:"reseededOpenings"`
}

func main() {
	hotelFlag := flag.String("hotel", "", "hotel id (uuid)")
	periodFlag := flag.String("period", "", "period month, YYYY-MM")
	reseed := flag.Bool("reseed-openings", false, "reseed opening balances from the prior period's snapshots")
	apply := flag.Bool("apply", false, "persist the recalculated figures (default is a dry run)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Printf("no .env file loaded: %v\n", err)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	hotelID, err := id.Parse(*hotelFlag)
	if err != nil {
		logger.Fatal(ctx, "invalid -hotel flag", "value", *hotelFlag, "error", err)
	}

	monthStart, err := time.Parse("2006-01", *periodFlag)
	if err != nil {
		logger.Fatal(ctx, "invalid -period flag, want YYYY-MM", "value", *periodFlag, "error", err)
	}
	start := time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal(ctx, "DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	hotelRepo := catalog_repo.NewHotelRepo(txm)
	itemRepo := catalog_repo.NewItemRepo(txm)
	periodRepo := period_repo.NewPeriodRepo(txm)
	stocktakeRepo := document_repo.NewStocktakeRepo(txm)
	movementRepo := register_repo.NewMovementRepo(txm)
	snapshotRepo := register_repo.NewSnapshotRepo(txm)

	publisher := postgres.NewOutboxPublisher(txm)
	configProvider := cache.NewHotelConfigCache(hotel.NewService(hotelRepo, txm), cache.DefaultConfigTTL)

	alertEngine, err := alerts.NewEngine()
	if err != nil {
		logger.Fatal(ctx, "failed to create alert engine", "error", err)
	}
	auditService, err := postgres.NewAuditService(txm)
	if err != nil {
		logger.Fatal(ctx, "failed to create audit service", "error", err)
	}

	movementService := movement.NewService(movementRepo, itemRepo, periodRepo, configProvider, txm, publisher)
	snapshotService := snapshot.NewService(snapshotRepo)
	seeder := rollover.NewSeeder(periodRepo, snapshotRepo, publisher)

	stocktakeService := stocktake.NewService(
		stocktakeRepo, itemRepo, periodRepo,
		movementService, snapshotService, seeder,
		configProvider, alertEngine, numerator.New(pool),
		txm, publisher, auditService,
	)

	p, err := periodRepo.FindByDateRange(ctx, hotelID, start, end)
	if err != nil {
		logger.Fatal(ctx, "failed to look up period", "error", err)
	}
	if p == nil {
		logger.Fatal(ctx, "no period found", "hotel_id", hotelID, "period", *periodFlag)
	}

	found, err := stocktakeRepo.FindByDateRange(ctx, hotelID, p.StartDate, p.EndDate)
	if err != nil {
		logger.Fatal(ctx, "failed to look up stocktake", "error", err)
	}
	if found == nil {
		logger.Fatal(ctx, "no stocktake exists for period", "period", p.Label())
	}

	doc, err := stocktakeService.GetByID(ctx, found.ID)
	if err != nil {
		logger.Fatal(ctx, "failed to load stocktake", "error", err)
	}

	if doc.IsApproved() {
		logger.Fatal(ctx, "stocktake is approved; its figures are frozen",
			"number", doc.Number, "period", p.Label())
	}

	if !*apply {
		if err := dryRun(ctx, movementService, p, doc); err != nil {
			logger.Fatal(ctx, "dry run failed", "error", err)
		}
		return
	}

	runs := postgres.NewJobRunStore(txm, runTTL)
	runKey := fmt.Sprintf("recalc:%s:%s", hotelID, *periodFlag)
	paramsHash := hashParams(hotelID.String(), *periodFlag, strconv.FormatBool(*reseed))

	prev, err := runs.Begin(ctx, runKey, "recalc", &hotelID, paramsHash)
	if err != nil {
		logger.Fatal(ctx, "failed to claim run", "run_key", runKey, "error", err)
	}
	if prev != nil {
		var s runSummary
		if err := json.Unmarshal(prev, &s); err == nil {
			fmt.Printf("identical run already completed: %s, %d lines, %d alerts, variance %s\n",
				s.StocktakeNumber, s.Lines, s.Alerts, s.TotalVariance)
		} else {
			fmt.Printf("identical run already completed: %s\n", string(prev))
		}
		return
	}

	summary, err := applyRun(ctx, txm, itemRepo, stocktakeRepo, stocktakeService, seeder, p, doc, *reseed)
	if err != nil {
		if failErr := runs.Fail(ctx, runKey, err); failErr != nil {
			logger.Error(ctx, "failed to record run failure", "error", failErr)
		}
		logger.Fatal(ctx, "recalculation failed", "error", err)
	}

	if err := runs.Complete(ctx, runKey, summary); err != nil {
		logger.Error(ctx, "failed to record run completion", "error", err)
	}

	fmt.Printf("recalculated %s: %d lines, %d alerts, variance %s\n",
		summary.StocktakeNumber, summary.Lines, summary.Alerts, summary.TotalVariance)
}

// dryRun recomputes every line in memory from fresh ledger totals and
// prints the lines whose variance would change. Nothing is persisted.
func dryRun(ctx context.Context, movements *movement.Service, p *periods.Period, doc *stocktake.Stocktake) error {
	totals, err := movements.Aggregate(ctx, p)
	if err != nil {
		return err
	}

	fmt.Printf("dry run for %s (%s), %d lines\n\n", doc.Number, p.Label(), len(doc.Lines))

	changed := 0
	for i := range doc.Lines {
		line := doc.Lines[i] // copy, the stored line stays untouched
		t := totals[line.ItemID]
		line.Purchases = t.Purchases
		line.Sales = t.Sales
		line.Waste = t.Waste
		line.TransfersIn = t.TransfersIn
		line.TransfersOut = t.TransfersOut
		line.Adjustments = t.Adjustments

		if err := line.Compute(); err != nil {
			fmt.Printf("  %-16s cannot compute: %v\n", line.ItemSKU, err)
			continue
		}

		if line.VarianceQty.Equal(doc.Lines[i].VarianceQty) &&
			line.VarianceValue.Equal(doc.Lines[i].VarianceValue) {
			continue
		}
		changed++
		fmt.Printf("  %-16s variance %s -> %s (value %s -> %s)\n",
			line.ItemSKU,
			doc.Lines[i].VarianceQty, line.VarianceQty,
			doc.Lines[i].VarianceValue, line.VarianceValue,
		)
	}

	if changed == 0 {
		fmt.Println("  all lines already match the ledger")
	} else {
		fmt.Printf("\n%d of %d lines would change; rerun with -apply to persist\n", changed, len(doc.Lines))
	}
	return nil
}

func applyRun(
	ctx context.Context,
	txm *postgres.TxManager,
	itemRepo *catalog_repo.ItemRepo,
	stocktakeRepo *document_repo.StocktakeRepo,
	stocktakeService *stocktake.Service,
	seeder *rollover.Seeder,
	p *periods.Period,
	doc *stocktake.Stocktake,
	reseed bool,
) (*runSummary, error) {
	if reseed {
		err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
			items, err := itemRepo.FindActive(ctx)
			if err != nil {
				return err
			}
			res, err := seeder.SeedOpenings(ctx, p, items)
			if err != nil {
				return err
			}
			for i := range doc.Lines {
				if op, ok := res.Openings[doc.Lines[i].ItemID]; ok {
					doc.Lines[i].OpeningQty = op.Qty
					doc.Lines[i].OpeningMissingSnapshot = op.MissingSnapshot
				}
			}
			return stocktakeRepo.SaveLines(ctx, doc.ID, doc.Lines)
		})
		if err != nil {
			return nil, fmt.Errorf("reseed openings: %w", err)
		}
		logger.Info(ctx, "openings reseeded", "stocktake", doc.Number, "lines", len(doc.Lines))
	}

	result, err := stocktakeService.Recalculate(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	return &runSummary{
		StocktakeNumber:  doc.Number,
		Lines:            len(result.Lines),
		Alerts:           len(result.Alerts),
		TotalVariance:    result.TotalVarianceValue.String(),
		ReseededOpenings: reseed,
	}, nil
}

func hashParams(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
