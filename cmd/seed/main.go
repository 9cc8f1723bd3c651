// Package main seeds the database with demo data: one hotel with its
// default configuration, suppliers, a uom-valid item set across every
// category, and the current month's open period with an initialized
// stocktake. Safe to rerun: every insert is idempotent.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"stockbook/internal/core/id"
	"stockbook/internal/domain/alerts"
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/internal/domain/documents/stocktake"
	"stockbook/internal/domain/periods"
	"stockbook/internal/domain/registers/movement"
	"stockbook/internal/domain/registers/snapshot"
	"stockbook/internal/domain/rollover"
	"stockbook/internal/domain/uom"
	"stockbook/internal/infrastructure/cache"
	"stockbook/internal/infrastructure/numerator"
	"stockbook/internal/infrastructure/storage/postgres"
	"stockbook/internal/infrastructure/storage/postgres/catalog_repo"
	"stockbook/internal/infrastructure/storage/postgres/document_repo"
	"stockbook/internal/infrastructure/storage/postgres/period_repo"
	"stockbook/internal/infrastructure/storage/postgres/register_repo"
	"stockbook/pkg/logger"
)

func main() {
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

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal(ctx, "DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	logger.Info(ctx, "connected to database")

	hotelID, err := seedHotel(ctx, pool)
	if err != nil {
		logger.Fatal(ctx, "failed to seed hotel", "error", err)
	}

	supplierIDs, err := seedSuppliers(ctx, pool)
	if err != nil {
		logger.Fatal(ctx, "failed to seed suppliers", "error", err)
	}

	if err := seedItems(ctx, pool, supplierIDs); err != nil {
		logger.Fatal(ctx, "failed to seed items", "error", err)
	}

	if err := seedPeriodWithStocktake(ctx, pool, hotelID); err != nil {
		logger.Fatal(ctx, "failed to seed period", "error", err)
	}

	logger.Info(ctx, "seeding completed successfully")
}

func seedHotel(ctx context.Context, pool *postgres.Pool) (id.ID, error) {
	const code = "HTL-DEMO"

	hotelID := id.New()
	tag, err := pool.Exec(ctx, `
		INSERT INTO cat_hotels (id, code, name, timezone, currency, config, version, deletion_mark, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, 1, false, '{}')
		ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
	`, hotelID, code, "Harbour View Hotel", "Europe/Dublin", "EUR", hotel.DefaultConfig())
	if err != nil {
		return id.Nil(), fmt.Errorf("insert hotel: %w", err)
	}

	if tag.RowsAffected() == 0 {
		err = pool.QueryRow(ctx, `
			SELECT id FROM cat_hotels WHERE code = $1 AND deletion_mark = FALSE
		`, code).Scan(&hotelID)
		if err != nil {
			return id.Nil(), fmt.Errorf("fetch existing hotel: %w", err)
		}
		logger.Info(ctx, "hotel already exists", "code", code, "hotel_id", hotelID)
		return hotelID, nil
	}

	logger.Info(ctx, "hotel created", "code", code, "hotel_id", hotelID)
	return hotelID, nil
}

func seedSuppliers(ctx context.Context, pool *postgres.Pool) (map[string]id.ID, error) {
	suppliers := []struct {
		code    string
		name    string
		email   string
		contact string
	}{
		{"SUP-001", "Celtic Brewing Supplies", "orders@celticbrewing.example", "Aoife Murphy"},
		{"SUP-002", "Emerald Wines & Spirits", "sales@emeraldws.example", "Declan Byrne"},
		{"SUP-003", "Shamrock Soft Drinks", "accounts@shamrocksd.example", "Niamh Kelly"},
	}

	ids := make(map[string]id.ID, len(suppliers))
	for _, s := range suppliers {
		supplierID := id.New()
		tag, err := pool.Exec(ctx, `
			INSERT INTO cat_suppliers (id, code, name, email, contact_person, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, $5, 1, false, '{}')
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, supplierID, s.code, s.name, s.email, s.contact)
		if err != nil {
			return nil, fmt.Errorf("insert supplier %s: %w", s.code, err)
		}

		if tag.RowsAffected() == 0 {
			err = pool.QueryRow(ctx, `
				SELECT id FROM cat_suppliers WHERE code = $1 AND deletion_mark = FALSE
			`, s.code).Scan(&supplierID)
			if err != nil {
				return nil, fmt.Errorf("fetch existing supplier %s: %w", s.code, err)
			}
		}
		ids[s.code] = supplierID
	}

	logger.Info(ctx, "suppliers seeded", "count", len(suppliers))
	return ids, nil
}

func seedItems(ctx context.Context, pool *postgres.Pool, suppliers map[string]id.ID) error {
	// One item per unit-of-measure rule: factor means pints per keg for
	// draught, bottles per case for bottled and cased minerals, servings
	// per bottle for spirits and wine, ml per container for syrup-likes.
	items := []struct {
		sku         string
		name        string
		category    uom.Category
		subcategory uom.Subcategory
		unitCost    string
		uomFactor   string
		supplier    string
	}{
		{"DR-GUIN-50L", "Guinness 50L Keg", uom.CategoryDraught, uom.SubcategoryNone, "138.00", "88", "SUP-001"},
		{"DR-HEIN-50L", "Heineken 50L Keg", uom.CategoryDraught, uom.SubcategoryNone, "142.50", "88", "SUP-001"},
		{"BT-CORONA-12", "Corona Case 12x330ml", uom.CategoryBottled, uom.SubcategoryNone, "14.40", "12", "SUP-001"},
		{"SP-JAMESON-70", "Jameson 70cl", uom.CategorySpirits, uom.SubcategoryNone, "22.40", "28", "SUP-002"},
		{"WN-HOUSE-RED", "House Red 75cl", uom.CategoryWine, uom.SubcategoryNone, "7.50", "5", "SUP-002"},
		{"MN-COKE-24", "Coca-Cola Case 24x200ml", uom.CategoryMinerals, uom.SubcategorySoftDrinks, "9.60", "24", "SUP-003"},
		{"MN-JUICE-12", "Orange Juice Case 12x200ml", uom.CategoryMinerals, uom.SubcategoryJuices, "6.00", "12", "SUP-003"},
		{"MN-CORDIAL-12", "Blackcurrant Cordial Case 12", uom.CategoryMinerals, uom.SubcategoryCordials, "13.20", "12", "SUP-003"},
		{"MN-SYRUP-ORA", "Orange Syrup 5L", uom.CategoryMinerals, uom.SubcategorySyrups, "12.15", "5000", "SUP-003"},
		{"MN-BIB-COLA", "Cola Bag-in-Box 10L", uom.CategoryMinerals, uom.SubcategoryBagInBox, "38.00", "10000", "SUP-003"},
		{"MN-BULK-OJ", "Bulk Orange Juice 10L", uom.CategoryMinerals, uom.SubcategoryBulkJuices, "21.00", "10000", "SUP-003"},
	}

	for _, it := range items {
		if err := uom.ValidatePair(it.category, it.subcategory); err != nil {
			return fmt.Errorf("item %s: %w", it.sku, err)
		}

		cost, err := decimal.NewFromString(it.unitCost)
		if err != nil {
			return fmt.Errorf("item %s cost: %w", it.sku, err)
		}
		factor, err := decimal.NewFromString(it.uomFactor)
		if err != nil {
			return fmt.Errorf("item %s factor: %w", it.sku, err)
		}

		var supplierID any
		if sid, ok := suppliers[it.supplier]; ok {
			supplierID = sid
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO cat_items (id, code, name, category, subcategory, unit_cost, uom_factor, supplier_id, active, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, 1, false, '{}')
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, id.New(), it.sku, it.name, it.category, it.subcategory, cost, factor, supplierID)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", it.sku, err)
		}
	}

	logger.Info(ctx, "items seeded", "count", len(items))
	return nil
}

// seedPeriodWithStocktake wires the full service graph and initializes the
// current month's period and draft stocktake through the same code paths
// production uses.
func seedPeriodWithStocktake(ctx context.Context, pool *postgres.Pool, hotelID id.ID) error {
	txm := postgres.NewTxManager(pool)

	hotelRepo := catalog_repo.NewHotelRepo(txm)
	itemRepo := catalog_repo.NewItemRepo(txm)
	periodRepo := period_repo.NewPeriodRepo(txm)
	stocktakeRepo := document_repo.NewStocktakeRepo(txm)
	movementRepo := register_repo.NewMovementRepo(txm)
	snapshotRepo := register_repo.NewSnapshotRepo(txm)

	publisher := postgres.NewOutboxPublisher(txm)

	hotelService := hotel.NewService(hotelRepo, txm)
	configProvider := cache.NewHotelConfigCache(hotelService, cache.DefaultConfigTTL)

	alertEngine, err := alerts.NewEngine()
	if err != nil {
		return fmt.Errorf("create alert engine: %w", err)
	}

	auditService, err := postgres.NewAuditService(txm)
	if err != nil {
		return fmt.Errorf("create audit service: %w", err)
	}

	movementService := movement.NewService(movementRepo, itemRepo, periodRepo, configProvider, txm, publisher)
	snapshotService := snapshot.NewService(snapshotRepo)
	seeder := rollover.NewSeeder(periodRepo, snapshotRepo, publisher)

	periodManager := periods.NewManager(periodRepo, txm, publisher)
	stocktakeService := stocktake.NewService(
		stocktakeRepo, itemRepo, periodRepo,
		movementService, snapshotService, seeder,
		configProvider, alertEngine, numerator.New(pool),
		txm, publisher, auditService,
	)
	periodManager.AttachStocktakeGateway(stocktakeService)

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	p, err := periodManager.FindByDateRange(ctx, hotelID, start, end)
	if err != nil {
		return err
	}
	if p == nil {
		p, err = periodManager.Create(ctx, hotelID, start, end, periods.TypeMonthly)
		if err != nil {
			return fmt.Errorf("create period: %w", err)
		}
	}

	existing, err := stocktakeRepo.FindByDateRange(ctx, hotelID, p.StartDate, p.EndDate)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info(ctx, "stocktake already initialized", "number", existing.Number)
		return nil
	}

	result, err := stocktakeService.InitializeForPeriod(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("initialize stocktake: %w", err)
	}

	logger.Info(ctx, "period and stocktake seeded",
		"period", p.Label(),
		"stocktake", result.Stocktake.Number,
		"lines", len(result.Stocktake.Lines),
		"warnings", len(result.Warnings),
	)
	return nil
}
