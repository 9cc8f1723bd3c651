// Package alerts evaluates per-hotel variance and low-stock rules against
// computed stocktake lines. Rules are CEL expressions configured on the
// hotel; programs are compiled once and cached. Figures cross the rule
// boundary as float64 and never feed back into stored ledger math.
package alerts

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"stockbook/internal/core/apperror"
	"stockbook/internal/domain/catalogs/hotel"
)

// Alert is one triggered rule on one line.
type Alert struct {
	Rule     string `json:"rule"`
	ItemSKU  string `json:"itemSku"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// LineFacts is the variable set a rule expression sees for one line.
type LineFacts struct {
	SKU         string
	Name        string
	Category    string
	Subcategory string

	Opening       float64
	Expected      float64
	Counted       float64
	Variance      float64
	VarianceValue float64
	Physical      float64
}

// Engine compiles and evaluates alert rules.
type Engine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEngine creates an alert engine with the line variable environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("sku", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("subcategory", cel.StringType),
		cel.Variable("opening", cel.DoubleType),
		cel.Variable("expected", cel.DoubleType),
		cel.Variable("counted", cel.DoubleType),
		cel.Variable("variance", cel.DoubleType),
		cel.Variable("variance_value", cel.DoubleType),
		cel.Variable("physical", cel.DoubleType),
		cel.Variable("low_stock_physical", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}
	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// program returns the compiled program for an expression, compiling and
// caching on first use. An expression that does not compile or does not
// yield a boolean is a configuration error, never a silent skip.
func (e *Engine) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewConfiguration("alert rule expression does not compile").
			WithDetail("expression", expression).
			WithCause(issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, apperror.NewConfiguration("alert rule expression must yield a boolean").
			WithDetail("expression", expression).
			WithDetail("output_type", ast.OutputType().String())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, apperror.NewConfiguration("alert rule expression cannot be planned").
			WithDetail("expression", expression).
			WithCause(err)
	}

	e.mu.Lock()
	e.programs[expression] = prg
	e.mu.Unlock()
	return prg, nil
}

// ValidateRules compiles every rule, surfacing bad expressions at
// configuration time instead of mid-stocktake.
func (e *Engine) ValidateRules(rules []hotel.AlertRule) error {
	for _, rule := range rules {
		if _, err := e.program(rule.Expression); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("rule", rule.Name)
			}
			return err
		}
	}
	return nil
}

// Evaluate runs the hotel's rules over every line and collects triggered
// alerts.
func (e *Engine) Evaluate(cfg hotel.Config, lines []LineFacts) ([]Alert, error) {
	if len(cfg.AlertRules) == 0 || len(lines) == 0 {
		return nil, nil
	}

	lowStock := cfg.LowStockPhysical.InexactFloat64()

	var alerts []Alert
	for _, rule := range cfg.AlertRules {
		prg, err := e.program(rule.Expression)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("rule", rule.Name)
			}
			return nil, err
		}

		for _, line := range lines {
			out, _, err := prg.Eval(map[string]any{
				"sku":                line.SKU,
				"name":               line.Name,
				"category":           line.Category,
				"subcategory":        line.Subcategory,
				"opening":            line.Opening,
				"expected":           line.Expected,
				"counted":            line.Counted,
				"variance":           line.Variance,
				"variance_value":     line.VarianceValue,
				"physical":           line.Physical,
				"low_stock_physical": lowStock,
			})
			if err != nil {
				return nil, apperror.NewConfiguration("alert rule evaluation failed").
					WithDetail("rule", rule.Name).
					WithDetail("item_sku", line.SKU).
					WithCause(err)
			}

			triggered, ok := out.Value().(bool)
			if !ok {
				return nil, apperror.NewConfiguration("alert rule did not yield a boolean").
					WithDetail("rule", rule.Name)
			}
			if !triggered {
				continue
			}

			severity := rule.Severity
			if severity == "" {
				severity = "warning"
			}
			alerts = append(alerts, Alert{
				Rule:     rule.Name,
				ItemSKU:  line.SKU,
				Severity: severity,
				Message:  rule.Message,
			})
		}
	}
	return alerts, nil
}
