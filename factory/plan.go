/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON compensation plan documents into engine.Config values.
  This enables plan changes without code changes - operations staff can
  define rates, tiers, and reconciliation thresholds in JSON, and the
  factory builds the proper Go structs with validation and defaults.

WHY JSON?
  - Non-developers can modify plans
  - Easy integration with admin tooling
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "standard-2025",
    "name": "Standard Commission Plan 2025",
    "calculation": {
      "default_rate": "0.1500",
      "minimum_amount": "10.00",
      "maximum_amount": "10000.00",
      "tiers": [
        {"up_to": "1000.00", "rate": "0.10"},
        {"up_to": "5000.00", "rate": "0.15"},
        {"rate": "0.20"}
      ]
    },
    "reconciliation": {
      "auto_approve_limit": "1000.00",
      "auto_pay_after_days": 7,
      "stuck_payment_age_days": 1,
      "retry_after_days": 7,
      "retry_ceiling": "10000.00",
      "renewal_notice_days": 30
    }
  }

KEY RULES:
  - Every omitted field falls back to the engine default
  - Amounts and rates are JSON strings, parsed as decimals - never floats
  - Tiers must ascend strictly and the final tier must be open-ended
    (no "up_to"), so every premium lands in exactly one bracket

USAGE:
  factory := NewPlanFactory()
  cfg, err := factory.ParsePlan(jsonString)

SEE ALSO:
  - engine/config.go: Config type definitions and defaults
  - engine/calculator.go: How tiers are consumed
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/commission-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a compensation plan.
type PlanJSON struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Calculation    *CalculationJSON    `json:"calculation,omitempty"`
	Reconciliation *ReconciliationJSON `json:"reconciliation,omitempty"`
}

// CalculationJSON carries the calculation thresholds as decimal strings.
type CalculationJSON struct {
	DefaultRate   string     `json:"default_rate,omitempty"`
	MinimumAmount string     `json:"minimum_amount,omitempty"`
	MaximumAmount string     `json:"maximum_amount,omitempty"` // "0" disables the ceiling
	Tiers         []TierJSON `json:"tiers,omitempty"`
}

// TierJSON is one tiered-calculation bracket. An absent up_to marks the
// open-ended top bracket.
type TierJSON struct {
	UpTo string `json:"up_to,omitempty"`
	Rate string `json:"rate"`
}

// ReconciliationJSON carries the batch-operation thresholds.
type ReconciliationJSON struct {
	AutoApproveLimit    string `json:"auto_approve_limit,omitempty"`
	AutoPayAfterDays    *int   `json:"auto_pay_after_days,omitempty"`
	StuckPaymentAgeDays *int   `json:"stuck_payment_age_days,omitempty"`
	RetryAfterDays      *int   `json:"retry_after_days,omitempty"`
	RetryCeiling        string `json:"retry_ceiling,omitempty"`
	RenewalNoticeDays   *int   `json:"renewal_notice_days,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to engine configuration.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into an engine.Config.
func (f *PlanFactory) ParsePlan(jsonStr string) (engine.Config, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return engine.Config{}, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to engine.Config, applying engine defaults for
// every omitted field and validating the result.
func (f *PlanFactory) FromJSON(pj PlanJSON) (engine.Config, error) {
	cfg := engine.DefaultConfig()

	if pj.Calculation != nil {
		if err := applyCalculation(&cfg.Calculation, *pj.Calculation); err != nil {
			return engine.Config{}, err
		}
	}
	if pj.Reconciliation != nil {
		if err := applyReconciliation(&cfg.Reconciler, *pj.Reconciliation); err != nil {
			return engine.Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// ToJSON converts an engine.Config back to its JSON representation.
func (f *PlanFactory) ToJSON(id, name string, cfg engine.Config) PlanJSON {
	calc := &CalculationJSON{
		DefaultRate:   cfg.Calculation.DefaultRate.String(),
		MinimumAmount: cfg.Calculation.MinimumAmount.String(),
		MaximumAmount: cfg.Calculation.MaximumAmount.String(),
	}
	for _, tier := range cfg.Calculation.Tiers {
		tj := TierJSON{Rate: tier.Rate.String()}
		if !tier.Open() {
			tj.UpTo = tier.UpTo.String()
		}
		calc.Tiers = append(calc.Tiers, tj)
	}

	rec := cfg.Reconciler
	return PlanJSON{
		ID:          id,
		Name:        name,
		Calculation: calc,
		Reconciliation: &ReconciliationJSON{
			AutoApproveLimit:    rec.AutoApproveLimit.String(),
			AutoPayAfterDays:    &rec.AutoPayAfterDays,
			StuckPaymentAgeDays: &rec.StuckPaymentAgeDays,
			RetryAfterDays:      &rec.RetryAfterDays,
			RetryCeiling:        rec.RetryCeiling.String(),
			RenewalNoticeDays:   &rec.RenewalNoticeDays,
		},
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func applyCalculation(cfg *engine.CalculationConfig, cj CalculationJSON) error {
	var err error
	if cj.DefaultRate != "" {
		if cfg.DefaultRate, err = parseDecimalField("default_rate", cj.DefaultRate); err != nil {
			return err
		}
	}
	if cj.MinimumAmount != "" {
		if cfg.MinimumAmount, err = parseDecimalField("minimum_amount", cj.MinimumAmount); err != nil {
			return err
		}
	}
	if cj.MaximumAmount != "" {
		if cfg.MaximumAmount, err = parseDecimalField("maximum_amount", cj.MaximumAmount); err != nil {
			return err
		}
	}
	if len(cj.Tiers) > 0 {
		tiers, err := parseTiers(cj.Tiers)
		if err != nil {
			return err
		}
		cfg.Tiers = tiers
	}
	return nil
}

func applyReconciliation(cfg *engine.ReconcilerConfig, rj ReconciliationJSON) error {
	var err error
	if rj.AutoApproveLimit != "" {
		if cfg.AutoApproveLimit, err = parseDecimalField("auto_approve_limit", rj.AutoApproveLimit); err != nil {
			return err
		}
	}
	if rj.RetryCeiling != "" {
		if cfg.RetryCeiling, err = parseDecimalField("retry_ceiling", rj.RetryCeiling); err != nil {
			return err
		}
	}
	if rj.AutoPayAfterDays != nil {
		cfg.AutoPayAfterDays = *rj.AutoPayAfterDays
	}
	if rj.StuckPaymentAgeDays != nil {
		cfg.StuckPaymentAgeDays = *rj.StuckPaymentAgeDays
	}
	if rj.RetryAfterDays != nil {
		cfg.RetryAfterDays = *rj.RetryAfterDays
	}
	if rj.RenewalNoticeDays != nil {
		cfg.RenewalNoticeDays = *rj.RenewalNoticeDays
	}
	return nil
}

func parseTiers(tjs []TierJSON) ([]engine.Tier, error) {
	tiers := make([]engine.Tier, 0, len(tjs))
	for i, tj := range tjs {
		rate, err := parseDecimalField(fmt.Sprintf("tiers[%d].rate", i), tj.Rate)
		if err != nil {
			return nil, err
		}
		tier := engine.Tier{Rate: rate}
		if tj.UpTo != "" {
			if tier.UpTo, err = parseDecimalField(fmt.Sprintf("tiers[%d].up_to", i), tj.UpTo); err != nil {
				return nil, err
			}
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

func parseDecimalField(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal for %s: %q", field, value)
	}
	return d, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateConfig(cfg engine.Config) error {
	calc := cfg.Calculation

	if calc.DefaultRate.LessThanOrEqual(decimal.Zero) || calc.DefaultRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("default_rate must be in (0, 1], got %s", calc.DefaultRate)
	}
	if calc.MinimumAmount.IsNegative() {
		return fmt.Errorf("minimum_amount cannot be negative, got %s", calc.MinimumAmount)
	}
	if calc.MaximumAmount.GreaterThan(decimal.Zero) && calc.MaximumAmount.LessThan(calc.MinimumAmount) {
		return fmt.Errorf("maximum_amount %s is below minimum_amount %s", calc.MaximumAmount, calc.MinimumAmount)
	}

	if err := validateTiers(calc.Tiers); err != nil {
		return err
	}

	rec := cfg.Reconciler
	if rec.AutoApproveLimit.IsNegative() {
		return fmt.Errorf("auto_approve_limit cannot be negative, got %s", rec.AutoApproveLimit)
	}
	if rec.AutoPayAfterDays < 0 || rec.StuckPaymentAgeDays < 0 || rec.RetryAfterDays < 0 || rec.RenewalNoticeDays < 0 {
		return fmt.Errorf("reconciliation day thresholds cannot be negative")
	}
	return nil
}

// validateTiers enforces the bracket invariants: strictly ascending
// thresholds, exactly one open-ended final bracket, and rates in (0, 1].
func validateTiers(tiers []engine.Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tiered calculation requires at least one tier")
	}

	one := decimal.NewFromInt(1)
	prev := decimal.Zero
	for i, tier := range tiers {
		if tier.Rate.LessThanOrEqual(decimal.Zero) || tier.Rate.GreaterThan(one) {
			return fmt.Errorf("tiers[%d].rate must be in (0, 1], got %s", i, tier.Rate)
		}
		last := i == len(tiers)-1
		if last {
			if !tier.Open() {
				return fmt.Errorf("the final tier must be open-ended (omit up_to)")
			}
			continue
		}
		if tier.Open() {
			return fmt.Errorf("tiers[%d] is open-ended but not last", i)
		}
		if !tier.UpTo.GreaterThan(prev) {
			return fmt.Errorf("tiers[%d].up_to %s must exceed the previous threshold %s", i, tier.UpTo, prev)
		}
		prev = tier.UpTo
	}
	return nil
}

// =============================================================================
// PRESET PLANS
// =============================================================================

// StandardPlanJSON returns the default plan as a JSON document, useful as a
// starting point for customized plans.
func StandardPlanJSON(id, name string) string {
	f := NewPlanFactory()
	pj := f.ToJSON(id, name, engine.DefaultConfig())
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
