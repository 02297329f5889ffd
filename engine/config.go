/*
config.go - Explicit engine configuration

PURPOSE:
  All tunables (default rate, clamps, tier brackets, batch thresholds)
  live in plain structs handed to the engine's constructors. The engine
  never reads environment variables or global state, so two engines with
  different plans can coexist and tests can pin every knob.

DEFAULTS:
  DefaultConfig() carries the standard plan:
    default rate 15%, clamp [10.00, 10000.00]
    tiers: up to 1000.00 @ 10%, up to 5000.00 @ 15%, above @ 20%
    auto-approve below 1000.00, auto-pay after 7 days
    stuck payments after 1 day, retry failed after 7 days below 10000.00

SEE ALSO:
  - factory/plan.go: JSON plan documents -> Config
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// TIER SCHEDULE - Ordered premium brackets
// =============================================================================

// Tier is one premium bracket. UpTo is the inclusive upper threshold of the
// bracket; a zero UpTo marks the open-ended top bracket and is only valid
// in the final position.
type Tier struct {
	UpTo decimal.Decimal
	Rate decimal.Decimal
}

// Open reports whether this is the open-ended top bracket.
func (t Tier) Open() bool { return t.UpTo.IsZero() }

// =============================================================================
// CALCULATION CONFIG
// =============================================================================

// CalculationConfig parameterizes the calculator. MaximumAmount of zero
// disables the ceiling; the floor always applies.
type CalculationConfig struct {
	DefaultRate   decimal.Decimal
	MinimumAmount decimal.Decimal
	MaximumAmount decimal.Decimal
	Tiers         []Tier
}

// =============================================================================
// RECONCILER CONFIG
// =============================================================================

// ReconcilerConfig parameterizes the batch operations.
type ReconcilerConfig struct {
	// Commissions below this amount are auto-approved.
	AutoApproveLimit decimal.Decimal

	// Approved commissions are auto-paid once their calculation date is
	// at least this many days old.
	AutoPayAfterDays int

	// Payments stuck in PROCESSING longer than this many days are failed.
	StuckPaymentAgeDays int

	// Failed payments older than this many days are retried...
	RetryAfterDays int

	// ...provided their amount is below this ceiling.
	RetryCeiling decimal.Decimal

	// Policies with a renewal date within this many days show up in the
	// renewal sweep.
	RenewalNoticeDays int
}

// Config bundles everything the engine needs.
type Config struct {
	Calculation CalculationConfig
	Reconciler  ReconcilerConfig
}

// DefaultConfig returns the standard commission plan.
func DefaultConfig() Config {
	return Config{
		Calculation: CalculationConfig{
			DefaultRate:   MustDecimal("0.1500"),
			MinimumAmount: MustDecimal("10.00"),
			MaximumAmount: MustDecimal("10000.00"),
			Tiers: []Tier{
				{UpTo: MustDecimal("1000.00"), Rate: MustDecimal("0.1000")},
				{UpTo: MustDecimal("5000.00"), Rate: MustDecimal("0.1500")},
				{Rate: MustDecimal("0.2000")},
			},
		},
		Reconciler: ReconcilerConfig{
			AutoApproveLimit:    MustDecimal("1000.00"),
			AutoPayAfterDays:    7,
			StuckPaymentAgeDays: 1,
			RetryAfterDays:      7,
			RetryCeiling:        MustDecimal("10000.00"),
			RenewalNoticeDays:   30,
		},
	}
}
