/*
calculator.go - Commission amount computation

PURPOSE:
  Pure function from (premium, commission type, optional custom rate) to
  a commission amount and the effective rate applied. No side effects, no
  storage, no clock reads - the calculation date comes in from the caller.

ALGORITHM BY TYPE:
  PERCENTAGE: rate = custom rate if given, else default rate.
              amount = premium * rate, rounded half-up to 2 decimals.
  FIXED:      custom value, when given, IS the amount (absolute).
              Otherwise amount = default rate * premium, rounded.
  TIERED:     walk the ordered brackets; completed brackets contribute
              width * rate, the final partial bracket contributes
              (premium - previous threshold) * rate. One rounding pass
              after summation, never per bracket.
  BONUS:      amount = premium * (default rate * 1.5). The 50% uplift is
              a placeholder for a pluggable bonus policy.

CLAMPING:
  Applied last, after type-specific computation:
    amount = max(amount, minimum); if maximum > 0, amount = min(amount, maximum)
  Floors and ceilings are absolute regardless of type, and clamping an
  already-clamped amount is a no-op.

EFFECTIVE RATE:
  PERCENTAGE reports the rate actually used; the other three derive
  amount/premium at 4 decimals half-up, so callers can always display
  "rate applied" uniformly.
*/
package engine

import "github.com/shopspring/decimal"

var bonusUplift = MustDecimal("1.5")

// Calculator computes commission amounts from a fixed configuration.
type Calculator struct {
	cfg CalculationConfig
}

func NewCalculator(cfg CalculationConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// CalculationResult is the full output of one calculation.
type CalculationResult struct {
	Amount          decimal.Decimal
	EffectiveRate   decimal.Decimal
	Premium         decimal.Decimal
	Type            CommissionType
	CalculationDate Date
}

// Calculate computes the commission for a premium. Inputs are assumed to
// have passed ValidateCalculationInputs; an unknown type still fails with
// UnsupportedTypeError.
func (c *Calculator) Calculate(premium decimal.Decimal, commissionType CommissionType, customRate *decimal.Decimal, asOf Date) (*CalculationResult, error) {
	var amount, effectiveRate decimal.Decimal

	switch commissionType {
	case CommissionPercentage:
		effectiveRate = c.cfg.DefaultRate
		if customRate != nil {
			effectiveRate = *customRate
		}
		amount = premium.Mul(effectiveRate).Round(2)

	case CommissionFixed:
		if customRate != nil {
			amount = *customRate // absolute amount, not a rate
		} else {
			amount = c.cfg.DefaultRate.Mul(premium).Round(2)
		}
		effectiveRate = amount.DivRound(premium, 4)

	case CommissionTiered:
		amount = c.tiered(premium)
		effectiveRate = amount.DivRound(premium, 4)

	case CommissionBonus:
		amount = premium.Mul(c.cfg.DefaultRate.Mul(bonusUplift)).Round(2)
		effectiveRate = amount.DivRound(premium, 4)

	default:
		return nil, &UnsupportedTypeError{Type: commissionType}
	}

	amount = c.clamp(amount)

	return &CalculationResult{
		Amount:          amount,
		EffectiveRate:   effectiveRate,
		Premium:         premium,
		Type:            commissionType,
		CalculationDate: asOf,
	}, nil
}

// tiered sums bracket contributions and rounds once at the end, so the
// function is continuous at bracket boundaries.
func (c *Calculator) tiered(premium decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	prev := decimal.Zero

	for _, tier := range c.cfg.Tiers {
		if tier.Open() || premium.LessThanOrEqual(tier.UpTo) {
			total = total.Add(premium.Sub(prev).Mul(tier.Rate))
			break
		}
		total = total.Add(tier.UpTo.Sub(prev).Mul(tier.Rate))
		prev = tier.UpTo
	}

	return total.Round(2)
}

func (c *Calculator) clamp(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(c.cfg.MinimumAmount) {
		amount = c.cfg.MinimumAmount
	}
	if c.cfg.MaximumAmount.GreaterThan(decimal.Zero) && amount.GreaterThan(c.cfg.MaximumAmount) {
		amount = c.cfg.MaximumAmount
	}
	return amount
}
