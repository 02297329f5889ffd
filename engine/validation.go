/*
validation.go - Stateless cross-field predicates

PURPOSE:
  Pure validation rules shared by the lifecycle workflows: date ordering
  on policies, calculation input bounds, and the calculation window check.
  Rules either return a structured error or, for the window check, a plain
  bool that callers convert to a rejection.

RATE SEMANTICS:
  Rates are fractions of premium: 1.0 means 100%. A custom rate outside
  (0, 1] is rejected before any calculation runs.
*/
package engine

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// ValidatePolicyDates enforces effective <= expiration and, when a renewal
// date is set, renewal >= expiration.
func ValidatePolicyDates(effective, expiration, renewal Date) error {
	if !effective.IsZero() && !expiration.IsZero() && effective.After(expiration) {
		return &DateOrderError{
			Field:  "effective_date",
			Detail: "effective date cannot be after expiration date",
		}
	}
	if !renewal.IsZero() && !expiration.IsZero() && renewal.Before(expiration) {
		return &DateOrderError{
			Field:  "renewal_date",
			Detail: "renewal date cannot be before expiration date",
		}
	}
	return nil
}

// ValidateCalculationInputs checks premium positivity, type presence, and
// custom-rate bounds before any calculation runs.
func ValidateCalculationInputs(premium decimal.Decimal, commissionType CommissionType, customRate *decimal.Decimal) error {
	if premium.LessThanOrEqual(decimal.Zero) {
		return &InvalidInputError{Field: "premium", Detail: "premium must be greater than 0"}
	}
	if commissionType == "" {
		return &InvalidInputError{Field: "commission_type", Detail: "commission type is required"}
	}
	if customRate != nil {
		if customRate.LessThanOrEqual(decimal.Zero) {
			return &InvalidInputError{Field: "custom_rate", Detail: "custom rate must be greater than 0"}
		}
		if customRate.GreaterThan(one) {
			return &InvalidInputError{Field: "custom_rate", Detail: "custom rate cannot exceed 100%"}
		}
	}
	return nil
}

// InCalculationWindow reports whether asOf falls inside the policy's
// [effective, expiration] range. Unset boundaries are open.
func InCalculationWindow(effective, expiration, asOf Date) bool {
	if !effective.IsZero() && asOf.Before(effective) {
		return false
	}
	if !expiration.IsZero() && asOf.After(expiration) {
		return false
	}
	return true
}
