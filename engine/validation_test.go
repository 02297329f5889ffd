package engine_test

import (
	"testing"
	"time"

	"github.com/ledgerline/commission-engine/engine"
)

func TestInCalculationWindow(t *testing.T) {
	effective := date(2025, time.January, 1)
	expiration := date(2025, time.December, 31)

	cases := []struct {
		name                  string
		effective, expiration engine.Date
		asOf                  engine.Date
		want                  bool
	}{
		{"inside", effective, expiration, date(2025, time.June, 15), true},
		{"on effective", effective, expiration, effective, true},
		{"on expiration", effective, expiration, expiration, true},
		{"before effective", effective, expiration, date(2024, time.December, 31), false},
		{"after expiration", effective, expiration, date(2026, time.January, 1), false},
		{"open start", engine.Date{}, expiration, date(1990, time.January, 1), true},
		{"open end", effective, engine.Date{}, date(2099, time.January, 1), true},
		{"fully open", engine.Date{}, engine.Date{}, date(2025, time.June, 15), true},
	}
	for _, tc := range cases {
		if got := engine.InCalculationWindow(tc.effective, tc.expiration, tc.asOf); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidateCalculationInputs_RateBounds(t *testing.T) {
	premium := dec("1000.00")

	if err := engine.ValidateCalculationInputs(premium, engine.CommissionPercentage, decPtr("1.0")); err != nil {
		t.Errorf("rate 1.0 (100%%) must be accepted: %v", err)
	}
	if err := engine.ValidateCalculationInputs(premium, engine.CommissionPercentage, decPtr("1.0001")); err == nil {
		t.Error("rate above 1.0 must be rejected")
	}
	if err := engine.ValidateCalculationInputs(premium, engine.CommissionPercentage, decPtr("0")); err == nil {
		t.Error("zero rate must be rejected")
	}
	if err := engine.ValidateCalculationInputs(premium, engine.CommissionPercentage, nil); err != nil {
		t.Errorf("absent custom rate must be accepted: %v", err)
	}
}

func TestValidatePolicyDates_ZeroDatesAreOpen(t *testing.T) {
	// unset dates skip the ordering checks entirely
	if err := engine.ValidatePolicyDates(engine.Date{}, engine.Date{}, engine.Date{}); err != nil {
		t.Errorf("all-zero dates must pass: %v", err)
	}
	if err := engine.ValidatePolicyDates(date(2025, time.June, 1), engine.Date{}, engine.Date{}); err != nil {
		t.Errorf("effective without expiration must pass: %v", err)
	}
	// renewal on the expiration date is the earliest legal renewal
	d := date(2025, time.December, 31)
	if err := engine.ValidatePolicyDates(date(2025, time.January, 1), d, d); err != nil {
		t.Errorf("renewal == expiration must pass: %v", err)
	}
}
