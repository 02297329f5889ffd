/*
Package engine provides the commission lifecycle and calculation core.

PURPOSE:
  This package contains the types and algorithms for tracking insurance
  policies, the commissions they generate for agents, and the payments
  that settle those commissions. It owns the calculation algorithm, the
  three status state machines, and the batch reconciliation operations.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A civil date (day granularity, UTC) used for all lifecycle dates
  - Policy / Agent / Commission / Payment: The domain records
  - Status enums: One per record, governed by the transition tables

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for every monetary value and rate
  2. Purity: Lifecycle operations map (record, target) -> (record, error);
     the caller persists the result
  3. Determinism: "today" is always an explicit parameter, never a wall
     clock read
  4. Immutability: Commission amounts are snapshots; corrections happen
     by status transition, never by rewriting the amount

SEE ALSO:
  - calculator.go: Premium -> commission amount computation
  - transitions.go: Status transition tables
  - commission.go, payment.go, policy.go: Lifecycle workflows
  - reconciler.go: Batch operations
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Civil date (day granularity, UTC)
// =============================================================================

// Date is a day-granularity point in time. The zero value means "unset",
// which is how optional dates (expiry, renewal, cancellation) are modeled.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Today returns the current calendar day. The engine itself never calls
// this; it exists for the shells (API, scheduler) that supply "today".
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return Date{Time: d.Time.AddDate(n, 0, 0)} }

func (d Date) Year() int { return d.Time.Year() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// MustDecimal parses a decimal literal; returns zero on malformed input.
// For constants and tests, not for untrusted input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PolicyID string
type AgentID string
type CommissionID string
type PaymentID string

// =============================================================================
// POLICY - An insurance policy owned by an agent
// =============================================================================

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "ACTIVE"
	PolicyInactive  PolicyStatus = "INACTIVE"
	PolicyPending   PolicyStatus = "PENDING"
	PolicyCancelled PolicyStatus = "CANCELLED"
	PolicyExpired   PolicyStatus = "EXPIRED"
	PolicyRenewed   PolicyStatus = "RENEWED"
	PolicySuspended PolicyStatus = "SUSPENDED"
	PolicyRetired   PolicyStatus = "RETIRED" // tombstone: replaces soft-delete flags
)

type Policy struct {
	ID           PolicyID
	PolicyNumber string // unique
	PolicyType   string
	Status       PolicyStatus
	AgentID      AgentID

	Premium          decimal.Decimal
	CoverageAmount   decimal.Decimal
	DeductibleAmount decimal.Decimal
	Description      string

	EffectiveDate      Date
	ExpirationDate     Date
	RenewalDate        Date // optional; must be >= ExpirationDate when set
	CancellationDate   Date
	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// AGENT - The person earning commissions
// =============================================================================

type AgentStatus string

const (
	AgentActive     AgentStatus = "ACTIVE"
	AgentInactive   AgentStatus = "INACTIVE"
	AgentSuspended  AgentStatus = "SUSPENDED"
	AgentTerminated AgentStatus = "TERMINATED"
	AgentRetired    AgentStatus = "RETIRED"
)

type Agent struct {
	ID        AgentID
	AgentCode string // unique
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    AgentStatus

	HireDate        Date
	TerminationDate Date

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// COMMISSION - What a policy earns for its agent
// =============================================================================

type CommissionType string

const (
	CommissionPercentage CommissionType = "PERCENTAGE"
	CommissionFixed      CommissionType = "FIXED"
	CommissionTiered     CommissionType = "TIERED"
	CommissionBonus      CommissionType = "BONUS"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "PENDING"
	CommissionApproved  CommissionStatus = "APPROVED"
	CommissionPaid      CommissionStatus = "PAID"
	CommissionCancelled CommissionStatus = "CANCELLED"
	CommissionHeld      CommissionStatus = "HELD"
	CommissionForfeited CommissionStatus = "FORFEITED"
	CommissionRetired   CommissionStatus = "RETIRED"
)

// Commission ties exactly one policy to one agent. PremiumAmount and Amount
// are snapshots taken at calculation time and never rewritten afterwards.
type Commission struct {
	ID       CommissionID
	PolicyID PolicyID
	AgentID  AgentID

	PremiumAmount decimal.Decimal // premium at calculation time
	Amount        decimal.Decimal // computed commission, immutable
	Rate          decimal.Decimal // effective rate applied
	Type          CommissionType
	Status        CommissionStatus

	CalculationDate Date
	EffectiveDate   Date
	ExpiryDate      Date // optional
	PaymentDate     Date
	PaymentReference string
	Notes            string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PAYMENT - Disbursement settling a commission
// =============================================================================

type PaymentMethod string

const (
	MethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	MethodCheck         PaymentMethod = "CHECK"
	MethodCash          PaymentMethod = "CASH"
	MethodWireTransfer  PaymentMethod = "WIRE_TRANSFER"
	MethodDirectDeposit PaymentMethod = "DIRECT_DEPOSIT"
	MethodEFT           PaymentMethod = "ELECTRONIC_FUND_TRANSFER"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
	PaymentReversed   PaymentStatus = "REVERSED"
	PaymentRetired    PaymentStatus = "RETIRED"
)

// Payment records the disbursement of a settled commission. At most one
// payment exists per commission, and its amount must equal the commission
// amount exactly. Version is the optimistic-lock counter: every update must
// present the version it last read.
type Payment struct {
	ID           PaymentID
	CommissionID CommissionID
	AgentID      AgentID

	Amount    decimal.Decimal
	Method    PaymentMethod
	Status    PaymentStatus
	Reference string // unique, "PAY-{year}-{seq}"

	PaymentDate   Date
	ProcessedDate Date
	BankAccount   string
	BankName      string
	TransactionID string
	Notes         string

	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
