/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Money travels as decimal strings ("1234.50") so clients never see float
  drift. Dates travel as "2006-01-02"; unset dates are omitted.

TYPES:
  Agent:
    AgentDTO, CreateAgentRequest

  Policy:
    PolicyDTO, CreatePolicyRequest, PolicyStatusRequest

  Commission:
    CommissionDTO, CalculateCommissionRequest, PreviewRequest,
    CalculationResultDTO, CommissionStatusRequest

  Payment:
    PaymentDTO, CreatePaymentRequest, UpdatePaymentRequest,
    PaymentStatusRequest

  Reconciliation:
    SweepResultDTO, SweepRunDTO

VALIDATION:
  Validation is done in handlers and in the engine, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/ledgerline/commission-engine/engine"
	"github.com/ledgerline/commission-engine/store/sqlite"
)

// =============================================================================
// AGENT TYPES
// =============================================================================

// AgentDTO represents an agent in API responses.
type AgentDTO struct {
	ID              string `json:"id"`
	AgentCode       string `json:"agent_code"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Status          string `json:"status"`
	HireDate        string `json:"hire_date,omitempty"`
	TerminationDate string `json:"termination_date,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateAgentRequest is the request to create an agent.
type CreateAgentRequest struct {
	ID        string `json:"id"`
	AgentCode string `json:"agent_code"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	HireDate  string `json:"hire_date,omitempty"`
}

// =============================================================================
// POLICY TYPES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID                 string `json:"id"`
	PolicyNumber       string `json:"policy_number"`
	PolicyType         string `json:"policy_type"`
	Status             string `json:"status"`
	AgentID            string `json:"agent_id"`
	Premium            string `json:"premium"`
	CoverageAmount     string `json:"coverage_amount,omitempty"`
	DeductibleAmount   string `json:"deductible_amount,omitempty"`
	Description        string `json:"description,omitempty"`
	EffectiveDate      string `json:"effective_date"`
	ExpirationDate     string `json:"expiration_date"`
	RenewalDate        string `json:"renewal_date,omitempty"`
	CancellationDate   string `json:"cancellation_date,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreatePolicyRequest is the request to create a policy.
type CreatePolicyRequest struct {
	ID             string `json:"id,omitempty"`
	PolicyNumber   string `json:"policy_number"`
	PolicyType     string `json:"policy_type"`
	AgentID        string `json:"agent_id"`
	Premium        string `json:"premium"`
	CoverageAmount string `json:"coverage_amount,omitempty"`
	Description    string `json:"description,omitempty"`
	EffectiveDate  string `json:"effective_date"`
	ExpirationDate string `json:"expiration_date"`
	RenewalDate    string `json:"renewal_date,omitempty"`
}

// PolicyStatusRequest is the request to transition a policy.
type PolicyStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// COMMISSION TYPES
// =============================================================================

// CommissionDTO represents a commission in API responses.
type CommissionDTO struct {
	ID               string `json:"id"`
	PolicyID         string `json:"policy_id"`
	AgentID          string `json:"agent_id"`
	PremiumAmount    string `json:"premium_amount"`
	Amount           string `json:"amount"`
	Rate             string `json:"rate"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	CalculationDate  string `json:"calculation_date"`
	EffectiveDate    string `json:"effective_date,omitempty"`
	ExpiryDate       string `json:"expiry_date,omitempty"`
	PaymentDate      string `json:"payment_date,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Notes            string `json:"notes,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// CalculateCommissionRequest creates a commission for a policy/agent pair.
type CalculateCommissionRequest struct {
	PolicyID   string  `json:"policy_id"`
	AgentID    string  `json:"agent_id"`
	Type       string  `json:"type"`
	CustomRate *string `json:"custom_rate,omitempty"` // decimal string, e.g. "0.1850"
}

// PreviewRequest runs the calculator without creating anything.
type PreviewRequest struct {
	Premium    string  `json:"premium"`
	Type       string  `json:"type"`
	CustomRate *string `json:"custom_rate,omitempty"`
}

// CalculationResultDTO is the calculator output for previews.
type CalculationResultDTO struct {
	Amount          string `json:"amount"`
	EffectiveRate   string `json:"effective_rate"`
	Premium         string `json:"premium"`
	Type            string `json:"type"`
	CalculationDate string `json:"calculation_date"`
}

// CommissionStatusRequest is the request to transition a commission.
type CommissionStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID            string `json:"id"`
	CommissionID  string `json:"commission_id"`
	AgentID       string `json:"agent_id"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	PaymentDate   string `json:"payment_date,omitempty"`
	ProcessedDate string `json:"processed_date,omitempty"`
	BankAccount   string `json:"bank_account,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Version       int64  `json:"version"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreatePaymentRequest is the request to create a payment.
type CreatePaymentRequest struct {
	CommissionID string `json:"commission_id"`
	Amount       string `json:"amount"`
	Method       string `json:"method"`
	Reference    string `json:"reference,omitempty"` // generated when empty
	PaymentDate  string `json:"payment_date,omitempty"`
	BankAccount  string `json:"bank_account,omitempty"`
	BankName     string `json:"bank_name,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// UpdatePaymentRequest updates payment details under optimistic locking.
// Only provided fields change; Version must match the stored record.
type UpdatePaymentRequest struct {
	Version     int64   `json:"version"`
	Method      *string `json:"method,omitempty"`
	PaymentDate *string `json:"payment_date,omitempty"`
	BankAccount *string `json:"bank_account,omitempty"`
	BankName    *string `json:"bank_name,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// PaymentStatusRequest is the request to transition a payment.
type PaymentStatusRequest struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

// =============================================================================
// RECONCILIATION TYPES
// =============================================================================

// SweepResultDTO summarizes one reconciliation sweep.
type SweepResultDTO struct {
	RunDate              string `json:"run_date"`
	CommissionsApproved  int    `json:"commissions_approved"`
	CommissionsPaid      int    `json:"commissions_paid"`
	CommissionsForfeited int    `json:"commissions_forfeited"`
	PoliciesExpired      int    `json:"policies_expired"`
	PaymentsProcessing   int    `json:"payments_processing"`
	PaymentsFailed       int    `json:"payments_failed"`
	PaymentsRetried      int    `json:"payments_retried"`
	RenewalsDue          int    `json:"renewals_due"`
	Skipped              int    `json:"skipped"`
}

// SweepRunDTO is a persisted sweep audit record.
type SweepRunDTO struct {
	ID                   string `json:"id"`
	RunDate              string `json:"run_date"`
	CommissionsApproved  int    `json:"commissions_approved"`
	CommissionsPaid      int    `json:"commissions_paid"`
	CommissionsForfeited int    `json:"commissions_forfeited"`
	PoliciesExpired      int    `json:"policies_expired"`
	PaymentsProcessing   int    `json:"payments_processing"`
	PaymentsFailed       int    `json:"payments_failed"`
	PaymentsRetried      int    `json:"payments_retried"`
	RenewalsDue          int    `json:"renewals_due"`
	Skipped              int    `json:"skipped"`
	Error                string `json:"error,omitempty"`
	StartedAt            string `json:"started_at,omitempty"`
	CompletedAt          string `json:"completed_at,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func dateOrEmpty(d engine.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func toAgentDTO(a engine.Agent) AgentDTO {
	return AgentDTO{
		ID:              string(a.ID),
		AgentCode:       a.AgentCode,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Email:           a.Email,
		Phone:           a.Phone,
		Status:          string(a.Status),
		HireDate:        dateOrEmpty(a.HireDate),
		TerminationDate: dateOrEmpty(a.TerminationDate),
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
}

func toPolicyDTO(p engine.Policy) PolicyDTO {
	dto := PolicyDTO{
		ID:                 string(p.ID),
		PolicyNumber:       p.PolicyNumber,
		PolicyType:         p.PolicyType,
		Status:             string(p.Status),
		AgentID:            string(p.AgentID),
		Premium:            p.Premium.StringFixed(2),
		Description:        p.Description,
		EffectiveDate:      dateOrEmpty(p.EffectiveDate),
		ExpirationDate:     dateOrEmpty(p.ExpirationDate),
		RenewalDate:        dateOrEmpty(p.RenewalDate),
		CancellationDate:   dateOrEmpty(p.CancellationDate),
		CancellationReason: p.CancellationReason,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
	if !p.CoverageAmount.IsZero() {
		dto.CoverageAmount = p.CoverageAmount.StringFixed(2)
	}
	if !p.DeductibleAmount.IsZero() {
		dto.DeductibleAmount = p.DeductibleAmount.StringFixed(2)
	}
	return dto
}

func toCommissionDTO(c engine.Commission) CommissionDTO {
	return CommissionDTO{
		ID:               string(c.ID),
		PolicyID:         string(c.PolicyID),
		AgentID:          string(c.AgentID),
		PremiumAmount:    c.PremiumAmount.StringFixed(2),
		Amount:           c.Amount.StringFixed(2),
		Rate:             c.Rate.StringFixed(4),
		Type:             string(c.Type),
		Status:           string(c.Status),
		CalculationDate:  dateOrEmpty(c.CalculationDate),
		EffectiveDate:    dateOrEmpty(c.EffectiveDate),
		ExpiryDate:       dateOrEmpty(c.ExpiryDate),
		PaymentDate:      dateOrEmpty(c.PaymentDate),
		PaymentReference: c.PaymentReference,
		Notes:            c.Notes,
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
	}
}

func toCommissionDTOs(cs []engine.Commission) []CommissionDTO {
	dtos := make([]CommissionDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toCommissionDTO(c)
	}
	return dtos
}

func toPaymentDTO(p engine.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            string(p.ID),
		CommissionID:  string(p.CommissionID),
		AgentID:       string(p.AgentID),
		Amount:        p.Amount.StringFixed(2),
		Method:        string(p.Method),
		Status:        string(p.Status),
		Reference:     p.Reference,
		PaymentDate:   dateOrEmpty(p.PaymentDate),
		ProcessedDate: dateOrEmpty(p.ProcessedDate),
		BankAccount:   p.BankAccount,
		BankName:      p.BankName,
		TransactionID: p.TransactionID,
		Notes:         p.Notes,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTOs(ps []engine.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toPolicyDTOs(ps []engine.Policy) []PolicyDTO {
	dtos := make([]PolicyDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPolicyDTO(p)
	}
	return dtos
}

func toSweepRunDTO(run sqlite.SweepRun) SweepRunDTO {
	dto := SweepRunDTO{
		ID:                   run.ID,
		RunDate:              run.RunDate.String(),
		CommissionsApproved:  run.CommissionsApproved,
		CommissionsPaid:      run.CommissionsPaid,
		CommissionsForfeited: run.CommissionsForfeited,
		PoliciesExpired:      run.PoliciesExpired,
		PaymentsProcessing:   run.PaymentsProcessing,
		PaymentsFailed:       run.PaymentsFailed,
		PaymentsRetried:      run.PaymentsRetried,
		RenewalsDue:          run.RenewalsDue,
		Skipped:              run.Skipped,
		Error:                run.Error,
	}
	if run.StartedAt != nil {
		dto.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
