/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface the engine consumes
  (engine.CommissionLookup, engine.PaymentLookup, engine.ReconcilerSource)
  plus the record CRUD the API layer needs. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INVARIANTS ENFORCED IN THE SCHEMA:
  - policies.policy_number is unique
  - at most one non-RETIRED commission per (policy_id, agent_id),
    via a partial unique index
  - at most one non-RETIRED payment per commission_id, same technique
  - payments.reference is unique
  - payment updates are compare-and-set on the version column; zero rows
    affected means a concurrent writer won and the caller gets
    engine.StaleVersionError

MONEY AND DATES:
  Decimal amounts are stored as TEXT in their canonical string form and
  re-parsed on scan - REAL columns would reintroduce float drift. Dates
  are day-granularity TEXT ("2006-01-02", NULL when unset); audit
  timestamps are RFC3339.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/commission-engine/engine"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Agents
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		agent_code TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		status TEXT NOT NULL,
		hire_date TEXT,
		termination_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_code ON agents(agent_code);

	-- Policies
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		policy_number TEXT NOT NULL,
		policy_type TEXT NOT NULL,
		status TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		premium TEXT NOT NULL,
		coverage_amount TEXT,
		deductible_amount TEXT,
		description TEXT,
		effective_date TEXT,
		expiration_date TEXT,
		renewal_date TEXT,
		cancellation_date TEXT,
		cancellation_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_number ON policies(policy_number);
	CREATE INDEX IF NOT EXISTS idx_policies_agent ON policies(agent_id);
	CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status);

	-- Batch expiry scan (hot path for the reconciler)
	CREATE INDEX IF NOT EXISTS idx_policies_status_expiration
		ON policies(status, expiration_date);

	-- Commissions
	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		policy_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		premium_amount TEXT NOT NULL,
		amount TEXT NOT NULL,
		rate TEXT NOT NULL,
		commission_type TEXT NOT NULL,
		status TEXT NOT NULL,
		calculation_date TEXT,
		effective_date TEXT,
		expiry_date TEXT,
		payment_date TEXT,
		payment_reference TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one live commission per (policy, agent). RETIRED
	-- tombstones fall outside the index, so retiring frees the slot.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_commissions_policy_agent_live
		ON commissions(policy_id, agent_id)
		WHERE status != 'RETIRED';

	CREATE INDEX IF NOT EXISTS idx_commissions_agent ON commissions(agent_id);
	CREATE INDEX IF NOT EXISTS idx_commissions_status ON commissions(status);
	CREATE INDEX IF NOT EXISTS idx_commissions_status_calc
		ON commissions(status, calculation_date);
	CREATE INDEX IF NOT EXISTS idx_commissions_status_expiry
		ON commissions(status, expiry_date);

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		commission_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL,
		payment_date TEXT,
		processed_date TEXT,
		bank_account TEXT,
		bank_name TEXT,
		transaction_id TEXT,
		notes TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_reference ON payments(reference);

	-- One live payment per commission, same tombstone technique.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_commission_live
		ON payments(commission_id)
		WHERE status != 'RETIRED';

	CREATE INDEX IF NOT EXISTS idx_payments_agent ON payments(agent_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status_date
		ON payments(status, payment_date);

	-- Sweep Runs (reconciliation audit trail)
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL,
		commissions_approved INTEGER DEFAULT 0,
		commissions_paid INTEGER DEFAULT 0,
		commissions_forfeited INTEGER DEFAULT 0,
		policies_expired INTEGER DEFAULT 0,
		payments_processing INTEGER DEFAULT 0,
		payments_failed INTEGER DEFAULT 0,
		payments_retried INTEGER DEFAULT 0,
		renewals_due INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_date ON sweep_runs(run_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AGENTS
// =============================================================================

// SaveAgent inserts or updates an agent.
func (s *Store) SaveAgent(ctx context.Context, agent engine.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO agents (id, agent_code, first_name, last_name, email, phone,
			status, hire_date, termination_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_code = excluded.agent_code,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			status = excluded.status,
			hire_date = excluded.hire_date,
			termination_date = excluded.termination_date,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		agent.ID, agent.AgentCode, agent.FirstName, agent.LastName,
		agent.Email, agent.Phone, agent.Status,
		nullDate(agent.HireDate), nullDate(agent.TerminationDate),
		now, now,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("agent code %s: %w", agent.AgentCode, engine.ErrDuplicate)
	}
	return err
}

// AgentByID retrieves an agent.
func (s *Store) AgentByID(ctx context.Context, id engine.AgentID) (*engine.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_code, first_name, last_name, email, phone, status,
		       hire_date, termination_date, created_at, updated_at
		FROM agents WHERE id = ?`, id)

	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// ListAgents returns all non-retired agents.
func (s *Store) ListAgents(ctx context.Context) ([]engine.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_code, first_name, last_name, email, phone, status,
		       hire_date, termination_date, created_at, updated_at
		FROM agents WHERE status != 'RETIRED' ORDER BY agent_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []engine.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*engine.Agent, error) {
	var (
		agent                engine.Agent
		email, phone         sql.NullString
		hireDate, termDate   sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&agent.ID, &agent.AgentCode, &agent.FirstName, &agent.LastName,
		&email, &phone, &agent.Status, &hireDate, &termDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	agent.Email = email.String
	agent.Phone = phone.String
	agent.HireDate = parseNullDate(hireDate)
	agent.TerminationDate = parseNullDate(termDate)
	agent.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	agent.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &agent, nil
}

// =============================================================================
// POLICIES
// =============================================================================

// SavePolicy inserts or updates a policy. A colliding policy number under a
// different id fails with engine.ErrDuplicate.
func (s *Store) SavePolicy(ctx context.Context, policy engine.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policies (id, policy_number, policy_type, status, agent_id,
			premium, coverage_amount, deductible_amount, description,
			effective_date, expiration_date, renewal_date,
			cancellation_date, cancellation_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			policy_number = excluded.policy_number,
			policy_type = excluded.policy_type,
			status = excluded.status,
			agent_id = excluded.agent_id,
			premium = excluded.premium,
			coverage_amount = excluded.coverage_amount,
			deductible_amount = excluded.deductible_amount,
			description = excluded.description,
			effective_date = excluded.effective_date,
			expiration_date = excluded.expiration_date,
			renewal_date = excluded.renewal_date,
			cancellation_date = excluded.cancellation_date,
			cancellation_reason = excluded.cancellation_reason,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		policy.ID, policy.PolicyNumber, policy.PolicyType, policy.Status, policy.AgentID,
		policy.Premium.String(), nullDecimal(policy.CoverageAmount), nullDecimal(policy.DeductibleAmount),
		policy.Description,
		nullDate(policy.EffectiveDate), nullDate(policy.ExpirationDate), nullDate(policy.RenewalDate),
		nullDate(policy.CancellationDate), policy.CancellationReason,
		now, now,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("policy number %s: %w", policy.PolicyNumber, engine.ErrDuplicate)
	}
	return err
}

const policyColumns = `id, policy_number, policy_type, status, agent_id,
	premium, coverage_amount, deductible_amount, description,
	effective_date, expiration_date, renewal_date,
	cancellation_date, cancellation_reason, created_at, updated_at`

// PolicyByID retrieves a policy.
func (s *Store) PolicyByID(ctx context.Context, id engine.PolicyID) (*engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE id = ?", id)

	policy, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// ListPolicies returns policies, optionally filtered by status. An empty
// status lists everything except RETIRED tombstones.
func (s *Store) ListPolicies(ctx context.Context, status engine.PolicyStatus) ([]engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		query string
		args  []any
	)
	if status != "" {
		query = "SELECT " + policyColumns + " FROM policies WHERE status = ? ORDER BY policy_number"
		args = []any{status}
	} else {
		query = "SELECT " + policyColumns + " FROM policies WHERE status != 'RETIRED' ORDER BY policy_number"
	}

	return s.queryPolicies(ctx, query, args...)
}

// PoliciesByAgent returns an agent's non-retired policies.
func (s *Store) PoliciesByAgent(ctx context.Context, agentID engine.AgentID) ([]engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPolicies(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE agent_id = ? AND status != 'RETIRED' ORDER BY policy_number",
		agentID)
}

func (s *Store) queryPolicies(ctx context.Context, query string, args ...any) ([]engine.Policy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []engine.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}
	return policies, rows.Err()
}

func scanPolicy(row rowScanner) (*engine.Policy, error) {
	var (
		policy                                     engine.Policy
		premium                                    string
		coverage, deductible                       sql.NullString
		description, cancelReason                  sql.NullString
		effective, expiration, renewal, cancelDate sql.NullString
		createdAt, updatedAt                       string
	)
	err := row.Scan(&policy.ID, &policy.PolicyNumber, &policy.PolicyType, &policy.Status,
		&policy.AgentID, &premium, &coverage, &deductible, &description,
		&effective, &expiration, &renewal, &cancelDate, &cancelReason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	policy.Premium, err = decimal.NewFromString(premium)
	if err != nil {
		return nil, fmt.Errorf("failed to parse premium: %w", err)
	}
	policy.CoverageAmount = parseNullDecimal(coverage)
	policy.DeductibleAmount = parseNullDecimal(deductible)
	policy.Description = description.String
	policy.CancellationReason = cancelReason.String
	policy.EffectiveDate = parseNullDate(effective)
	policy.ExpirationDate = parseNullDate(expiration)
	policy.RenewalDate = parseNullDate(renewal)
	policy.CancellationDate = parseNullDate(cancelDate)
	policy.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	policy.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &policy, nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

const commissionColumns = `id, policy_id, agent_id, premium_amount, amount, rate,
	commission_type, status, calculation_date, effective_date, expiry_date,
	payment_date, payment_reference, notes, created_at, updated_at`

// CreateCommission inserts a commission. The partial unique index is the
// real guard against a second live commission for a (policy, agent) pair -
// a constraint violation surfaces as DuplicateCommissionError.
func (s *Store) CreateCommission(ctx context.Context, commission engine.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO commissions (id, policy_id, agent_id, premium_amount, amount, rate,
			commission_type, status, calculation_date, effective_date, expiry_date,
			payment_date, payment_reference, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		commission.ID, commission.PolicyID, commission.AgentID,
		commission.PremiumAmount.String(), commission.Amount.String(), commission.Rate.String(),
		commission.Type, commission.Status,
		nullDate(commission.CalculationDate), nullDate(commission.EffectiveDate),
		nullDate(commission.ExpiryDate), nullDate(commission.PaymentDate),
		commission.PaymentReference, commission.Notes,
		now, now,
	)
	if isUniqueConstraintError(err) {
		existing, lookupErr := s.commissionByPolicyAndAgentLocked(ctx, commission.PolicyID, commission.AgentID)
		if lookupErr == nil && existing != nil {
			return &engine.DuplicateCommissionError{
				PolicyID: commission.PolicyID,
				AgentID:  commission.AgentID,
				Existing: existing.ID,
			}
		}
		return fmt.Errorf("commission %s: %w", commission.ID, engine.ErrDuplicate)
	}
	return err
}

// SaveCommission updates an existing commission (or inserts it when absent).
func (s *Store) SaveCommission(ctx context.Context, commission engine.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO commissions (id, policy_id, agent_id, premium_amount, amount, rate,
			commission_type, status, calculation_date, effective_date, expiry_date,
			payment_date, payment_reference, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			expiry_date = excluded.expiry_date,
			payment_date = excluded.payment_date,
			payment_reference = excluded.payment_reference,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		commission.ID, commission.PolicyID, commission.AgentID,
		commission.PremiumAmount.String(), commission.Amount.String(), commission.Rate.String(),
		commission.Type, commission.Status,
		nullDate(commission.CalculationDate), nullDate(commission.EffectiveDate),
		nullDate(commission.ExpiryDate), nullDate(commission.PaymentDate),
		commission.PaymentReference, commission.Notes,
		now, now,
	)
	return err
}

// CommissionByID retrieves a commission.
func (s *Store) CommissionByID(ctx context.Context, id engine.CommissionID) (*engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE id = ?", id)

	commission, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("commission %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return commission, nil
}

// CommissionByPolicyAndAgent finds the live commission for a pair.
// RETIRED tombstones are invisible here.
func (s *Store) CommissionByPolicyAndAgent(ctx context.Context, policyID engine.PolicyID, agentID engine.AgentID) (*engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.commissionByPolicyAndAgentLocked(ctx, policyID, agentID)
}

func (s *Store) commissionByPolicyAndAgentLocked(ctx context.Context, policyID engine.PolicyID, agentID engine.AgentID) (*engine.Commission, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE policy_id = ? AND agent_id = ? AND status != 'RETIRED'",
		policyID, agentID)

	commission, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("commission for policy %s agent %s: %w", policyID, agentID, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return commission, nil
}

// CommissionsByAgent returns an agent's non-retired commissions.
func (s *Store) CommissionsByAgent(ctx context.Context, agentID engine.AgentID) ([]engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissions(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE agent_id = ? AND status != 'RETIRED' ORDER BY calculation_date DESC",
		agentID)
}

// CommissionsByStatus returns commissions in a given status.
func (s *Store) CommissionsByStatus(ctx context.Context, status engine.CommissionStatus) ([]engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissions(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE status = ? ORDER BY calculation_date DESC",
		status)
}

func (s *Store) queryCommissions(ctx context.Context, query string, args ...any) ([]engine.Commission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commissions []engine.Commission
	for rows.Next() {
		commission, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		commissions = append(commissions, *commission)
	}
	return commissions, rows.Err()
}

func scanCommission(row rowScanner) (*engine.Commission, error) {
	var (
		commission                     engine.Commission
		premium, amount, rate          string
		calcDate, effDate              sql.NullString
		expiryDate, payDate            sql.NullString
		paymentReference, notes        sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(&commission.ID, &commission.PolicyID, &commission.AgentID,
		&premium, &amount, &rate, &commission.Type, &commission.Status,
		&calcDate, &effDate, &expiryDate, &payDate,
		&paymentReference, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if commission.PremiumAmount, err = decimal.NewFromString(premium); err != nil {
		return nil, fmt.Errorf("failed to parse premium amount: %w", err)
	}
	if commission.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if commission.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("failed to parse rate: %w", err)
	}
	commission.CalculationDate = parseNullDate(calcDate)
	commission.EffectiveDate = parseNullDate(effDate)
	commission.ExpiryDate = parseNullDate(expiryDate)
	commission.PaymentDate = parseNullDate(payDate)
	commission.PaymentReference = paymentReference.String
	commission.Notes = notes.String
	commission.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	commission.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &commission, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, commission_id, agent_id, amount, method, status,
	reference, payment_date, processed_date, bank_account, bank_name,
	transaction_id, notes, version, created_at, updated_at`

// CreatePayment inserts a payment. Uniqueness of reference and of the live
// payment per commission are both schema-enforced.
func (s *Store) CreatePayment(ctx context.Context, payment engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments (id, commission_id, agent_id, amount, method, status,
			reference, payment_date, processed_date, bank_account, bank_name,
			transaction_id, notes, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		payment.ID, payment.CommissionID, payment.AgentID,
		payment.Amount.String(), payment.Method, payment.Status, payment.Reference,
		nullDate(payment.PaymentDate), nullDate(payment.ProcessedDate),
		payment.BankAccount, payment.BankName, payment.TransactionID, payment.Notes,
		payment.Version, now, now,
	)
	if isUniqueConstraintError(err) {
		// SQLite names the violated columns, not the index
		if strings.Contains(err.Error(), "payments.reference") {
			return &engine.DuplicateReferenceError{Reference: payment.Reference}
		}
		existing, lookupErr := s.paymentByCommissionLocked(ctx, payment.CommissionID)
		if lookupErr == nil && existing != nil {
			return &engine.DuplicatePaymentError{CommissionID: payment.CommissionID, Existing: existing.ID}
		}
		return fmt.Errorf("payment %s: %w", payment.ID, engine.ErrDuplicate)
	}
	return err
}

// UpdatePayment commits a payment with a compare-and-set on the version the
// caller read. Zero affected rows means a concurrent writer got there first.
func (s *Store) UpdatePayment(ctx context.Context, payment engine.Payment, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE payments SET
			amount = ?, method = ?, status = ?,
			payment_date = ?, processed_date = ?,
			bank_account = ?, bank_name = ?, transaction_id = ?, notes = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		payment.Amount.String(), payment.Method, payment.Status,
		nullDate(payment.PaymentDate), nullDate(payment.ProcessedDate),
		payment.BankAccount, payment.BankName, payment.TransactionID, payment.Notes,
		payment.Version, time.Now().UTC().Format(time.RFC3339),
		payment.ID, expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		stored, lookupErr := s.paymentByIDLocked(ctx, payment.ID)
		if lookupErr != nil {
			return lookupErr
		}
		return &engine.StaleVersionError{PaymentID: payment.ID, Given: expectedVersion, Stored: stored.Version}
	}
	return nil
}

// PaymentByID retrieves a payment.
func (s *Store) PaymentByID(ctx context.Context, id engine.PaymentID) (*engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.paymentByIDLocked(ctx, id)
}

func (s *Store) paymentByIDLocked(ctx context.Context, id engine.PaymentID) (*engine.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)

	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// PaymentByCommission finds the live payment settling a commission.
func (s *Store) PaymentByCommission(ctx context.Context, commissionID engine.CommissionID) (*engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.paymentByCommissionLocked(ctx, commissionID)
}

func (s *Store) paymentByCommissionLocked(ctx context.Context, commissionID engine.CommissionID) (*engine.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE commission_id = ? AND status != 'RETIRED'",
		commissionID)

	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment for commission %s: %w", commissionID, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// PaymentByReference finds a payment by its unique reference.
func (s *Store) PaymentByReference(ctx context.Context, reference string) (*engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE reference = ?", reference)

	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment reference %s: %w", reference, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// PaymentsByAgent returns an agent's non-retired payments.
func (s *Store) PaymentsByAgent(ctx context.Context, agentID engine.AgentID) ([]engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE agent_id = ? AND status != 'RETIRED' ORDER BY payment_date DESC",
		agentID)
}

// PaymentsByStatus returns payments in a given status.
func (s *Store) PaymentsByStatus(ctx context.Context, status engine.PaymentStatus) ([]engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE status = ? ORDER BY payment_date DESC",
		status)
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]engine.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []engine.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (*engine.Payment, error) {
	var (
		payment                 engine.Payment
		amount                  string
		payDate, procDate       sql.NullString
		bankAccount, bankName   sql.NullString
		transactionID, notes    sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(&payment.ID, &payment.CommissionID, &payment.AgentID,
		&amount, &payment.Method, &payment.Status, &payment.Reference,
		&payDate, &procDate, &bankAccount, &bankName,
		&transactionID, &notes, &payment.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if payment.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	payment.PaymentDate = parseNullDate(payDate)
	payment.ProcessedDate = parseNullDate(procDate)
	payment.BankAccount = bankAccount.String
	payment.BankName = bankName.String
	payment.TransactionID = transactionID.String
	payment.Notes = notes.String
	payment.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	payment.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &payment, nil
}

// =============================================================================
// RECONCILER SOURCE (engine.ReconcilerSource interface)
// =============================================================================

// PendingCommissionsDue returns PENDING commissions due by asOf.
func (s *Store) PendingCommissionsDue(ctx context.Context, asOf engine.Date) ([]engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissions(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE status = 'PENDING' AND calculation_date <= ? ORDER BY calculation_date",
		asOf.String())
}

// ApprovedCommissionsUnpaid returns APPROVED commissions without a payment date.
func (s *Store) ApprovedCommissionsUnpaid(ctx context.Context) ([]engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissions(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE status = 'APPROVED' AND payment_date IS NULL ORDER BY calculation_date")
}

// ExpiredPendingCommissions returns PENDING commissions whose expiry date
// has passed.
func (s *Store) ExpiredPendingCommissions(ctx context.Context, asOf engine.Date) ([]engine.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissions(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE status = 'PENDING' AND expiry_date IS NOT NULL AND expiry_date <= ? ORDER BY expiry_date",
		asOf.String())
}

// PoliciesExpiredBy returns policies past their end date that are not yet
// EXPIRED (or tombstoned).
func (s *Store) PoliciesExpiredBy(ctx context.Context, asOf engine.Date) ([]engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPolicies(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE status NOT IN ('EXPIRED', 'RETIRED') AND expiration_date IS NOT NULL AND expiration_date <= ? ORDER BY expiration_date",
		asOf.String())
}

// PoliciesDueForRenewal returns policies with a renewal date on or before
// the horizon.
func (s *Store) PoliciesDueForRenewal(ctx context.Context, horizon engine.Date) ([]engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPolicies(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE status != 'RETIRED' AND renewal_date IS NOT NULL AND renewal_date <= ? ORDER BY renewal_date",
		horizon.String())
}

// PaymentsInStatusBefore returns payments in a status with a payment date
// on or before the cutoff.
func (s *Store) PaymentsInStatusBefore(ctx context.Context, status engine.PaymentStatus, cutoff engine.Date) ([]engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE status = ? AND payment_date IS NOT NULL AND payment_date <= ? ORDER BY payment_date",
		status, cutoff.String())
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

// SweepRun is the persisted audit record of one reconciliation sweep.
type SweepRun struct {
	ID                   string
	RunDate              engine.Date
	CommissionsApproved  int
	CommissionsPaid      int
	CommissionsForfeited int
	PoliciesExpired      int
	PaymentsProcessing   int
	PaymentsFailed       int
	PaymentsRetried      int
	RenewalsDue          int
	Skipped              int
	Error                string
	StartedAt            *time.Time
	CompletedAt          *time.Time
	CreatedAt            time.Time
}

// SaveSweepRun records a sweep.
func (s *Store) SaveSweepRun(ctx context.Context, run SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, run_date, commissions_approved, commissions_paid,
			commissions_forfeited, policies_expired, payments_processing,
			payments_failed, payments_retried, renewals_due, skipped, error,
			started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			commissions_approved = excluded.commissions_approved,
			commissions_paid = excluded.commissions_paid,
			commissions_forfeited = excluded.commissions_forfeited,
			policies_expired = excluded.policies_expired,
			payments_processing = excluded.payments_processing,
			payments_failed = excluded.payments_failed,
			payments_retried = excluded.payments_retried,
			renewals_due = excluded.renewals_due,
			skipped = excluded.skipped,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var startedAt, completedAt *string
	if run.StartedAt != nil {
		t := run.StartedAt.Format(time.RFC3339)
		startedAt = &t
	}
	if run.CompletedAt != nil {
		t := run.CompletedAt.Format(time.RFC3339)
		completedAt = &t
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.RunDate.String(),
		run.CommissionsApproved, run.CommissionsPaid, run.CommissionsForfeited,
		run.PoliciesExpired, run.PaymentsProcessing, run.PaymentsFailed,
		run.PaymentsRetried, run.RenewalsDue, run.Skipped, run.Error,
		startedAt, completedAt, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListSweepRuns returns recent sweeps, newest first.
func (s *Store) ListSweepRuns(ctx context.Context, limit int) ([]SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_date, commissions_approved, commissions_paid,
			commissions_forfeited, policies_expired, payments_processing,
			payments_failed, payments_retried, renewals_due, skipped, error,
			started_at, completed_at, created_at
		FROM sweep_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SweepRun
	for rows.Next() {
		var (
			run                             SweepRun
			runDate, createdAt              string
			errMsg, startedAt, completedAt  sql.NullString
		)
		if err := rows.Scan(&run.ID, &runDate,
			&run.CommissionsApproved, &run.CommissionsPaid, &run.CommissionsForfeited,
			&run.PoliciesExpired, &run.PaymentsProcessing, &run.PaymentsFailed,
			&run.PaymentsRetried, &run.RenewalsDue, &run.Skipped, &errMsg,
			&startedAt, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		run.RunDate, _ = engine.ParseDate(runDate)
		run.Error = errMsg.String
		if startedAt.Valid {
			t, _ := time.Parse(time.RFC3339, startedAt.String)
			run.StartedAt = &t
		}
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			run.CompletedAt = &t
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "commissions", "policies", "agents", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullDate(d engine.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) engine.Date {
	if !s.Valid || s.String == "" {
		return engine.Date{}
	}
	d, err := engine.ParseDate(s.String)
	if err != nil {
		return engine.Date{}
	}
	return d
}

func nullDecimal(d decimal.Decimal) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) decimal.Decimal {
	if !s.Valid || s.String == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
