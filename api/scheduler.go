/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically runs a full reconciliation sweep: auto-approves small
  pending commissions, pays approved ones past the settlement delay,
  forfeits expired commissions, expires lapsed policies, moves payments
  through processing, fails stuck ones, and retries failed ones.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Every pass persists the mutated records and a sweep_runs audit row
  - Per-record errors are counted, never abort the pass

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep), RunSweep
  - engine/reconciler.go: Batch operations
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ledgerline/commission-engine/store/sqlite"
)

// SweepScheduler runs reconciliation sweeps on a timer.
type SweepScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(store *sqlite.Store, handler *Handler) *SweepScheduler {
	return &SweepScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()
	today := ss.Handler.Clock()

	run, err := RunSweep(ctx, ss.Store, ss.Handler.Reconciler, today)
	if err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
		return
	}

	touched := run.CommissionsApproved + run.CommissionsPaid + run.CommissionsForfeited +
		run.PoliciesExpired + run.PaymentsProcessing + run.PaymentsFailed + run.PaymentsRetried
	if touched > 0 || run.Skipped > 0 {
		log.Printf("[Scheduler] Sweep %s: %d records updated, %d skipped, %d renewals due",
			run.ID, touched, run.Skipped, run.RenewalsDue)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (ss *SweepScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
