/*
scheduler.go - Background renewal sweep

PURPOSE:
  Periodically scans for active policies whose coverage ends within the
  expiring-soon window and raises a renewal recommendation for each, so
  owners hear about a lapse before it happens rather than on the dashboard
  after the fact.

DESIGN:
  - Runs a background goroutine with a configurable sweep interval
  - Recommendations are keyed on the policy record, so a policy is flagged
    once: repeated sweeps neither duplicate a card nor resurrect one the
    owner dismissed

CONFIGURATION:
  - Interval: how often to sweep (default: 1 hour)
  - Window:   how far ahead to look (default: the dashboard's 30 days)

USAGE:
  sweeper := NewRenewalSweeper(store, recs)
  sweeper.Start()
  // ... later
  sweeper.Stop()
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
)

// ExpiringLister lists active policy records ending inside a date range.
// Implemented by store/sqlite.
type ExpiringLister interface {
	ListExpiring(ctx context.Context, from, to time.Time) ([]policy.Record, error)
}

// RenewalSweeper raises renewal recommendations for expiring policies.
type RenewalSweeper struct {
	Policies ExpiringLister
	Recs     *recommend.Service
	Interval time.Duration
	Window   time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRenewalSweeper creates a sweeper with the default interval and window.
func NewRenewalSweeper(policies ExpiringLister, recs *recommend.Service) *RenewalSweeper {
	return &RenewalSweeper{
		Policies: policies,
		Recs:     recs,
		Interval: 1 * time.Hour,
		Window:   policy.ExpiringWindow,
		stop:     make(chan struct{}),
	}
}

// Start begins the background sweep.
func (rs *RenewalSweeper) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)
	go rs.run()

	log.Printf("[Sweeper] Started with interval %v, window %v", rs.Interval, rs.Window)
}

// Stop stops the sweep and waits for an in-flight pass to finish.
func (rs *RenewalSweeper) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (rs *RenewalSweeper) run() {
	defer rs.wg.Done()

	// Sweep immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RenewalSweeper) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	records, err := rs.Policies.ListExpiring(ctx, now, now.Add(rs.Window))
	if err != nil {
		log.Printf("[Sweeper] Error listing expiring policies: %v", err)
		return
	}

	created := 0
	for _, rec := range records {
		made, err := rs.Recs.EnsureRenewal(ctx, rec)
		if err != nil {
			log.Printf("[Sweeper] Error flagging %s: %v", rec.ID, err)
			continue
		}
		if made {
			created++
		}
	}

	if created > 0 {
		log.Printf("[Sweeper] Flagged %d expiring policies out of %d in window", created, len(records))
	}
}

// RunNow triggers an immediate sweep (for tests and admin use).
func (rs *RenewalSweeper) RunNow() {
	rs.sweep()
}
