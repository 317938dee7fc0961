/*
scheduler.go - Periodic reconciliation sweep

PURPOSE:
  Re-runs reconciliation for every client on an interval. Every change made
  through the API is already reconciled; the sweep repairs clients whose
  records were written by other tools (imports, manual SQL) and keeps the
  cached available credit honest.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each sweep goes through Service.ReconcileAll, so it takes the same
    per-client locks as API requests
  - A failing client is logged and skipped; the sweep continues
  - After each sweep the run log is trimmed to the newest RunRetention
    entries per client, so periodic sweeps do not grow it without bound

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)
  - RunRetention: Runs kept per client (default: 100, 0 keeps all)

USAGE:
  sweeper := NewReconciliationScheduler(service, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: ReconcileAll endpoint (manual sweep)
  - settlement/service.go: ReconcileAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/settlement-engine/settlement"
)

// DefaultRunRetention is how many runs per client a sweep keeps.
const DefaultRunRetention = 100

// ReconciliationScheduler sweeps all clients periodically.
type ReconciliationScheduler struct {
	Service       *settlement.Service
	CheckInterval time.Duration
	Enabled       bool
	RunRetention  int
	Logger        zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(svc *settlement.Service, logger zerolog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		RunRetention:  DefaultRunRetention,
		Logger:        logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info().Msg("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info().Dur("interval", rs.CheckInterval).Msg("started")
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info().Msg("stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	rs.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			rs.Sweep(ctx)
		case <-stop:
			return
		}
	}
}

// Sweep reconciles every client once and returns how many succeeded.
func (rs *ReconciliationScheduler) Sweep(ctx context.Context) int {
	start := time.Now()
	done, err := rs.Service.ReconcileAll(ctx)
	pruned, pruneErr := rs.Service.PruneRuns(ctx, rs.RunRetention)
	if pruneErr != nil {
		rs.Logger.Warn().Err(pruneErr).Msg("prune run log")
	}

	ev := rs.Logger.Info()
	if err != nil {
		ev = rs.Logger.Warn().Err(err)
	}
	ev.Int("reconciled", done).Int("pruned", pruned).Dur("took", time.Since(start)).Msg("sweep finished")
	return done
}
