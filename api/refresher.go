/*
refresher.go - Periodic accrual refresh

PURPOSE:
  Posts missing monthly accruals for every employee on a ticker, so cached
  balances stay current for employees nobody has looked at lately. Reads
  and approvals accrue lazily on their own; this only keeps idle employees
  from lagging behind.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - Each employee is refreshed in its own transaction; RefreshAll reports
    skipped (missing leave config) and failed employees
  - Accrual is idempotent, so overlapping with the HTTP refresh endpoint
    or a lazy accrual is harmless

CONFIGURATION:
  - Interval: ACCRUAL_REFRESH_INTERVAL. Zero disables the refresher.

USAGE:
  refresher := NewAccrualRefresher(svc, cfg.AccrualRefreshInterval, logger)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go:      RefreshAccruals endpoint (manual refresh)
  - leave/service.go: RefreshAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
	"go.uber.org/zap"
)

// AccrualRefresher runs the all-employee accrual refresh periodically.
type AccrualRefresher struct {
	Service  *leave.Service
	Interval time.Duration
	Logger   *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualRefresher creates a refresher. It does nothing until Start.
func NewAccrualRefresher(svc *leave.Service, interval time.Duration, logger *zap.Logger) *AccrualRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualRefresher{
		Service:  svc,
		Interval: interval,
		Logger:   logger.Named("accrual_refresher"),
	}
}

// Start begins the refresh loop. A zero interval leaves it disabled.
func (ar *AccrualRefresher) Start() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.Interval <= 0 {
		ar.Logger.Info("disabled, not starting")
		return
	}
	if ar.ticker != nil {
		return
	}

	ar.ticker = time.NewTicker(ar.Interval)
	ar.stop = make(chan struct{})
	ar.wg.Add(1)

	go ar.run(ar.ticker, ar.stop)

	ar.Logger.Info("started", zap.Duration("interval", ar.Interval))
}

// Stop stops the loop and waits for a running refresh to finish.
func (ar *AccrualRefresher) Stop() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.ticker == nil {
		return
	}
	ar.ticker.Stop()
	close(ar.stop)
	ar.wg.Wait()
	ar.ticker = nil
	ar.Logger.Info("stopped")
}

func (ar *AccrualRefresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ar.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	ar.refresh(ctx)

	for {
		select {
		case <-ticker.C:
			ar.refresh(ctx)
		case <-stop:
			return
		}
	}
}

func (ar *AccrualRefresher) refresh(ctx context.Context) (leave.RefreshReport, error) {
	asOf := ledger.Date(ar.Service.Clock.Now())
	report, err := ar.Service.RefreshAll(ctx, asOf)
	if err != nil {
		ar.Logger.Error("refresh failed", zap.Time("as_of", asOf), zap.Error(err))
		return report, err
	}
	if len(report.Skipped) > 0 {
		skipped := make([]string, 0, len(report.Skipped))
		for _, id := range report.Skipped {
			skipped = append(skipped, string(id))
		}
		ar.Logger.Warn("employees skipped for missing leave config", zap.Strings("employee_ids", skipped))
	}
	return report, nil
}
