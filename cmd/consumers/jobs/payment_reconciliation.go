package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultReconcileInterval = time.Minute

// Reconciler repairs bookings whose payment is paid while the booking is not
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// PaymentReconciliationJob periodically runs the payment reconciler. A pass never
// overlaps the previous one.
type PaymentReconciliationJob struct {
	reconciler Reconciler
	interval   time.Duration
	ticker     *time.Ticker
	done       chan struct{}
	stopOnce   sync.Once
	running    sync.Mutex
}

func NewPaymentReconciliationJob(reconciler Reconciler, interval time.Duration) *PaymentReconciliationJob {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &PaymentReconciliationJob{
		reconciler: reconciler,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

func (j *PaymentReconciliationJob) Start(ctx context.Context) {
	slog.Info("Starting payment reconciliation job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	go j.runOnce(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.runOnce(ctx)
			case <-ctx.Done():
				slog.Info("Payment reconciliation job stopped")
				return
			case <-j.done:
				slog.Info("Payment reconciliation job stopped")
				return
			}
		}
	}()
}

func (j *PaymentReconciliationJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

func (j *PaymentReconciliationJob) runOnce(ctx context.Context) {
	if !j.running.TryLock() {
		slog.Debug("Previous reconciliation pass still running, skipping tick")
		return
	}
	defer j.running.Unlock()

	passCtx, cancel := context.WithTimeout(ctx, j.interval)
	defer cancel()

	repaired, err := j.reconciler.Reconcile(passCtx)
	if err != nil {
		slog.Error("Payment reconciliation pass failed", "error", err, "repaired", repaired)
		return
	}
	if repaired > 0 {
		slog.Info("Payment reconciliation pass repaired bookings", "repaired", repaired)
		return
	}
	slog.Debug("No bookings needed reconciliation")
}
