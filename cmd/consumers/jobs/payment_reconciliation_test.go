package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (r *countingReconciler) Reconcile(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestJobRunsImmediatelyAndOnTicks(t *testing.T) {
	r := &countingReconciler{}
	job := NewPaymentReconciliationJob(r, 10*time.Millisecond)

	job.Start(context.Background())
	defer job.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestJobStopsOnContextCancel(t *testing.T) {
	r := &countingReconciler{err: errors.New("db down")}
	job := NewPaymentReconciliationJob(r, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)
	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	job.Stop()
	job.Stop()

	time.Sleep(30 * time.Millisecond)
	settled := r.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, r.calls.Load())
}

func TestDefaultInterval(t *testing.T) {
	job := NewPaymentReconciliationJob(&countingReconciler{}, 0)
	assert.Equal(t, DefaultReconcileInterval, job.interval)
}
