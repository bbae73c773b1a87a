package postauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer periodically sweeps for records whose monitoring window has ended
// but that are still open. It reports them for analyst attention rather than
// closing them automatically, since only a human decides cleared vs chargeback.
type Timer struct {
	service  *Service
	interval time.Duration
	batch    int
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates a monitoring-window sweep timer.
func NewTimer(service *Service, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		interval: time.Hour,
		batch:    100,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeSweep(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in postauth sweep timer", "panic", fmt.Sprint(r))
		}
	}()

	ended, err := t.service.SweepEnded(ctx, time.Now(), t.batch)
	if err != nil {
		t.logger.Warn("failed to sweep monitoring windows", "error", err)
		return
	}
	for _, o := range ended {
		t.logger.Info("monitoring window ended without resolution",
			"postAuthOrderId", o.ID,
			"merchantId", o.MerchantID,
			"preAuthOrderId", o.PreAuthOrderID,
			"chargebackRisk", o.ChargebackRisk)
	}
}
