package stalecarts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Worker deletes carts that were never confirmed
type Worker struct {
	orders   OrderService
	metrics  Metrics
	schedule string
	ttl      time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewWorker(orders OrderService, metrics Metrics, schedule string, ttl time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		orders:   orders,
		metrics:  metrics,
		schedule: schedule,
		ttl:      ttl,
		logger:   logger,
		cron:     cron.New(),
	}
}

func (w *Worker) Name() string {
	return "stale-carts"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		if err := w.run(context.Background()); err != nil {
			w.logger.Error("Stale cart cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stale cart cleanup: %w", err)
	}

	w.logger.Info("Stale cart cleanup scheduled", "schedule", w.schedule, "ttl", w.ttl)
	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Worker) run(ctx context.Context) error {
	deleted, err := w.orders.DeleteStaleCarts(ctx, w.ttl)
	if err != nil {
		return err
	}

	w.metrics.ObserveStaleCartsDeleted(deleted)
	if deleted > 0 {
		w.logger.Info("Stale carts deleted", "count", deleted)
	}
	return nil
}
