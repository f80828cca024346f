package smslogretention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultSchedule = "30 3 * * *"

// Worker drops SMS log entries older than the retention window
type Worker struct {
	logs      LogService
	metrics   Metrics
	schedule  string
	retention time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewWorker creates the retention worker; an empty schedule runs it daily at 03:30.
func NewWorker(logs LogService, metrics Metrics, schedule string, retention time.Duration, logger *slog.Logger) *Worker {
	if schedule == "" {
		schedule = defaultSchedule
	}
	return &Worker{
		logs:      logs,
		metrics:   metrics,
		schedule:  schedule,
		retention: retention,
		logger:    logger,
		cron:      cron.New(),
	}
}

func (w *Worker) Name() string {
	return "sms-log-retention"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.logger.Info("Running sms log retention")
		if err := w.run(context.Background()); err != nil {
			w.logger.Error("SMS log retention failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sms log retention: %w", err)
	}

	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping sms log retention worker")
	<-w.cron.Stop().Done()
}

func (w *Worker) run(ctx context.Context) error {
	purged, err := w.logs.PurgeLogs(ctx, w.retention)
	if err != nil {
		return err
	}

	w.metrics.ObserveSMSLogsPurged(purged)
	w.logger.Info("SMS logs purged", "count", purged, "retention", w.retention)
	return nil
}
