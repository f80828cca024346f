package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultInterval = 30 * time.Second
	pingTimeout     = 5 * time.Second
)

type checkStatus struct {
	isUp         bool
	since        time.Time
	failureCount int
}

// Worker pings dependencies periodically and tells admins when one goes down or
// comes back. Ready reports whether every check passed on its last run.
type Worker struct {
	checks   []Check
	telegram TelegramNotifier
	adminIDs []int64
	interval time.Duration
	logger   *slog.Logger

	statusMu sync.RWMutex
	statuses map[string]*checkStatus

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker creates the worker. telegram may be nil, then transitions are only logged.
func NewWorker(
	checks []Check,
	telegram TelegramNotifier,
	adminIDs []int64,
	interval time.Duration,
	logger *slog.Logger,
) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		checks:   checks,
		telegram: telegram,
		adminIDs: adminIDs,
		interval: interval,
		logger:   logger,
		statuses: make(map[string]*checkStatus),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return "healthcheck"
}

func (w *Worker) Start() error {
	w.logger.Info("Starting health check worker",
		"interval", w.interval,
		"checks", len(w.checks),
		"admin_count", len(w.adminIDs))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in healthcheck worker goroutine", "panic", r)
			}
		}()
		w.run()
	}()
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping health check worker")
	close(w.stopCh)
	<-w.doneCh
}

// Ready is false until the first round ran and while any check fails.
func (w *Worker) Ready() bool {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()

	if len(w.statuses) < len(w.checks) {
		return false
	}
	for _, s := range w.statuses {
		if !s.isUp {
			return false
		}
	}
	return true
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ctx := context.Background()
	w.checkAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkAll(ctx)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) checkAll(ctx context.Context) {
	for _, check := range w.checks {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := check.Ping(pingCtx)
		cancel()

		if err != nil {
			w.logger.Warn("Health check failed", "check", check.Name, "error", err)
		}
		w.updateStatus(ctx, check.Name, err == nil)
	}
}

func (w *Worker) updateStatus(ctx context.Context, name string, isUp bool) {
	now := time.Now()

	w.statusMu.Lock()
	prev, exists := w.statuses[name]
	if !exists {
		w.statuses[name] = &checkStatus{isUp: isUp, since: now}
		if !isUp {
			w.statuses[name].failureCount = 1
		}
		w.statusMu.Unlock()
		if !isUp {
			w.notify(ctx, fmt.Sprintf("🚨 %s is down", name))
		}
		return
	}

	var message string
	switch {
	case prev.isUp && !isUp:
		prev.isUp = false
		prev.failureCount = 1
		prev.since = now
		message = fmt.Sprintf("🚨 %s is down", name)
	case !prev.isUp && !isUp:
		prev.failureCount++
	case !prev.isUp && isUp:
		message = fmt.Sprintf("✅ %s recovered after %s", name, formatDuration(now.Sub(prev.since)))
		prev.isUp = true
		prev.failureCount = 0
		prev.since = now
	}
	w.statusMu.Unlock()

	if message != "" {
		w.notify(ctx, message)
	}
}

func (w *Worker) notify(ctx context.Context, message string) {
	w.logger.Info("Health status changed", "message", message)
	if w.telegram == nil {
		return
	}
	for _, adminID := range w.adminIDs {
		if err := w.telegram.SendMessage(ctx, adminID, message); err != nil {
			w.logger.Error("Failed to send notification to admin",
				"admin_id", adminID,
				"error", err)
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d sec", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d min %d sec", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%d h %d min", int(d.Hours()), int(d.Minutes())%60)
}
