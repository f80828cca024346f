package healthcheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) SendMessage(_ context.Context, _ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func TestTransitionsNotifyAdmins(t *testing.T) {
	var dbErr error
	checks := []Check{{Name: "sqlite", Ping: func(context.Context) error { return dbErr }}}
	notifier := &recordingNotifier{}
	w := NewWorker(checks, notifier, []int64{42}, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.False(t, w.Ready())

	w.checkAll(context.Background())
	assert.True(t, w.Ready())
	assert.Empty(t, notifier.messages)

	dbErr = errors.New("disk I/O error")
	w.checkAll(context.Background())
	w.checkAll(context.Background())
	assert.False(t, w.Ready())
	assert.Equal(t, 2, w.statuses["sqlite"].failureCount)

	dbErr = nil
	w.checkAll(context.Background())
	assert.True(t, w.Ready())

	if assert.Len(t, notifier.messages, 2) {
		assert.Contains(t, notifier.messages[0], "sqlite is down")
		assert.Contains(t, notifier.messages[1], "sqlite recovered")
	}
}

func TestStartRunsFirstRoundImmediately(t *testing.T) {
	checks := []Check{{Name: "broker", Ping: func(context.Context) error { return nil }}}
	w := NewWorker(checks, nil, nil, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NoError(t, w.Start())
	assert.Eventually(t, w.Ready, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42 sec", formatDuration(42*time.Second))
	assert.Equal(t, "3 min 5 sec", formatDuration(185*time.Second))
	assert.Equal(t, "2 h 1 min", formatDuration(121*time.Minute))
}
