package workers

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Start() error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *fakeWorker) Stop() {
	*w.log = append(*w.log, "stop "+w.name)
}

func TestManagerStopsInReverseOrder(t *testing.T) {
	var log []string
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)),
		&fakeWorker{name: "a", log: &log},
		&fakeWorker{name: "b", log: &log})

	require.NoError(t, m.Start())
	m.Stop()
	m.Stop()

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)),
		&fakeWorker{name: "a", log: &log},
		&fakeWorker{name: "b", log: &log, startErr: errors.New("bad schedule")})

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"start a", "stop a"}, log)
}
