package rabbitmq

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queue-bot/internal/storage"
)

type recordingInjector struct {
	events []storage.ChangeEvent
}

func (r *recordingInjector) Inject(ev storage.ChangeEvent) {
	r.events = append(r.events, ev)
}

func newTestBridge(origin string, inj Injector) *Bridge {
	return &Bridge{
		origin:   origin,
		injector: inj,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:      make(chan storage.ChangeEvent, 1),
		stopCh:   make(chan struct{}),
	}
}

func TestHandleSkipsOwnEvents(t *testing.T) {
	inj := &recordingInjector{}
	b := newTestBridge("node-a", inj)

	own, err := json.Marshal(storage.ChangeEvent{Table: storage.TableOrders, Type: storage.EventInsert, Origin: "node-a"})
	require.NoError(t, err)
	foreign, err := json.Marshal(storage.ChangeEvent{
		Table:  storage.TableOrders,
		Type:   storage.EventUpdate,
		Origin: "node-b",
		New:    json.RawMessage(`{"id":"o1"}`),
		At:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	b.handle(own)
	b.handle(foreign)
	b.handle([]byte(`not json`))
	b.handle([]byte(`{"table":""}`))

	require.Len(t, inj.events, 1)
	assert.Equal(t, storage.EventUpdate, inj.events[0].Type)
	assert.JSONEq(t, `{"id":"o1"}`, string(inj.events[0].New))
}

func TestSinkStampsOriginAndNeverBlocks(t *testing.T) {
	b := newTestBridge("node-a", &recordingInjector{})

	b.Sink(storage.ChangeEvent{Table: storage.TableOrders, Type: storage.EventInsert})
	b.Sink(storage.ChangeEvent{Table: storage.TableOrders, Type: storage.EventUpdate})

	ev := <-b.out
	assert.Equal(t, "node-a", ev.Origin)
	assert.Equal(t, storage.EventInsert, ev.Type)
	assert.Len(t, b.out, 0)
}
