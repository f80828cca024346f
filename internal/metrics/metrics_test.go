package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("READY")
	m.ObserveTransition("READY")
	m.ObserveNotification("sms", "failed")
	m.ObserveStaleCartsDeleted(3)
	m.ObserveDroppedEvent()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("READY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("sms", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.staleCarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedEvents))
}
