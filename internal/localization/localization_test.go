package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	s, err := NewService("ru")
	require.NoError(t, err)

	tests := []struct {
		name   string
		lang   string
		key    string
		params map[string]interface{}
		want   string
	}{
		{
			name:   "english with params",
			lang:   "en",
			key:    "notify.preparing",
			params: map[string]interface{}{"company": "Kurut", "ticket": "4821", "order_type": "Eat in"},
			want:   "Kurut: order #4821 (Eat in) is being prepared.",
		},
		{
			name: "unknown language falls back to default",
			lang: "de",
			key:  "order_type.TAKE_AWAY",
			want: "С собой",
		},
		{
			name: "missing key returns key",
			lang: "en",
			key:  "notify.nope",
			want: "notify.nope",
		},
		{
			name: "section instead of leaf returns key",
			lang: "en",
			key:  "notify",
			want: "notify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Get(tt.lang, tt.key, tt.params))
		})
	}
}

func TestNewServiceRejectsUnknownDefault(t *testing.T) {
	_, err := NewService("xx")
	assert.Error(t, err)
}
