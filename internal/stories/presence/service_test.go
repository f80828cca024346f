package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shop = Coords{Lat: 43.2380, Lng: 76.9450}

type slowLocator struct{}

func (slowLocator) CurrentPosition(ctx context.Context) (Coords, error) {
	<-ctx.Done()
	return Coords{}, ctx.Err()
}

func newService(timeout time.Duration) *Service {
	return NewService(100, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVerify(t *testing.T) {
	nearby := Coords{Lat: 43.2385, Lng: 76.9450}
	far := Coords{Lat: 43.2500, Lng: 76.9450}

	tests := []struct {
		name    string
		locator Geolocator
		target  *Coords
		wantErr error
	}{
		{name: "inside radius", locator: StaticLocator{Coords: &nearby}, target: &shop},
		{name: "outside radius", locator: StaticLocator{Coords: &far}, target: &shop, wantErr: ErrOutOfRange},
		{name: "permission denied", locator: StaticLocator{Err: ErrGeolocationDenied}, target: &shop, wantErr: ErrGeolocationDenied},
		{name: "no position reported", locator: StaticLocator{}, target: &shop, wantErr: ErrGeolocationUnavailable},
		{name: "other failure maps to unavailable", locator: StaticLocator{Err: errors.New("gps off")}, target: &shop, wantErr: ErrGeolocationUnavailable},
		{name: "invalid coordinates", locator: StaticLocator{Coords: &Coords{Lat: 120}}, target: &shop, wantErr: ErrGeolocationUnavailable},
		{name: "no target disables check", locator: nil, target: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(time.Second).Verify(context.Background(), tt.locator, tt.target)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyTimeout(t *testing.T) {
	started := time.Now()
	_, err := newService(20*time.Millisecond).Verify(context.Background(), slowLocator{}, &shop)
	assert.ErrorIs(t, err, ErrGeolocationUnavailable)
	assert.Less(t, time.Since(started), time.Second)
}

func TestDistanceMeters(t *testing.T) {
	assert.InDelta(t, 0, DistanceMeters(shop, shop), 0.001)
	// 0.001 degrees of latitude is about 111 meters.
	assert.InDelta(t, 111.2, DistanceMeters(shop, Coords{Lat: shop.Lat + 0.001, Lng: shop.Lng}), 0.5)
}

func TestParseJoinCode(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "c1", want: "c1"},
		{raw: " queue:c1 ", want: "c1"},
		{raw: "https://queue.example.com/join/c1?src=table", want: "c1"},
		{raw: "https://queue.example.com/menu/c1", wantErr: true},
		{raw: "queue:", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "hello world", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseJoinCode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCode(t *testing.T) {
	svc := newService(time.Second)

	id, err := svc.ResolveCode(context.Background(), StaticScanner("queue:c7"))
	require.NoError(t, err)
	assert.Equal(t, "c7", id)

	_, err = svc.ResolveCode(context.Background(), StaticScanner(""))
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = svc.ResolveCode(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestParseGeolocationError(t *testing.T) {
	assert.NoError(t, ParseGeolocationError(""))
	assert.ErrorIs(t, ParseGeolocationError("PERMISSION_DENIED"), ErrGeolocationDenied)
	assert.ErrorIs(t, ParseGeolocationError("timeout"), ErrGeolocationUnavailable)
}
