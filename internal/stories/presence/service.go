package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

const joinCodePrefix = "queue:"

// Service validates that a customer is physically at the establishment.
type Service struct {
	radiusMeters float64
	timeout      time.Duration
	logger       *slog.Logger
}

func NewService(radiusMeters float64, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		radiusMeters: radiusMeters,
		timeout:      timeout,
		logger:       logger,
	}
}

// Verify asks the geolocator for the customer position and checks it against the
// establishment location. A nil target disables the check.
func (s *Service) Verify(ctx context.Context, locator Geolocator, target *Coords) (*Coords, error) {
	if target == nil {
		return nil, nil
	}
	if locator == nil {
		return nil, ErrGeolocationUnavailable
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type result struct {
		coords Coords
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, err := locator.CurrentPosition(ctx)
		done <- result{coords: c, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		s.logger.Warn("Geolocation timed out", "timeout", s.timeout)
		return nil, fmt.Errorf("%w: %v", ErrGeolocationUnavailable, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		if errors.Is(res.err, ErrGeolocationDenied) || errors.Is(res.err, ErrGeolocationUnavailable) {
			return nil, res.err
		}
		return nil, fmt.Errorf("%w: %v", ErrGeolocationUnavailable, res.err)
	}
	if !res.coords.Valid() {
		return nil, ErrGeolocationUnavailable
	}

	distance := DistanceMeters(res.coords, *target)
	if s.radiusMeters > 0 && distance > s.radiusMeters {
		s.logger.Info("Customer outside geofence",
			"distance_m", int(distance),
			"radius_m", int(s.radiusMeters))
		return nil, ErrOutOfRange
	}

	return &res.coords, nil
}

// ParseJoinCode extracts the company id from a scanned payload. Accepted forms are a
// bare id, "queue:<id>" and any URL whose path contains "/join/<id>".
func ParseJoinCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", ErrNoMatch
	}

	if strings.HasPrefix(code, joinCodePrefix) {
		return nonEmpty(strings.TrimPrefix(code, joinCodePrefix))
	}

	if strings.Contains(code, "://") {
		u, err := url.Parse(code)
		if err != nil {
			return "", ErrNoMatch
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i < len(parts)-1; i++ {
			if parts[i] == "join" {
				return nonEmpty(parts[i+1])
			}
		}
		return "", ErrNoMatch
	}

	if strings.ContainsAny(code, " /?#") {
		return "", ErrNoMatch
	}
	return code, nil
}

func nonEmpty(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrNoMatch
	}
	return id, nil
}

// StaticLocator is a Geolocator backed by a position the client already reported.
type StaticLocator struct {
	Coords *Coords
	Err    error
}

func (l StaticLocator) CurrentPosition(_ context.Context) (Coords, error) {
	if l.Err != nil {
		return Coords{}, l.Err
	}
	if l.Coords == nil {
		return Coords{}, ErrGeolocationUnavailable
	}
	return *l.Coords, nil
}

// ParseGeolocationError maps a client-reported failure reason to a typed error.
func ParseGeolocationError(reason string) error {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "":
		return nil
	case "denied", "permission_denied":
		return ErrGeolocationDenied
	default:
		return ErrGeolocationUnavailable
	}
}

// ResolveCode scans a code and returns the company id it points to.
func (s *Service) ResolveCode(ctx context.Context, scanner Scanner) (string, error) {
	if scanner == nil {
		return "", ErrNoMatch
	}
	raw, err := scanner.Scan(ctx)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	return ParseJoinCode(raw)
}

// StaticScanner returns a payload decoded on the client.
type StaticScanner string

func (s StaticScanner) Scan(_ context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoMatch
	}
	return string(s), nil
}
