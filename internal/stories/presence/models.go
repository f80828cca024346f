package presence

import (
	"errors"
	"math"
)

var (
	ErrGeolocationDenied      = errors.New("geolocation permission denied")
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	ErrOutOfRange             = errors.New("customer is too far from the establishment")
	ErrNoMatch                = errors.New("scanned code does not match a queue")
)

const earthRadiusMeters = 6371000.0

// Coords is a WGS84 coordinate pair.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coords) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceMeters returns the great-circle distance between two points (haversine).
func DistanceMeters(a, b Coords) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
