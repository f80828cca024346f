package presence

import "context"

type (
	// Geolocator reports where the customer currently is.
	Geolocator interface {
		CurrentPosition(ctx context.Context) (Coords, error)
	}

	// Scanner decodes a QR code into its payload.
	Scanner interface {
		Scan(ctx context.Context) (string, error)
	}
)
