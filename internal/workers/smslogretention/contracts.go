package smslogretention

import (
	"context"
	"time"
)

type (
	LogService interface {
		PurgeLogs(ctx context.Context, retention time.Duration) (int64, error)
	}

	Metrics interface {
		ObserveSMSLogsPurged(n int64)
	}
)
