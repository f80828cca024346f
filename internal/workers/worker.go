package workers

// Worker defines the interface for all background workers
type Worker interface {
	// Start schedules the worker; it must not block
	Start() error

	// Stop waits for a running job to finish
	Stop()

	// Name returns the worker name for logging
	Name() string
}
