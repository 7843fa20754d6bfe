package bfopt

const (
	DEBUG = false

	// Soft cap on counted fetch iterations when a machine config leaves
	// MaxIterations unset.
	DEFAULT_MAX_ITERATIONS uint = 1_000_000
)
