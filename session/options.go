package session

type config struct {
	workers         int
	continueOnError bool
	enumerate       bool
}

func defaultConfig() config {
	return config{
		workers:   8,
		enumerate: true,
	}
}

// Option is an option for a session.
type Option func(*config)

// WithWorkers sets the maximum number of node page fetches in flight at once.
// Values below one are treated as one.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = max(n, 1)
	}
}

// WithContinueOnError makes bulk loads and traversals skip node pages that fail
// to load instead of stopping. Skipped pages are reported by Failures.
// Cancellation still stops the operation.
func WithContinueOnError() Option {
	return func(c *config) {
		c.continueOnError = true
	}
}

// WithoutEnumeration makes LoadAll discover pages by following child links even
// when the source can list its pages.
func WithoutEnumeration() Option {
	return func(c *config) {
		c.enumerate = false
	}
}
