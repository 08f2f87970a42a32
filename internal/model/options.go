package model

import "time"

const (
	// DefaultTablePrefix prefixes every entity table name.
	DefaultTablePrefix = "strata"

	// DefaultMaxRetries bounds how many times a versioned insert is
	// retried after a storage conflict before the underlying error is
	// surfaced. Retries are immediate; contention is expected to be
	// rare and to resolve within SQLite's own busy-wait behavior.
	DefaultMaxRetries = 5
)

type settings struct {
	prefix     string
	now        func() time.Time
	maxRetries int
}

func defaultSettings() settings {
	return settings{
		prefix:     DefaultTablePrefix,
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
	}
}

// Option configures a model at construction.
type Option func(*settings)

// WithTablePrefix overrides the table name prefix.
func WithTablePrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithClock overrides the time source used for createdAt stamps.
// Tests use this for deterministic rows.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithMaxRetries overrides the conflict retry bound for versioned
// inserts. n counts retries after the first attempt; 0 disables
// retrying entirely.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}
