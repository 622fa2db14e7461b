package ride

import (
	"errors"
	"time"
)

type Option func(*Manager) error

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now == nil {
			return errors.New("nil clock")
		}
		m.now = now
		return nil
	}
}

// WithAttempts bounds the conflict retries of every unit.
func WithAttempts(n int) Option {
	return func(m *Manager) error {
		if n <= 0 {
			return errors.New("attempts must be positive")
		}
		m.attempts = n
		return nil
	}
}

// WithCompletionGrace sets how long after arrival an ongoing ride is
// completed by the sweeper.
func WithCompletionGrace(d time.Duration) Option {
	return func(m *Manager) error {
		if d < 0 {
			return errors.New("negative completion grace")
		}
		m.grace = d
		return nil
	}
}

// WithScreener replaces the automatic moderation rules.
func WithScreener(s Screener) Option {
	return func(m *Manager) error {
		m.screener = s
		return nil
	}
}
