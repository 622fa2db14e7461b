package notify

import "time"

// RetryPolicy schedules redelivery of failed events with exponential
// backoff and parks them after MaxAttempts failures.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 8, Base: 2 * time.Second, Max: 10 * time.Minute}

// Next returns the delay before the next try after failed attempts,
// or park=true once the attempts are exhausted.
func (p RetryPolicy) Next(failed int) (delay time.Duration, park bool) {
	if failed >= p.MaxAttempts {
		return 0, true
	}
	delay = p.Base
	for i := 1; i < failed; i++ {
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max, false
		}
	}
	if p.Max > 0 && delay > p.Max {
		delay = p.Max
	}
	return delay, false
}
