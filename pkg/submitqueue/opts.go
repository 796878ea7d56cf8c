package submitqueue

import (
	"time"

	"github.com/redromiee/bag-tracker/pkg/feedback"
)

type Option func(*Queue)

// WithBackoff sets the pause between two attempts on the same record.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.backoff = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(q *Queue) {
		if c != nil {
			q.clock = c
		}
	}
}

func WithEmitter(e feedback.Emitter) Option {
	return func(q *Queue) {
		if e != nil {
			q.emitter = e
		}
	}
}

func WithRing(r Ring) Option {
	return func(q *Queue) {
		q.ring = r
	}
}
