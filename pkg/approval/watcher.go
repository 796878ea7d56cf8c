// Package approval periodically confirms that the operator is still approved.
package approval

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultInterval = 5 * time.Minute

var log = logrus.StandardLogger().WithField("package", "approval")

// ErrSessionRevoked ends the operator session; it is never retried.
var ErrSessionRevoked = errors.New("operator approval revoked")

type Checker interface {
	CheckApproval(ctx context.Context, username, token string) (bool, error)
}

type Watcher struct {
	checker  Checker
	username string
	token    string
	interval time.Duration
	onRevoke func()
}

type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithRevokeHandler registers the teardown to run once approval is withdrawn.
func WithRevokeHandler(f func()) Option {
	return func(w *Watcher) {
		w.onRevoke = f
	}
}

func New(checker Checker, username, token string, opts ...Option) *Watcher {
	w := &Watcher{
		checker:  checker,
		username: username,
		token:    token,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check performs a single approval check. Transport failures are returned
// as is; only an explicit negative answer yields ErrSessionRevoked.
func (w *Watcher) Check(ctx context.Context) error {
	approved, err := w.checker.CheckApproval(ctx, w.username, w.token)
	if err != nil {
		return err
	}
	if !approved {
		return ErrSessionRevoked
	}
	return nil
}

// Run checks on every tick until ctx is done or approval is revoked. The
// check at load is left to the caller (see Check), so the first one here
// happens one interval in. A failed check (ledger unreachable) does not end
// the session.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := w.Check(ctx)
		switch {
		case errors.Is(err, ErrSessionRevoked):
			log.Warnf("approval for %s was revoked", w.username)
			if w.onRevoke != nil {
				w.onRevoke()
			}
			return err
		case err != nil && ctx.Err() == nil:
			log.Warnf("unable to check approval: %v", err)
		}
	}
}
