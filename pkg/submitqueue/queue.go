// Package submitqueue delivers scan records to the ledger in admission order.
//
// Admission (Enqueue) never blocks on the network: it fires the operator
// feedback, updates the recent-scan ring, appends the record and makes sure
// a delivery goroutine is running. The delivery goroutine always works on
// the head of the queue and only removes it once the ledger has acknowledged
// the write. A failed write is retried after a fixed backoff; nothing behind
// the head is attempted until the head goes through.
package submitqueue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/feedback"
	"github.com/redromiee/bag-tracker/pkg/models"
)

const DefaultBackoff = 2 * time.Second

var log = logrus.StandardLogger().WithField("package", "submitqueue")

// Writer persists a single record remotely. A nil error is an acknowledgement.
type Writer interface {
	Record(ctx context.Context, record models.ScanRecord) error
}

type WriterFunc func(ctx context.Context, record models.ScanRecord) error

func (f WriterFunc) Record(ctx context.Context, record models.ScanRecord) error {
	return f(ctx, record)
}

// Ring receives the display projection of every admitted record.
type Ring interface {
	Push(entry models.RecentScanEntry)
}

type Stats struct {
	Pending   int
	Delivered uint64
	Attempts  uint64
	Failures  uint64
}

type Queue struct {
	writer  Writer
	emitter feedback.Emitter
	ring    Ring
	clock   Clock
	backoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []models.ScanRecord
	running bool
	closed  bool
	idle    chan struct{}
	stats   Stats
}

func New(writer Writer, opts ...Option) *Queue {
	q := &Queue{
		writer:  writer,
		emitter: feedback.Nop,
		clock:   SystemClock,
		backoff: DefaultBackoff,
		idle:    make(chan struct{}),
	}
	close(q.idle)
	for _, opt := range opts {
		opt(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

func (q *Queue) Clock() Clock {
	return q.clock
}

// Enqueue admits a record. It returns immediately.
func (q *Queue) Enqueue(record models.ScanRecord) {
	q.emitter.Emit()
	if q.ring != nil {
		q.ring.Push(record.Recent())
	}

	q.mu.Lock()
	q.pending = append(q.pending, record)
	start := !q.running && !q.closed
	if start {
		q.running = true
		q.idle = make(chan struct{})
	}
	depth := len(q.pending)
	q.mu.Unlock()

	log.Debugf("admitted %s (depth %d)", record, depth)
	if start {
		go q.deliver()
	}
}

// Depth is the number of records still waiting for an acknowledgement.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.pending)
	return s
}

// Pending returns a copy of the records not yet acknowledged, head first.
func (q *Queue) Pending() []models.ScanRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.ScanRecord, len(q.pending))
	copy(out, q.pending)
	return out
}

// Wait blocks until no delivery cycle is running, which happens once the
// queue is empty or after Close.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the delivery goroutine. Records still pending are not delivered.
// It is meant for process shutdown only; resetting a capture session must not
// close the queue.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	left := len(q.pending)
	q.mu.Unlock()
	q.cancel()
	if left > 0 {
		log.Warnf("closing submission queue with %d undelivered records", left)
	}
}

func (q *Queue) deliver() {
	attempt := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.ctx.Err() != nil {
			q.running = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		head := q.pending[0]
		q.stats.Attempts++
		q.mu.Unlock()

		attempt++
		err := q.writer.Record(q.ctx, head)
		if err == nil {
			q.mu.Lock()
			q.pending[0] = models.ScanRecord{}
			q.pending = q.pending[1:]
			q.stats.Delivered++
			q.mu.Unlock()
			log.Debugf("delivered %s after %d attempt(s)", head, attempt)
			attempt = 0
			continue
		}

		q.mu.Lock()
		q.stats.Failures++
		q.mu.Unlock()
		log.Debugf("delivery of %s failed (attempt %d), retrying in %s: %v", head, attempt, q.backoff, err)

		select {
		case <-q.clock.After(q.backoff):
		case <-q.ctx.Done():
		}
	}
}
