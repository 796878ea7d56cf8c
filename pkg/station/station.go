// Package station wires the capture flow of one operator on one device:
// the current movement-type session, its capture device, the recent-scan
// ring and the submission queue that outlives every session.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/capture"
	"github.com/redromiee/bag-tracker/pkg/feedback"
	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/recent"
	"github.com/redromiee/bag-tracker/pkg/submitqueue"
)

var log = logrus.StandardLogger().WithField("package", "station")

var (
	ErrNoSession = errors.New("no movement type selected")
	ErrClosed    = errors.New("station closed")
)

// Ledger is the remote side used by the station: writes go through the
// submission queue, deletes are issued directly from the recent-scan ring.
type Ledger interface {
	submitqueue.Writer
	recent.Deleter
}

type Config struct {
	Operator string
	Ledger   Ledger
	Emitter  feedback.Emitter
	Queue    []submitqueue.Option
}

// Event is delivered for every code read from a capture device.
type Event struct {
	Code    string
	Outcome capture.Outcome
	Err     error
}

type Station struct {
	operator string
	queue    *submitqueue.Queue
	ring     *recent.Ring

	mu      sync.Mutex
	session *capture.Session
	device  capture.Device
	closed  bool
}

func New(config Config) (*Station, error) {
	if config.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if config.Operator == "" {
		return nil, fmt.Errorf("operator is required")
	}
	ring := recent.New(config.Ledger)
	opts := []submitqueue.Option{
		submitqueue.WithEmitter(config.Emitter),
		submitqueue.WithRing(ring),
	}
	opts = append(opts, config.Queue...)
	return &Station{
		operator: config.Operator,
		queue:    submitqueue.New(config.Ledger, opts...),
		ring:     ring,
	}, nil
}

func (s *Station) Operator() string {
	return s.operator
}

// Select starts a fresh session for the movement type, discarding the
// previous one. device may be nil when input is typed only; otherwise it is
// opened here and its codes are fed through Submit until the session ends.
// Events for device codes are sent to events if it is not nil.
func (s *Station) Select(scanType models.ScanType, device capture.Device, events chan<- Event) error {
	session, err := capture.NewSession(scanType, s.operator, s.queue, s.queue.Clock())
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.resetLocked()
	s.session = session
	s.mu.Unlock()

	if device == nil {
		log.Debugf("session %s started", scanType)
		return nil
	}
	if err := device.Open(); err != nil {
		return fmt.Errorf("unable to open capture device: %w", err)
	}

	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		_ = device.Close()
		return nil
	}
	s.device = device
	s.mu.Unlock()

	go s.pump(session, device, events)
	log.Debugf("session %s started with capture device", scanType)
	return nil
}

func (s *Station) pump(session *capture.Session, device capture.Device, events chan<- Event) {
	defer s.releaseDevice(device)
	for device.ScanCode() {
		code := device.CurrentCode()
		outcome, err := s.submitTo(session, code)
		if errors.Is(err, ErrNoSession) {
			break
		}
		if events != nil {
			events <- Event{Code: code, Outcome: outcome, Err: err}
		}
	}
	if err := device.Err(); err != nil {
		log.Warnf("capture device stopped: %v", err)
	}
}

// releaseDevice closes a device whose pump has exited unless a reset
// already closed it.
func (s *Station) releaseDevice(device capture.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != device {
		return
	}
	s.device = nil
	if err := device.Close(); err != nil {
		log.Warnf("unable to close capture device: %v", err)
	}
}

// Reset discards the current session and releases its device. Records
// already admitted keep being delivered.
func (s *Station) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Station) resetLocked() {
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			log.Warnf("unable to close capture device: %v", err)
		}
		s.device = nil
	}
	s.session = nil
}

// Submit feeds a typed or decoded code into the current session.
func (s *Station) Submit(code string) (capture.Outcome, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return capture.Outcome{}, ErrNoSession
	}
	return s.submitTo(session, code)
}

func (s *Station) submitTo(session *capture.Session, code string) (capture.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != session {
		return capture.Outcome{}, ErrNoSession
	}
	return session.Input(code)
}

func (s *Station) ChangeBin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoSession
	}
	s.session.ChangeBin()
	return nil
}

// Session describes the current capture state.
type Session struct {
	ScanType  models.ScanType
	Phase     capture.Phase
	ActiveBin string
	Prompt    string
}

func (s *Station) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	bin, _ := s.session.ActiveBin()
	return Session{
		ScanType:  s.session.ScanType(),
		Phase:     s.session.Phase(),
		ActiveBin: bin,
		Prompt:    s.session.Prompt(),
	}, true
}

// Recent lists the recent scans of the active movement type.
func (s *Station) Recent() []models.RecentScanEntry {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return nil
	}
	return s.ring.Entries(session.ScanType())
}

// DeleteRecent removes the idx-th entry (0 is the most recent) of Recent.
func (s *Station) DeleteRecent(ctx context.Context, idx int, confirm recent.Confirmer) error {
	entries := s.Recent()
	if idx < 0 || idx >= len(entries) {
		return recent.ErrNotFound
	}
	return s.ring.Delete(ctx, entries[idx], confirm)
}

func (s *Station) QueueDepth() int {
	return s.queue.Depth()
}

func (s *Station) QueueStats() submitqueue.Stats {
	return s.queue.Stats()
}

// Flush waits for every admitted record to be acknowledged.
func (s *Station) Flush(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

// Close ends the session and stops delivery. Undelivered records are dropped.
func (s *Station) Close() {
	s.mu.Lock()
	s.closed = true
	s.resetLocked()
	s.mu.Unlock()
	s.queue.Close()
}
