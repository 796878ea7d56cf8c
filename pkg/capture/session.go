// Package capture implements the bin-then-bag scan flow of a single
// movement-type session.
package capture

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/models"
)

var log = logrus.StandardLogger().WithField("package", "capture")

type Phase int

const (
	AwaitingBin Phase = iota
	AwaitingBag
)

func (p Phase) String() string {
	switch p {
	case AwaitingBin:
		return "awaiting bin"
	case AwaitingBag:
		return "awaiting bag"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ValidationError rejects an input without changing the session.
type ValidationError struct {
	Phase  Phase
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q while %s: %s", e.Input, e.Phase, e.Reason)
}

// Admitter takes ownership of a completed scan record.
type Admitter interface {
	Enqueue(record models.ScanRecord)
}

type Clock interface {
	Now() time.Time
}

type Result int

const (
	BinAccepted Result = iota
	BagAdmitted
)

type Outcome struct {
	Result Result
	BinId  string
	Record *models.ScanRecord
}

// Session is the capture state for one selected movement type.
// It is not safe for concurrent use; callers serialise inputs.
type Session struct {
	scanType  models.ScanType
	operator  string
	phase     Phase
	activeBin string

	admitter Admitter
	clock    Clock
	newId    func() string
}

func NewSession(scanType models.ScanType, operator string, admitter Admitter, clock Clock) (*Session, error) {
	if !scanType.Valid() {
		return nil, fmt.Errorf("invalid scan type %q", scanType)
	}
	if admitter == nil {
		return nil, fmt.Errorf("admitter is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Session{
		scanType: scanType,
		operator: operator,
		phase:    AwaitingBin,
		admitter: admitter,
		clock:    clock,
		newId:    uuid.NewString,
	}, nil
}

func (s *Session) ScanType() models.ScanType {
	return s.scanType
}

func (s *Session) Phase() Phase {
	return s.phase
}

// ActiveBin returns the bin the next bag will be recorded against, if any.
func (s *Session) ActiveBin() (string, bool) {
	return s.activeBin, s.activeBin != ""
}

// Prompt is the instruction shown to the operator for the current phase.
func (s *Session) Prompt() string {
	if s.phase == AwaitingBag {
		return fmt.Sprintf("Scan bag for bin %s", s.activeBin)
	}
	return fmt.Sprintf("Scan bin (max %d characters)", s.scanType.MaxBinLength())
}

// Input feeds decoded or typed text into the session.
func (s *Session) Input(text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	switch s.phase {
	case AwaitingBin:
		return s.inputBin(text)
	case AwaitingBag:
		return s.inputBag(text)
	}
	return Outcome{}, fmt.Errorf("unexpected phase %s", s.phase)
}

func (s *Session) inputBin(text string) (Outcome, error) {
	if text == "" {
		return Outcome{}, &ValidationError{Phase: s.phase, Input: text, Reason: "bin code is empty"}
	}
	limit := s.scanType.MaxBinLength()
	if utf8.RuneCountInString(text) > limit {
		return Outcome{}, &ValidationError{
			Phase:  s.phase,
			Input:  text,
			Reason: fmt.Sprintf("%s bin codes are at most %d characters", s.scanType.DisplayName(), limit),
		}
	}

	s.activeBin = text
	s.phase = AwaitingBag
	log.Debugf("bin %s selected for %s", text, s.scanType)
	return Outcome{Result: BinAccepted, BinId: text}, nil
}

func (s *Session) inputBag(text string) (Outcome, error) {
	if text == "" {
		return Outcome{}, &ValidationError{Phase: s.phase, Input: text, Reason: "bag code is empty"}
	}

	record := models.ScanRecord{
		ScanId:     s.newId(),
		BinId:      s.activeBin,
		BagId:      text,
		ScanType:   s.scanType,
		Operator:   s.operator,
		CapturedAt: s.clock.Now(),
	}
	s.admitter.Enqueue(record)
	return Outcome{Result: BagAdmitted, BinId: s.activeBin, Record: &record}, nil
}

// ChangeBin forgets the active bin so the next input is read as a bin code.
func (s *Session) ChangeBin() {
	s.activeBin = ""
	s.phase = AwaitingBin
}
