// Package feedback signals the operator that a scan was accepted locally.
package feedback

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger().WithField("package", "feedback")

// Emitter fires a short, stateless acknowledgement. Implementations must not block.
type Emitter interface {
	Emit()
}

type Func func()

func (f Func) Emit() {
	f()
}

// Bell rings the terminal bell on the wrapped writer.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) Emit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.w.Write([]byte{'\a'}); err != nil {
		log.Debugf("unable to ring bell: %v", err)
	}
}

// Haptic stands in for a vibration motor on devices that have none.
type Haptic struct{}

func (Haptic) Emit() {
	log.Trace("haptic pulse")
}

type multi []Emitter

func (m multi) Emit() {
	for _, e := range m {
		e.Emit()
	}
}

// Multi combines several emitters; nil entries are skipped.
func Multi(emitters ...Emitter) Emitter {
	var m multi
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}
	return m
}

// Nop is used when no emitter is configured.
var Nop Emitter = Func(func() {})
