// Package recent keeps the last few locally accepted scans for display and undo.
package recent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/models"
)

const DefaultCapacity = 5

var log = logrus.StandardLogger().WithField("package", "recent")

var (
	ErrCancelled = errors.New("delete cancelled")
	ErrNotFound  = errors.New("entry not in recent scans")
)

// DeleteError is returned when the ledger did not confirm a delete.
// The local entry is kept in that case.
type DeleteError struct {
	Entry models.RecentScanEntry
	Err   error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("unable to delete %s/%s: %v", e.Entry.BinId, e.Entry.BagId, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// Deleter removes a scan from the ledger. It is called once per confirmed delete.
type Deleter interface {
	Delete(ctx context.Context, key models.ScanKey) error
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(entry models.RecentScanEntry) bool
}

type ConfirmFunc func(entry models.RecentScanEntry) bool

func (f ConfirmFunc) Confirm(entry models.RecentScanEntry) bool {
	return f(entry)
}

// Ring is a bounded, most-recent-first list of scans.
type Ring struct {
	mu       sync.Mutex
	entries  []models.RecentScanEntry
	capacity int
	deleter  Deleter
}

func New(deleter Deleter) *Ring {
	return &Ring{capacity: DefaultCapacity, deleter: deleter}
}

func (r *Ring) Push(entry models.RecentScanEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]models.RecentScanEntry{entry}, r.entries...)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[:r.capacity]
	}
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// All returns every entry regardless of scan type, most recent first.
func (r *Ring) All() []models.RecentScanEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RecentScanEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Entries returns the entries of the given scan type, most recent first.
func (r *Ring) Entries(scanType models.ScanType) []models.RecentScanEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RecentScanEntry
	for _, e := range r.entries {
		if e.ScanType == scanType {
			out = append(out, e)
		}
	}
	return out
}

// Delete asks for confirmation, then removes the scan from the ledger.
// The local entry goes away only once the ledger confirms the delete.
// There is no retry: a failed delete has to be issued again by the operator.
func (r *Ring) Delete(ctx context.Context, entry models.RecentScanEntry, confirm Confirmer) error {
	if !r.contains(entry) {
		return ErrNotFound
	}
	if confirm != nil && !confirm.Confirm(entry) {
		return ErrCancelled
	}
	if r.deleter == nil {
		return &DeleteError{Entry: entry, Err: errors.New("no ledger configured")}
	}

	if err := r.deleter.Delete(ctx, entry.Key()); err != nil {
		log.Warnf("delete %s/%s failed: %v", entry.BinId, entry.BagId, err)
		return &DeleteError{Entry: entry, Err: err}
	}

	r.removeKey(entry.Key())
	log.Debugf("deleted %s/%s (%s)", entry.BinId, entry.BagId, entry.ScanType)
	return nil
}

func (r *Ring) contains(entry models.RecentScanEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e == entry {
			return true
		}
	}
	return false
}

// removeKey drops every entry with the key, since the ledger deletes all
// rows matching it.
func (r *Ring) removeKey(key models.ScanKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Key() != key {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}
