package model

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/redromiee/bag-tracker/pkg/models"
)

// ErrDuplicate is returned by Append when an entry with the same ScanId is
// already stored. Retried deliveries end up here.
var ErrDuplicate = errors.New("scan already recorded")

type Appender interface {
	Append(ctx context.Context, entry models.LedgerEntry) error
}

type Deleter interface {
	// Delete removes every entry matching key and returns how many were removed.
	Delete(ctx context.Context, key models.ScanKey) (int, error)
}

type Lister interface {
	List(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error)
}

type Ledger interface {
	Appender
	Deleter
	Lister
}

// Archiver keeps a copy of every generated export.
type Archiver interface {
	Archive(ctx context.Context, name string, modTime time.Time, r io.ReadSeeker) error
}

// Retriever gives back a previously archived export.
type Retriever interface {
	Retrieve(ctx context.Context, name string) (io.ReadSeeker, error)
}

type RWArchive interface {
	Archiver
	Retriever
}
