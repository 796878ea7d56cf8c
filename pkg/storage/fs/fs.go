package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "storage/fs")

var _ model.RWArchive = (*Fs)(nil)

// Fs archives exports as plain files below a directory.
type Fs struct {
	dir string
}

func New(dir string) (*Fs, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Fs{dir: dir}, nil
}

func (f *Fs) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid archive name %q", name)
	}
	return filepath.Join(f.dir, name), nil
}

func (f *Fs) Archive(_ context.Context, name string, modTime time.Time, r io.ReadSeeker) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	out, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(p, modTime, modTime); err != nil {
			log.Warnf("unable to set mtime of %s: %v", p, err)
		}
	}
	log.Debugf("archived %s", p)
	return nil
}

func (f *Fs) Retrieve(_ context.Context, name string) (io.ReadSeeker, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
