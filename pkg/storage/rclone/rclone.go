// Package rclone adapts in-memory uploads to the object metadata rclone
// backends expect from a source file.
package rclone

import (
	"context"
	"time"

	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/hash"
)

var _ fs.ObjectInfo = (*Upload)(nil)
var _ fs.Info = (*uploadInfo)(nil)

type Upload struct {
	root    string
	remote  string
	modTime time.Time
	size    int64
}

// NewUpload describes an object of size bytes that will be stored as remote
// below root.
func NewUpload(root string, remote string, modTime time.Time, size int64) Upload {
	return Upload{
		root:    root,
		remote:  remote,
		modTime: modTime,
		size:    size,
	}
}

func (u Upload) String() string {
	return u.remote
}

func (u Upload) Remote() string {
	return u.remote
}

func (u Upload) ModTime(context.Context) time.Time {
	return u.modTime
}

func (u Upload) Size() int64 {
	return u.size
}

func (u Upload) Fs() fs.Info {
	return uploadInfo{root: u.root}
}

// Hash is left empty; the backend computes its own checksum on upload.
func (u Upload) Hash(context.Context, hash.Type) (string, error) {
	return "", nil
}

func (u Upload) Storable() bool {
	return true
}

type uploadInfo struct {
	root string
}

func (i uploadInfo) Name() string {
	return "upload"
}

func (i uploadInfo) Root() string {
	return i.root
}

func (i uploadInfo) String() string {
	return "upload:" + i.root
}

func (i uploadInfo) Precision() time.Duration {
	return time.Second
}

func (i uploadInfo) Hashes() hash.Set {
	return hash.Set(hash.None)
}

func (i uploadInfo) Features() *fs.Features {
	return &fs.Features{}
}
