package b2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	rcloneb2 "github.com/rclone/rclone/backend/b2"
	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/config/configmap"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/crypt"
	"github.com/redromiee/bag-tracker/pkg/storage/model"
	"github.com/redromiee/bag-tracker/pkg/storage/rclone"
)

var log = logrus.StandardLogger().WithField("package", "storage/b2")

var _ model.RWArchive = (*B2)(nil)

const DefaultPrefix = "exports"

// B2 archives exports in a Backblaze B2 bucket, sealed when a passphrase is set.
type B2 struct {
	b2fs       fs.Fs
	bucketName string
	prefix     string
	box        *crypt.Box
}

type Config struct {
	Account    string
	Key        string
	BucketName string
	Prefix     string

	// Encryption specific
	Passphrase string
}

func (c Config) validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	if c.BucketName == "" {
		return fmt.Errorf("bucket name is required")
	}
	return nil
}

func New(config Config) (*B2, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Passphrase == "" {
		log.Warnf("no passphrase provided, archived exports will not be encrypted")
	}

	b2fs, err := rcloneb2.NewFs(context.Background(),
		"b2",
		config.BucketName+"/",
		configmap.Simple{
			"account":    config.Account,
			"key":        config.Key,
			"chunk_size": "5M",
		},
	)
	if err != nil {
		return nil, err
	}

	b := &B2{
		b2fs:       b2fs,
		bucketName: config.BucketName,
		prefix:     config.Prefix,
	}
	if config.Passphrase != "" {
		if b.box, err = crypt.New(config.Passphrase); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *B2) remote(name string) string {
	return objectName(b.prefix, name)
}

func objectName(prefix, name string) string {
	return path.Join(prefix, path.Base(name))
}

func (b *B2) Archive(ctx context.Context, name string, modTime time.Time, r io.ReadSeeker) (err error) {
	body := r
	if b.box != nil {
		if body, err = b.box.Seal(r); err != nil {
			return err
		}
		defer func() {
			if _, seekErr := r.Seek(0, io.SeekStart); err == nil {
				err = seekErr
			}
		}()
	}

	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err = body.Seek(0, io.SeekStart); err != nil {
		return err
	}

	info := rclone.NewUpload(b.bucketName, b.remote(name), modTime, size)
	obj, err := b.b2fs.Put(ctx, body, info, &fs.RangeOption{Start: 0, End: size})
	if err != nil {
		return err
	}
	log.Debugf("archived %s (%d bytes)", obj.Remote(), size)
	if b.box == nil {
		_, err = r.Seek(0, io.SeekStart)
	}
	return err
}

func (b *B2) Retrieve(ctx context.Context, name string) (io.ReadSeeker, error) {
	obj, err := b.b2fs.NewObject(ctx, b.remote(name))
	if err != nil {
		if errors.Is(err, fs.ErrorObjectNotFound) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}

	objReader, err := obj.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer objReader.Close()

	if b.box != nil {
		return b.box.Open(objReader)
	}
	buffer := bytes.NewBuffer(nil)
	if _, err := io.Copy(buffer, objReader); err != nil {
		return nil, err
	}
	return bytes.NewReader(buffer.Bytes()), nil
}
