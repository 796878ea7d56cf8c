package fs_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redromiee/bag-tracker/pkg/storage/fs"
)

func TestArchiveRetrieve(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	archive, err := fs.New(dir)
	require.NoError(t, err)

	modTime := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	body := bytes.NewReader([]byte("workbook"))
	require.NoError(t, archive.Archive(context.Background(), "scans_2024-03-01_2024-03-04.xlsx", modTime, body))

	// the reader is rewound for the caller
	pos, err := body.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Zero(t, pos)

	st, err := os.Stat(filepath.Join(dir, "scans_2024-03-01_2024-03-04.xlsx"))
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(modTime))

	r, err := archive.Retrieve(context.Background(), "scans_2024-03-01_2024-03-04.xlsx")
	require.NoError(t, err)
	defer r.(io.Closer).Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(got))
}

func TestArchiveRejectsPaths(t *testing.T) {
	archive, err := fs.New(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.xlsx", "a/b.xlsx"} {
		err := archive.Archive(context.Background(), name, time.Time{}, bytes.NewReader(nil))
		assert.Error(t, err, name)
	}
}

func TestRetrieveMissing(t *testing.T) {
	archive, err := fs.New(t.TempDir())
	require.NoError(t, err)

	_, err = archive.Retrieve(context.Background(), "nope.xlsx")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
