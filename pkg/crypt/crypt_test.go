package crypt

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	box, err := New("warehouse")
	require.NoError(t, err)

	sealed, err := box.Seal(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)

	raw, err := io.ReadAll(sealed)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, magic))
	assert.NotContains(t, string(raw), "hello world")

	plain, err := box.Open(bytes.NewReader(raw))
	require.NoError(t, err)
	got, err := io.ReadAll(plain)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestSealUsesFreshSalt(t *testing.T) {
	box, err := New("warehouse")
	require.NoError(t, err)

	a, err := box.Seal(bytes.NewReader([]byte("same")))
	require.NoError(t, err)
	b, err := box.Seal(bytes.NewReader([]byte("same")))
	require.NoError(t, err)

	rawA, _ := io.ReadAll(a)
	rawB, _ := io.ReadAll(b)
	assert.NotEqual(t, rawA, rawB)
}

func TestOpenWrongPassphrase(t *testing.T) {
	box, err := New("right")
	require.NoError(t, err)
	sealed, err := box.Seal(bytes.NewReader([]byte("secret")))
	require.NoError(t, err)

	other, err := New("wrong")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsPlainInput(t *testing.T) {
	box, err := New("warehouse")
	require.NoError(t, err)

	_, err = box.Open(bytes.NewReader([]byte("PK\x03\x04 not sealed at all, just a zip")))
	assert.ErrorIs(t, err, ErrNotSealed)

	_, err = box.Open(bytes.NewReader([]byte("BT")))
	assert.ErrorIs(t, err, ErrNotSealed)
}

func TestNewRejectsEmptyPassphrase(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}
