// Package crypt seals archived exports with a passphrase.
//
// A sealed blob is laid out as magic | salt | nonce | AES-256-GCM ciphertext.
// The key is derived from the passphrase and the per-blob salt with PBKDF2.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100_000
)

var magic = []byte("BTX1")

var (
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
	ErrNotSealed       = errors.New("input is not a sealed archive")
)

type Box struct {
	passphrase []byte
}

func New(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Box{passphrase: []byte(passphrase)}, nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(b.passphrase, salt, iterations, keySize, sha256.New)
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(c)
}

// Seal reads the whole input and returns the sealed blob.
func (b *Box) Seal(input io.Reader) (io.ReadSeeker, error) {
	plain, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	gcm, err := b.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plain)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plain, nil)
	return bytes.NewReader(out), nil
}

// Open reverses Seal.
func (b *Box) Open(input io.Reader) (io.ReadSeeker, error) {
	header := make([]byte, len(magic)+saltSize)
	if _, err := io.ReadFull(input, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSealed, err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, ErrNotSealed
	}
	gcm, err := b.aead(header[len(magic):])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(input, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSealed, err)
	}
	sealed, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return bytes.NewReader(plain), nil
}
