package caroundtripper_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redromiee/bag-tracker/pkg/ledgerclient/caroundtripper"
)

func writeCA(t *testing.T, blocks ...*pem.Block) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ca.pem")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	for _, b := range blocks {
		require.NoError(t, pem.Encode(f, b))
	}
	return p
}

func selfSigned(t *testing.T) *pem.Block {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "ledger test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return &pem.Block{Type: "CERTIFICATE", Bytes: der}
}

func TestNew_Bundle(t *testing.T) {
	p := writeCA(t, selfSigned(t), selfSigned(t))
	c, err := caroundtripper.New(p)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNew_WrongBlockType(t *testing.T) {
	p := writeCA(t, &pem.Block{Type: "PRIVATE KEY", Bytes: []byte("x")})
	_, err := caroundtripper.New(p)
	assert.Error(t, err)
}

func TestNew_Empty(t *testing.T) {
	p := writeCA(t)
	_, err := caroundtripper.New(p)
	assert.Error(t, err)
}
