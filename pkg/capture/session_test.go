package capture_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redromiee/bag-tracker/pkg/capture"
	"github.com/redromiee/bag-tracker/pkg/models"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

type collector struct {
	records []models.ScanRecord
}

func (c *collector) Enqueue(r models.ScanRecord) {
	c.records = append(c.records, r)
}

var now = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newSession(t *testing.T, scanType models.ScanType) (*capture.Session, *collector) {
	t.Helper()
	c := &collector{}
	s, err := capture.NewSession(scanType, "alice", c, fixedClock{now})
	require.NoError(t, err)
	return s, c
}

func TestSession_BinLengthValidation(t *testing.T) {
	tests := []struct {
		scanType models.ScanType
		input    string
		ok       bool
	}{
		{models.Forward, "B12", true},
		{models.Forward, "B123", false},
		{models.Forward, "ÄB1", true},
		{models.Forward, "ÄÖÜ1", false},
		{models.ReturnToOrigin, "R123", true},
		{models.ReturnToOrigin, "R1234", false},
		{models.Forward, "   ", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scanType)+"/"+strings.TrimSpace(tt.input), func(t *testing.T) {
			s, c := newSession(t, tt.scanType)
			out, err := s.Input(tt.input)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, capture.BinAccepted, out.Result)
				assert.Equal(t, capture.AwaitingBag, s.Phase())
				bin, ok := s.ActiveBin()
				assert.True(t, ok)
				assert.Equal(t, tt.input, bin)
				return
			}

			var vErr *capture.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, capture.AwaitingBin, vErr.Phase)
			assert.Equal(t, capture.AwaitingBin, s.Phase())
			_, ok := s.ActiveBin()
			assert.False(t, ok)
			assert.Empty(t, c.records)
		})
	}
}

func TestSession_PersistentBin(t *testing.T) {
	s, c := newSession(t, models.Forward)

	_, err := s.Input("B12")
	require.NoError(t, err)
	bin, _ := s.ActiveBin()
	assert.Equal(t, "B12", bin)

	for _, bag := range []string{"X1", "X2"} {
		out, err := s.Input(bag)
		require.NoError(t, err)
		assert.Equal(t, capture.BagAdmitted, out.Result)
		require.NotNil(t, out.Record)
		assert.Equal(t, capture.AwaitingBag, s.Phase())
	}

	require.Len(t, c.records, 2)
	for i, bag := range []string{"X1", "X2"} {
		r := c.records[i]
		assert.Equal(t, "B12", r.BinId)
		assert.Equal(t, bag, r.BagId)
		assert.Equal(t, models.Forward, r.ScanType)
		assert.Equal(t, "alice", r.Operator)
		assert.Equal(t, now, r.CapturedAt)
		assert.NotEmpty(t, r.ScanId)
	}
	assert.NotEqual(t, c.records[0].ScanId, c.records[1].ScanId)
}

func TestSession_BagCodesAreNotLengthChecked(t *testing.T) {
	s, c := newSession(t, models.Forward)
	_, err := s.Input("B1")
	require.NoError(t, err)

	_, err = s.Input("BAG-0000000000123")
	require.NoError(t, err)
	require.Len(t, c.records, 1)
}

func TestSession_EmptyBagRejected(t *testing.T) {
	s, c := newSession(t, models.ReturnToOrigin)
	_, err := s.Input("R1")
	require.NoError(t, err)

	_, err = s.Input("")
	var vErr *capture.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, capture.AwaitingBag, s.Phase())
	assert.Empty(t, c.records)
}

func TestSession_ChangeBin(t *testing.T) {
	s, c := newSession(t, models.Forward)
	_, err := s.Input("B12")
	require.NoError(t, err)
	_, err = s.Input("X1")
	require.NoError(t, err)

	s.ChangeBin()
	assert.Equal(t, capture.AwaitingBin, s.Phase())
	_, ok := s.ActiveBin()
	assert.False(t, ok)

	// The next input is a bin again, so a long bag-like code is rejected.
	_, err = s.Input("X2000")
	assert.Error(t, err)

	_, err = s.Input("C7")
	require.NoError(t, err)
	_, err = s.Input("X3")
	require.NoError(t, err)

	require.Len(t, c.records, 2)
	assert.Equal(t, "B12", c.records[0].BinId)
	assert.Equal(t, "C7", c.records[1].BinId)
}

func TestSession_Prompt(t *testing.T) {
	s, _ := newSession(t, models.ReturnToOrigin)
	assert.Equal(t, "Scan bin (max 4 characters)", s.Prompt())
	_, err := s.Input("R9")
	require.NoError(t, err)
	assert.Equal(t, "Scan bag for bin R9", s.Prompt())
}

func TestNewSession_InvalidType(t *testing.T) {
	_, err := capture.NewSession("XYZ", "alice", &collector{}, fixedClock{now})
	assert.Error(t, err)
}

func TestLineDevice(t *testing.T) {
	d := capture.NewLineDevice(strings.NewReader("B12\n\n  X1  \nX2\n"))
	require.NoError(t, d.Open())
	defer d.Close()

	var codes []string
	for d.ScanCode() {
		codes = append(codes, d.CurrentCode())
	}
	require.NoError(t, d.Err())
	assert.Equal(t, []string{"B12", "X1", "X2"}, codes)
}

func TestSerialDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyACM0")
	require.NoError(t, os.WriteFile(path, []byte("R100\r\nY1\r\n"), 0o600))

	d := capture.NewSerialDevice(path)
	require.NoError(t, d.Open())
	var codes []string
	for d.ScanCode() {
		codes = append(codes, d.CurrentCode())
	}
	require.NoError(t, d.Err())
	require.NoError(t, d.Close())
	assert.Equal(t, []string{"R100", "Y1"}, codes)

	missing := capture.NewSerialDevice(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, missing.Open())
}
