package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redromiee/bag-tracker/pkg/console"
	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/station"
	"github.com/redromiee/bag-tracker/pkg/submitqueue"
)

func init() {
	color.NoColor = true
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeLedger struct {
	mu        sync.Mutex
	records   []models.ScanRecord
	deleted   []models.ScanKey
	deleteErr error
	// gate, when set, holds every delivery until it is closed
	gate chan struct{}
}

func (l *fakeLedger) Record(_ context.Context, r models.ScanRecord) error {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return nil
}

func (l *fakeLedger) Delete(_ context.Context, key models.ScanKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleteErr != nil {
		return l.deleteErr
	}
	l.deleted = append(l.deleted, key)
	return nil
}

func (l *fakeLedger) bags() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.records {
		out = append(out, string(r.ScanType)+" "+r.BinId+"/"+r.BagId)
	}
	return out
}

func setup(t *testing.T, ledger *fakeLedger) (*Terminal, *syncBuffer) {
	t.Helper()
	st, err := station.New(station.Config{
		Operator: "alice",
		Ledger:   ledger,
		Queue:    []submitqueue.Option{submitqueue.WithBackoff(time.Millisecond)},
	})
	require.NoError(t, err)
	out := &syncBuffer{}
	term := New(Config{
		Station:      st,
		Console:      console.New(strings.NewReader(""), out),
		FlushTimeout: time.Second,
	})
	return term, out
}

func feed(lines ...string) <-chan string {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	return ch
}

func TestRunScanAndDelete(t *testing.T) {
	ledger := &fakeLedger{}
	term, out := setup(t, ledger)

	err := term.Run(context.Background(), feed(
		"G0",
		"fwd",
		"B1",
		"G1",
		"G2",
		"recent",
		"del 1",
		"y",
		"depth",
		"quit",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"FWD B1/G1", "FWD B1/G2"}, ledger.bags())
	assert.Equal(t, []models.ScanKey{{BinId: "B1", BagId: "G2", ScanType: models.Forward}}, ledger.deleted)

	text := out.String()
	assert.Contains(t, text, "Select a movement type first")
	assert.Contains(t, text, "Forward as alice")
	assert.Contains(t, text, "Scan bin (max 3 characters)")
	assert.Contains(t, text, "Bin B1")
	assert.Contains(t, text, "Bag G1 queued for bin B1")
	assert.Contains(t, text, "1. bin B1  bag G2")
	assert.Contains(t, text, "2. bin B1  bag G1")
	assert.Contains(t, text, "Delete Forward bag G2 from bin B1? [y/N]")
	assert.Contains(t, text, "Deleted scan 1")
}

func TestRunShowsQueueDepth(t *testing.T) {
	ledger := &fakeLedger{gate: make(chan struct{})}
	term, out := setup(t, ledger)
	timer := time.AfterFunc(100*time.Millisecond, func() { close(ledger.gate) })
	defer timer.Stop()

	err := term.Run(context.Background(), feed("fwd", "B1", "G1", "G2", "quit"))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Bag G1 queued for bin B1 (1 pending)")
	assert.Contains(t, text, "Bag G2 queued for bin B1 (2 pending)")
	assert.Equal(t, []string{"FWD B1/G1", "FWD B1/G2"}, ledger.bags())
}

func TestRunValidationAndBinChange(t *testing.T) {
	ledger := &fakeLedger{}
	term, out := setup(t, ledger)

	err := term.Run(context.Background(), feed(
		"rto",
		"B12345",
		"B123",
		"X1",
		"bin",
		"B9",
		"X2",
		"back",
		"X3",
		"quit",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"RTO B123/X1", "RTO B9/X2"}, ledger.bags())
	text := out.String()
	assert.Contains(t, text, "at most 4 characters")
	assert.Contains(t, text, "Scan bag for bin B123")
	assert.Equal(t, 2, strings.Count(text, "Select movement type"))
}

func TestRunDeleteDeclinedAndFailed(t *testing.T) {
	ledger := &fakeLedger{}
	term, out := setup(t, ledger)
	ledger.deleteErr = errors.New("ledger offline")

	err := term.Run(context.Background(), feed(
		"fwd", "B1", "G1",
		"del 1", "n",
		"del 1", "yes",
		"del 7",
		"del x",
		"recent",
		"quit",
	))
	require.NoError(t, err)

	assert.Empty(t, ledger.deleted)
	text := out.String()
	assert.Contains(t, text, "Not deleted")
	assert.Contains(t, text, "Delete failed, scan kept: ledger offline")
	assert.Contains(t, text, "No recent scan 7")
	assert.Contains(t, text, "Usage: del N")
	// the failed delete keeps the entry listed
	assert.Contains(t, text, "1. bin B1  bag G1")
}

func TestRunStopsOnCancelAndFlushes(t *testing.T) {
	ledger := &fakeLedger{}
	term, _ := setup(t, ledger)

	lines := make(chan string, 3)
	lines <- "fwd"
	lines <- "B1"
	lines <- "G1"

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(lines) > 0 {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := term.Run(ctx, lines)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"FWD B1/G1"}, ledger.bags())
}

func TestRunStopsWhenInputEnds(t *testing.T) {
	ledger := &fakeLedger{}
	term, _ := setup(t, ledger)

	lines := make(chan string, 3)
	lines <- "fwd"
	lines <- "B1"
	lines <- "G1"
	close(lines)

	require.NoError(t, term.Run(context.Background(), lines))
	assert.Equal(t, []string{"FWD B1/G1"}, ledger.bags())
}
