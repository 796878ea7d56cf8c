// Package terminal runs the operator command loop on top of a station.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/capture"
	"github.com/redromiee/bag-tracker/pkg/console"
	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/recent"
	"github.com/redromiee/bag-tracker/pkg/station"
)

var log = logrus.StandardLogger().WithField("package", "terminal")

const DefaultFlushTimeout = 30 * time.Second

const helpText = `Commands:
  fwd | rto   start scanning Forward or Return-to-Origin movements
  bin         scan a different bin
  back        leave the current movement
  recent      list recent scans of the current movement
  del N       delete recent scan N from the ledger
  depth       show pending submissions
  help        show this text
  quit        deliver pending scans and exit
Any other input is treated as a scanned code.`

type Config struct {
	Station *station.Station
	Console *console.Console
	// Device returns the capture device for a new session, or nil to only
	// accept typed codes.
	Device       func() capture.Device
	FlushTimeout time.Duration
}

type Terminal struct {
	st           *station.Station
	con          *console.Console
	device       func() capture.Device
	flushTimeout time.Duration
	events       chan station.Event
}

func New(config Config) *Terminal {
	t := &Terminal{
		st:           config.Station,
		con:          config.Console,
		device:       config.Device,
		flushTimeout: config.FlushTimeout,
		events:       make(chan station.Event, 16),
	}
	if t.flushTimeout <= 0 {
		t.flushTimeout = DefaultFlushTimeout
	}
	return t
}

// Run processes input lines and device events until quit is entered, lines
// is closed or ctx is cancelled. Pending submissions are flushed before it
// returns; the returned error is ctx's error when ctx ended the loop.
func (t *Terminal) Run(ctx context.Context, lines <-chan string) error {
	t.home()
	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case ev := <-t.events:
			t.report(ev.Outcome, ev.Err)
			t.prompt()
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if t.handle(ctx, line, lines) {
				break loop
			}
		}
	}
	t.shutdown()
	return runErr
}

// handle returns true when the loop should stop.
func (t *Terminal) handle(ctx context.Context, line string, lines <-chan string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "help", "?":
		t.con.Info(helpText)
	case "fwd", "rto":
		t.selectType(models.ScanType(strings.ToUpper(fields[0])))
	case "bin":
		if err := t.st.ChangeBin(); err != nil {
			t.con.Error("%s", describe(err))
		}
		t.prompt()
	case "back":
		t.st.Reset()
		t.home()
	case "recent":
		t.listRecent()
	case "del", "delete":
		t.deleteRecent(ctx, fields[1:], lines)
	case "depth":
		stats := t.st.QueueStats()
		t.con.Info("%d pending, %d delivered, %d failed attempts", stats.Pending, stats.Delivered, stats.Failures)
	default:
		outcome, err := t.st.Submit(line)
		t.report(outcome, err)
		t.prompt()
	}
	return false
}

func (t *Terminal) selectType(scanType models.ScanType) {
	var device capture.Device
	if t.device != nil {
		device = t.device()
	}
	if err := t.st.Select(scanType, device, t.events); err != nil {
		log.Warnf("unable to start %s session: %v", scanType, err)
		t.con.Error("Unable to start %s: %v", scanType.DisplayName(), err)
		return
	}
	t.con.Info("%s as %s", scanType.DisplayName(), t.st.Operator())
	t.prompt()
}

func (t *Terminal) home() {
	t.con.Prompt("Select movement type: fwd (Forward) or rto (Return to Origin). Type help for commands.")
}

func (t *Terminal) prompt() {
	if s, ok := t.st.Session(); ok {
		t.con.Prompt("%s", s.Prompt)
	}
}

func (t *Terminal) report(outcome capture.Outcome, err error) {
	if err != nil {
		t.con.Error("%s", describe(err))
		return
	}
	switch outcome.Result {
	case capture.BinAccepted:
		t.con.Success("Bin %s", outcome.BinId)
	case capture.BagAdmitted:
		t.con.Success("Bag %s queued for bin %s (%d pending)", outcome.Record.BagId, outcome.BinId, t.st.QueueDepth())
	}
}

func describe(err error) string {
	var verr *capture.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Reason
	case errors.Is(err, station.ErrNoSession):
		return "Select a movement type first (fwd or rto)"
	default:
		return err.Error()
	}
}

func (t *Terminal) listRecent() {
	s, ok := t.st.Session()
	if !ok {
		t.con.Error("%s", describe(station.ErrNoSession))
		return
	}
	entries := t.st.Recent()
	if len(entries) == 0 {
		t.con.Muted("No recent %s scans", s.ScanType.DisplayName())
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent %s scans:", s.ScanType.DisplayName())
	for i, e := range entries {
		fmt.Fprintf(&b, "\n  %d. bin %s  bag %s", i+1, e.BinId, e.BagId)
	}
	t.con.Info("%s", b.String())
}

func (t *Terminal) deleteRecent(ctx context.Context, args []string, lines <-chan string) {
	if len(args) != 1 {
		t.con.Error("Usage: del N")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		t.con.Error("Usage: del N")
		return
	}

	confirm := recent.ConfirmFunc(func(entry models.RecentScanEntry) bool {
		t.con.AskConfirm(entry)
		select {
		case answer, ok := <-lines:
			return ok && console.IsYes(answer)
		case <-ctx.Done():
			return false
		}
	})

	err = t.st.DeleteRecent(ctx, n-1, confirm)
	var derr *recent.DeleteError
	switch {
	case err == nil:
		t.con.Success("Deleted scan %d", n)
	case errors.Is(err, recent.ErrCancelled):
		t.con.Muted("Not deleted")
	case errors.Is(err, recent.ErrNotFound):
		t.con.Error("No recent scan %d", n)
	case errors.As(err, &derr):
		t.con.Error("Delete failed, scan kept: %v", derr.Err)
	default:
		t.con.Error("%s", describe(err))
	}
}

func (t *Terminal) shutdown() {
	t.st.Reset()
	if depth := t.st.QueueDepth(); depth > 0 {
		t.con.Muted("Delivering %d pending scans...", depth)
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.flushTimeout)
	defer cancel()
	if err := t.st.Flush(ctx); err != nil {
		t.con.Error("%d scans were not delivered", t.st.QueueDepth())
		log.Errorf("unable to flush submissions: %v", err)
	}
	t.st.Close()
}
