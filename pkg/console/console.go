// Package console renders operator banners and prompts on a terminal.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/redromiee/bag-tracker/pkg/models"
)

// TransientDelay is how long a success banner stays before the status line is cleared.
const TransientDelay = 2 * time.Second

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	promptColor  = color.New(color.FgCyan)
	mutedColor   = color.New(color.Faint)
)

// Console writes to an operator terminal. Success banners clear themselves;
// errors stay until the next banner.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	in    *bufio.Reader
	timer *time.Timer
	delay time.Duration
	gen   int
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out, delay: TransientDelay}
}

func (c *Console) Success(format string, args ...any) {
	gen := c.banner(successColor, "✔ "+format, args...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.timer = time.AfterFunc(c.delay, func() { c.clearStatus(gen) })
	}
}

func (c *Console) Error(format string, args ...any) {
	c.banner(errorColor, "✘ "+format, args...)
}

func (c *Console) Prompt(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	promptColor.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) Info(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) Muted(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	mutedColor.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) banner(col *color.Color, format string, args ...any) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	col.Fprintf(c.out, format+"\n", args...)
	return c.gen
}

// clearStatus erases the success banner unless something was printed after it.
func (c *Console) clearStatus(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.timer = nil
	// Move up one line and erase it.
	fmt.Fprint(c.out, "\x1b[1A\x1b[2K")
}

// ReadLine returns the next trimmed input line.
func (c *Console) ReadLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks whether entry should be deleted from the ledger and reads the
// answer from the console input.
func (c *Console) Confirm(entry models.RecentScanEntry) bool {
	c.AskConfirm(entry)
	answer, err := c.ReadLine()
	if err != nil {
		return false
	}
	return IsYes(answer)
}

// AskConfirm prints the delete confirmation prompt only, for callers that
// read input elsewhere.
func (c *Console) AskConfirm(entry models.RecentScanEntry) {
	c.Prompt("Delete %s bag %s from bin %s? [y/N]", entry.ScanType.DisplayName(), entry.BagId, entry.BinId)
}

// IsYes reports whether answer confirms. Anything other than y/yes is a no.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
