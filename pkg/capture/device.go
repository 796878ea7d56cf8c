package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Device is a source of scanned codes with an explicit lifecycle.
// Open must be called before ScanCode; Close releases the underlying handle.
type Device interface {
	Open() error
	Close() error
	ScanCode() bool
	CurrentCode() string
	Err() error
}

// LineDevice reads one code per line, as emitted by serial (USB CDC)
// barcode scanners.
type LineDevice struct {
	path    string
	r       io.Reader
	scanner *bufio.Scanner
	code    string
}

func NewLineDevice(r io.Reader) *LineDevice {
	return &LineDevice{r: r}
}

// NewSerialDevice reads codes from the device node at path. The node is
// opened on Open and closed on Close, once per session.
func NewSerialDevice(path string) *LineDevice {
	return &LineDevice{path: path}
}

func (d *LineDevice) Open() error {
	if d.path != "" {
		f, err := os.Open(d.path)
		if err != nil {
			return fmt.Errorf("open scanner %s: %w", d.path, err)
		}
		d.r = f
	}
	d.scanner = bufio.NewScanner(d.r)
	return nil
}

func (d *LineDevice) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (d *LineDevice) ScanCode() bool {
	if d.scanner == nil {
		return false
	}
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}
		d.code = line
		return true
	}
	return false
}

func (d *LineDevice) CurrentCode() string {
	return d.code
}

func (d *LineDevice) Err() error {
	if d.scanner == nil {
		return nil
	}
	return d.scanner.Err()
}

var _ Device = (*LineDevice)(nil)
