// Package export renders ledger entries into an xlsx workbook.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/redromiee/bag-tracker/pkg/models"
)

var log = logrus.StandardLogger().WithField("package", "export")

const (
	SheetName   = "Scans"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "2006-01-02 15:04:05"
)

var Header = []string{"Timestamp", "Scan Type", "Bin ID", "Bag ID", "Status", "Username", "Branch", "Received At"}

func row(e models.LedgerEntry, loc *time.Location) []any {
	received := ""
	if !e.ReceivedAt.IsZero() {
		received = e.ReceivedAt.In(loc).Format(timeLayout)
	}
	return []any{
		e.Timestamp.In(loc).Format(timeLayout),
		string(e.ScanType),
		e.BinId,
		e.BagId,
		e.Status,
		e.Username,
		e.Branch,
		received,
	}
}

// Workbook writes entries in the given order, one row each, below a header
// row. Times are rendered in loc (UTC when nil).
func Workbook(entries []models.LedgerEntry, loc *time.Location) (*bytes.Buffer, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("unable to close workbook: %v", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, err
	}
	if err := sw.SetColWidth(1, 1, 20); err != nil {
		return nil, err
	}
	if err := sw.SetColWidth(8, 8, 20); err != nil {
		return nil, err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row(e, loc)); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	log.Debugf("rendered %d entries (%d bytes)", len(entries), buf.Len())
	return buf, nil
}
