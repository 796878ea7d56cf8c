package models

import (
	"fmt"
	"time"
)

// ScanRecord is a single bin/bag pairing captured by an operator.
// CapturedAt is set when the record is admitted to the submission
// queue and is never changed afterwards.
type ScanRecord struct {
	ScanId     string
	BinId      string
	BagId      string
	ScanType   ScanType
	Operator   string
	CapturedAt time.Time
}

func (s ScanRecord) Key() ScanKey {
	return ScanKey{BinId: s.BinId, BagId: s.BagId, ScanType: s.ScanType}
}

func (s ScanRecord) Recent() RecentScanEntry {
	return RecentScanEntry(s.Key())
}

func (s ScanRecord) String() string {
	return fmt.Sprintf("%s %s/%s", s.ScanType, s.BinId, s.BagId)
}

// ScanKey identifies a scan for remote deletion.
type ScanKey struct {
	BinId    string
	BagId    string
	ScanType ScanType
}

// RecentScanEntry is the display projection kept by the recent-scan ring.
type RecentScanEntry ScanKey

func (e RecentScanEntry) Key() ScanKey {
	return ScanKey(e)
}
