package models

import "time"

const StatusScanned = "Scanned"

// LedgerEntry is a row of the append-only ledger kept by the ledger service.
type LedgerEntry struct {
	Id         string    `json:"id"`
	ScanId     string    `json:"scanId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
	ScanType   ScanType  `json:"scanType"`
	BinId      string    `json:"binId"`
	BagId      string    `json:"bagId"`
	Username   string    `json:"username"`
	Branch     string    `json:"branch,omitempty"`
	Status     string    `json:"status"`
}

// LedgerFilter selects entries whose Timestamp falls in [From, To).
// An empty Branch matches every branch.
type LedgerFilter struct {
	From   time.Time
	To     time.Time
	Branch string
}

func (f LedgerFilter) Matches(e LedgerEntry) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	if f.Branch != "" && f.Branch != e.Branch {
		return false
	}
	return true
}

type Operator struct {
	Username  string    `json:"username"`
	TokenHash string    `json:"-"`
	Branch    string    `json:"branch"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
}
