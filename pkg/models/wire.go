package models

import "time"

// Wire shapes shared by the ledger service and its client.

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TimestampLayout is the ISO-8601 layout used for the record timestamp.
const TimestampLayout = time.RFC3339Nano

type RecordScanRequest struct {
	ScanId    string   `json:"scan_id,omitempty"`
	BinId     string   `json:"bin_id"`
	BagId     string   `json:"bag_id"`
	ScanType  ScanType `json:"scan_type"`
	Username  string   `json:"username"`
	Timestamp string   `json:"timestamp"`
}

type DeleteScanRequest struct {
	BinId    string   `json:"bin_id"`
	BagId    string   `json:"bag_id"`
	ScanType ScanType `json:"scan_type"`
}

type ApprovalRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// StatusResponse is the body returned by every JSON endpoint of the ledger service.
type StatusResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Approved *bool  `json:"approved,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Deleted  int    `json:"deleted,omitempty"`
}

func (r StatusResponse) Ok() bool {
	return r.Status == StatusSuccess
}
