package sqlite

// SchemaSQL creates the ledger table. Timestamps are stored as fixed-width
// UTC text (see timeLayout) so that range queries can compare them as strings.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	scan_id TEXT,
	timestamp TEXT NOT NULL,
	received_at TEXT NOT NULL,
	scan_type TEXT NOT NULL CHECK(scan_type IN ('FWD', 'RTO')),
	bin_id TEXT NOT NULL,
	bag_id TEXT NOT NULL,
	username TEXT NOT NULL,
	branch TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Scanned'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_scans_scan_id ON scans(scan_id) WHERE scan_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);
CREATE INDEX IF NOT EXISTS idx_scans_key ON scans(bin_id, bag_id, scan_type);
`

const timeLayout = "2006-01-02T15:04:05.000000000Z"
