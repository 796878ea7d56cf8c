package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/storage/b2"
	"github.com/redromiee/bag-tracker/pkg/storage/fs"
	"github.com/redromiee/bag-tracker/pkg/storage/model"
	"github.com/redromiee/bag-tracker/pkg/storage/opensearch"
	"github.com/redromiee/bag-tracker/pkg/storage/sqlite"
)

var log = logrus.StandardLogger().WithField("package", "storage")

const (
	LedgerSqlite     = "sqlite"
	LedgerOpenSearch = "opensearch"

	ArchiveNone = "none"
	ArchiveFs   = "fs"
	ArchiveB2   = "b2"
)

type LedgerArgs struct {
	LedgerType           string `arg:"--ledger,env:LEDGER_TYPE" default:"sqlite" help:"sqlite or opensearch"`
	SqlitePath           string `arg:"--sqlite-path,env:SQLITE_PATH" default:"bag-tracker.db"`
	OsAddr               string `arg:"--opensearch-addr,env:OPENSEARCH_ADDR"`
	OsIndex              string `arg:"--opensearch-index,env:OPENSEARCH_INDEX" default:"scans"`
	OsInsecureSkipVerify bool   `arg:"--opensearch-insecure-skip-verify,env:OPENSEARCH_SKIP_TLS"`
	OsPassword           string `arg:"--opensearch-password,env:OPENSEARCH_PASSWORD"`
	OsUsername           string `arg:"--opensearch-username,env:OPENSEARCH_USERNAME"`
}

type ArchiveArgs struct {
	ArchiveType  string `arg:"--archive,env:ARCHIVE_TYPE" default:"none" help:"none, fs or b2"`
	ArchivePath  string `arg:"--archive-path,env:ARCHIVE_PATH" default:"exports"`
	B2Account    string `arg:"--b2-account,env:B2_ACCOUNT"`
	B2Key        string `arg:"--b2-key,env:B2_KEY"`
	B2BucketName string `arg:"--b2-bucket-name,env:B2_BUCKET_NAME"`
	B2Prefix     string `arg:"--b2-prefix,env:B2_PREFIX" default:"exports"`
	B2Passphrase string `arg:"--b2-passphrase,env:B2_PASSPHRASE"`
}

// SetupLedger returns the configured ledger. The sqlite ledger is also
// returned as the second value so that callers can share its database.
func SetupLedger(ctx context.Context, args LedgerArgs) (model.Ledger, *sqlite.Ledger, error) {
	switch args.LedgerType {
	case LedgerSqlite, "":
		l, err := sqlite.Open(args.SqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite ledger: %w", err)
		}
		log.Infof("using sqlite ledger at %s", args.SqlitePath)
		return l, l, nil
	case LedgerOpenSearch:
		l, err := opensearch.New(ctx, opensearch.Config{
			Addr:               args.OsAddr,
			Username:           args.OsUsername,
			Password:           args.OsPassword,
			Index:              args.OsIndex,
			InsecureSkipVerify: args.OsInsecureSkipVerify,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opensearch ledger: %w", err)
		}
		log.Infof("using opensearch ledger at %s (index %s)", args.OsAddr, args.OsIndex)
		return l, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger type %q", args.LedgerType)
	}
}

// SetupArchive returns nil when archiving is disabled.
func SetupArchive(args ArchiveArgs) (model.RWArchive, error) {
	switch args.ArchiveType {
	case ArchiveNone, "":
		return nil, nil
	case ArchiveFs:
		return fs.New(args.ArchivePath)
	case ArchiveB2:
		return b2.New(b2.Config{
			Account:    args.B2Account,
			Key:        args.B2Key,
			BucketName: args.B2BucketName,
			Prefix:     args.B2Prefix,
			Passphrase: args.B2Passphrase,
		})
	default:
		return nil, fmt.Errorf("unknown archive type %q", args.ArchiveType)
	}
}
