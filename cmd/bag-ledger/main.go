package main

import (
	"context"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	tracker "github.com/redromiee/bag-tracker"
	"github.com/redromiee/bag-tracker/pkg/cli"
	"github.com/redromiee/bag-tracker/pkg/logutils"
	"github.com/redromiee/bag-tracker/pkg/operators"
	"github.com/redromiee/bag-tracker/pkg/storage"
)

var args struct {
	storage.LedgerArgs
	storage.ArchiveArgs
	ListenAddr  string `arg:"-L,--listen-addr,env:LISTEN_ADDR" default:"127.0.0.1:8085"`
	LogFormat   string `arg:"--log-format,env:LOG_FORMAT" default:"text" help:"text or json"`
	LogLevel    string `arg:"--log-level,env:LOG_LEVEL" default:"info"`
	OperatorsDb string `arg:"--operators-db,env:OPERATORS_DB" help:"sqlite database of operators; the sqlite ledger database is used when empty"`
	Timezone    string `arg:"--timezone,env:LEDGER_TIMEZONE" default:"UTC" help:"Zone for naive timestamps, export days and export cells"`
}

var log = logrus.StandardLogger()

func main() {
	if err := cli.LoadDotEnv(); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	arg.MustParse(&args)
	logutils.SetLoggerFormat(args.LogFormat)
	logutils.SetLoggerLevel(args.LogLevel)
	if err := cli.FillKeychainValues(&args); err != nil {
		log.Fatalf("fill keychain values: %v", err)
	}

	loc, err := time.LoadLocation(args.Timezone)
	if err != nil {
		log.Fatalf("load timezone %s: %v", args.Timezone, err)
	}

	ledger, sqliteLedger, err := storage.SetupLedger(context.Background(), args.LedgerArgs)
	if err != nil {
		log.Fatalf("setup ledger: %v", err)
	}

	opts := []tracker.Option{tracker.WithLocation(loc)}

	var registry *operators.Registry
	switch {
	case args.OperatorsDb != "":
		registry, err = operators.Open(args.OperatorsDb)
	case sqliteLedger != nil:
		registry, err = operators.New(sqliteLedger.DB())
	}
	if err != nil {
		log.Fatalf("open operator registry: %v", err)
	}
	if registry != nil {
		opts = append(opts, tracker.WithOperators(registry))
	}

	archive, err := storage.SetupArchive(args.ArchiveArgs)
	if err != nil {
		log.Fatalf("setup archive: %v", err)
	}
	if archive != nil {
		opts = append(opts, tracker.WithArchive(archive))
	}

	s, err := tracker.New(ledger, opts...)
	if err != nil {
		log.Fatalf("create ledger service: %v", err)
	}

	log.Infof("listening on %s", args.ListenAddr)
	if err := s.Run(args.ListenAddr); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
