package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/cli"
	"github.com/redromiee/bag-tracker/pkg/ledgerclient"
	"github.com/redromiee/bag-tracker/pkg/ledgerclient/caroundtripper"
	"github.com/redromiee/bag-tracker/pkg/logutils"
	"github.com/redromiee/bag-tracker/pkg/models"
)

var args struct {
	Start     string        `arg:"positional,required" help:"first day, e.g. 2024-03-01, 01.03.2024 or yesterday"`
	End       string        `arg:"positional" help:"last day (inclusive), defaults to the first day"`
	Branch    string        `arg:"--branch,env:EXPORT_BRANCH"`
	CaPath    string        `arg:"--ca-path,env:LEDGER_CA_PATH"`
	LedgerUrl string        `arg:"--ledger-url,required,env:LEDGER_URL"`
	LogLevel  string        `arg:"--log-level,env:LOG_LEVEL" default:"info"`
	Output    string        `arg:"-o,--output" help:"file or directory to write to; the server's file name is used for directories"`
	Timeout   time.Duration `arg:"--timeout,env:EXPORT_TIMEOUT" default:"2m"`
}

var log = logrus.StandardLogger()

func main() {
	if err := cli.LoadDotEnv(); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	p := arg.MustParse(&args)
	logutils.SetLoggerLevel(args.LogLevel)

	now := time.Now()
	start, err := parseDay(args.Start, now)
	if err != nil {
		p.Fail(err.Error())
	}
	end := start
	if args.End != "" {
		if end, err = parseDay(args.End, now); err != nil {
			p.Fail(err.Error())
		}
	}
	rng := models.NewExportRange(start, end)
	if err := rng.Validate(); err != nil {
		p.Fail(err.Error())
	}

	client, err := ledgerclient.New(args.LedgerUrl)
	if err != nil {
		log.Fatalf("create ledger client: %v", err)
	}
	client.SetTimeout(args.Timeout)
	if args.CaPath != "" {
		rt, err := caroundtripper.New(args.CaPath)
		if err != nil {
			log.Fatalf("load CA bundle: %v", err)
		}
		client.SetHttpTransport(rt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), args.Timeout)
	defer cancel()
	export, err := client.Export(ctx, rng, args.Branch)
	if err != nil {
		log.Fatalf("export %s to %s: %v", rng.Start.Format(models.DateLayout), rng.End.Format(models.DateLayout), err)
	}

	path := outputPath(args.Output, export.Filename)
	if err := os.WriteFile(path, export.Body, 0644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	log.Infof("wrote %s (%d bytes)", path, len(export.Body))
}

// outputPath resolves where to store the export. An empty output or an
// existing directory keeps the server-provided file name.
func outputPath(output, filename string) string {
	filename = filepath.Base(filename)
	if output == "" {
		return filename
	}
	if st, err := os.Stat(output); err == nil && st.IsDir() {
		return filepath.Join(output, filename)
	}
	return output
}
