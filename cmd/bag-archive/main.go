package main

import (
	"context"
	"io"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/cli"
	"github.com/redromiee/bag-tracker/pkg/crypt"
	"github.com/redromiee/bag-tracker/pkg/logutils"
	"github.com/redromiee/bag-tracker/pkg/storage"
)

var args struct {
	storage.ArchiveArgs
	Name     string `arg:"positional" help:"archived export to fetch; without it a sealed file is read from stdin and opened with the passphrase"`
	Output   string `arg:"-o,--output" help:"defaults to stdout"`
	LogLevel string `arg:"--log-level,env:LOG_LEVEL" default:"info"`
}

var log = logrus.StandardLogger()

func main() {
	if err := cli.LoadDotEnv(); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	arg.MustParse(&args)
	logutils.LogToStderr()
	logutils.SetLoggerLevel(args.LogLevel)
	if err := cli.FillKeychainValues(&args); err != nil {
		log.Fatalf("fill keychain values: %v", err)
	}

	reader, err := open()
	if err != nil {
		log.Fatalf("%v", err)
	}

	out := os.Stdout
	if args.Output != "" {
		f, err := os.Create(args.Output)
		if err != nil {
			log.Fatalf("create %s: %v", args.Output, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := io.Copy(out, reader); err != nil {
		log.Fatalf("unable to copy: %v", err)
	}
}

func open() (io.Reader, error) {
	if args.Name == "" {
		if args.B2Passphrase == "" {
			log.Fatalf("passphrase cannot be empty")
		}
		box, err := crypt.New(args.B2Passphrase)
		if err != nil {
			return nil, err
		}
		return box.Open(os.Stdin)
	}

	archive, err := storage.SetupArchive(args.ArchiveArgs)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		log.Fatalf("no archive configured, set --archive")
	}
	return archive.Retrieve(context.Background(), args.Name)
}
