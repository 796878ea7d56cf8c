package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/approval"
	"github.com/redromiee/bag-tracker/pkg/capture"
	"github.com/redromiee/bag-tracker/pkg/capture/camera"
	"github.com/redromiee/bag-tracker/pkg/cli"
	"github.com/redromiee/bag-tracker/pkg/console"
	"github.com/redromiee/bag-tracker/pkg/feedback"
	"github.com/redromiee/bag-tracker/pkg/ledgerclient"
	"github.com/redromiee/bag-tracker/pkg/ledgerclient/caroundtripper"
	"github.com/redromiee/bag-tracker/pkg/logutils"
	"github.com/redromiee/bag-tracker/pkg/station"
	"github.com/redromiee/bag-tracker/pkg/submitqueue"
	"github.com/redromiee/bag-tracker/pkg/terminal"
)

var args struct {
	ApprovalInterval time.Duration `arg:"--approval-interval,env:APPROVAL_INTERVAL" default:"5m"`
	Backoff          time.Duration `arg:"--backoff,env:SUBMIT_BACKOFF" default:"2s" help:"Delay before a failed submission is retried"`
	CaPath           string        `arg:"--ca-path,env:LEDGER_CA_PATH" help:"PEM bundle to trust for the ledger TLS certificate"`
	CameraId         int           `arg:"--camera,env:CAMERA_ID" default:"-1" help:"Video device to decode QR codes from, -1 to type codes only"`
	FlushTimeout     time.Duration `arg:"--flush-timeout,env:FLUSH_TIMEOUT" default:"30s"`
	LedgerUrl        string        `arg:"--ledger-url,required,env:LEDGER_URL"`
	LogLevel         string        `arg:"--log-level,env:LOG_LEVEL" default:"warn"`
	NoBell           bool          `arg:"--no-bell,env:NO_BELL" help:"Do not ring the terminal bell for admitted bags"`
	ScannerPath      string        `arg:"--scanner,env:SCANNER_PATH" help:"Serial barcode scanner emitting one code per line, e.g. /dev/ttyACM0"`
	Token            string        `arg:"--token,required,env:OPERATOR_TOKEN" help:"Operator token, or keychain:<element>"`
	Username         string        `arg:"-u,--username,required,env:OPERATOR_USERNAME"`
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

	client, err := ledgerclient.New(args.LedgerUrl)
	if err != nil {
		log.Fatalf("create ledger client: %v", err)
	}
	if args.CaPath != "" {
		rt, err := caroundtripper.New(args.CaPath)
		if err != nil {
			log.Fatalf("load CA bundle: %v", err)
		}
		client.SetHttpTransport(rt)
	}

	con := console.New(os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ok, err := client.Healthz(ctx); err != nil || !ok {
		log.Warnf("ledger at %s is not reachable, scans will be queued: %v", args.LedgerUrl, err)
	}

	sessionCtx, endSession := context.WithCancel(ctx)
	defer endSession()
	var revoked atomic.Bool
	watcher := approval.New(client, args.Username, args.Token,
		approval.WithInterval(args.ApprovalInterval),
		approval.WithRevokeHandler(func() {
			revoked.Store(true)
			endSession()
		}),
	)
	// Run only checks on ticks, this is the check at load
	switch err := watcher.Check(ctx); {
	case errors.Is(err, approval.ErrSessionRevoked):
		con.Error("Operator %s is not approved", args.Username)
		os.Exit(1)
	case err != nil:
		log.Warnf("unable to verify approval, continuing: %v", err)
	}
	go watcher.Run(sessionCtx)

	var emitters []feedback.Emitter
	if !args.NoBell {
		emitters = append(emitters, feedback.NewBell(os.Stdout))
	}
	emitters = append(emitters, feedback.Haptic{})

	st, err := station.New(station.Config{
		Operator: args.Username,
		Ledger:   client,
		Emitter:  feedback.Multi(emitters...),
		Queue:    []submitqueue.Option{submitqueue.WithBackoff(args.Backoff)},
	})
	if err != nil {
		log.Fatalf("create station: %v", err)
	}

	var device func() capture.Device
	switch {
	case args.CameraId >= 0 && args.ScannerPath != "":
		log.Fatalf("--camera and --scanner are mutually exclusive")
	case args.CameraId >= 0:
		device = func() capture.Device { return camera.New(args.CameraId) }
	case args.ScannerPath != "":
		device = func() capture.Device { return capture.NewSerialDevice(args.ScannerPath) }
	}

	term := terminal.New(terminal.Config{
		Station:      st,
		Console:      con,
		Device:       device,
		FlushTimeout: args.FlushTimeout,
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := con.ReadLine()
			if err != nil {
				return
			}
			lines <- line
		}
	}()

	err = term.Run(sessionCtx, lines)
	if revoked.Load() {
		con.Error("Approval for %s was revoked, log in again", args.Username)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("terminal: %v", err)
	}
}
