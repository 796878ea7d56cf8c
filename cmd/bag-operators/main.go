package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/cli"
	"github.com/redromiee/bag-tracker/pkg/logutils"
	"github.com/redromiee/bag-tracker/pkg/operators"
)

type addCmd struct {
	Username string `arg:"positional,required"`
	Branch   string `arg:"--branch" help:"Branch the operator's scans are tagged with"`
	Token    string `arg:"--token,env:OPERATOR_TOKEN" help:"Token to assign; a random one is generated and printed when empty"`
	Approve  bool   `arg:"--approve" help:"Approve the operator right away"`
}

type usernameCmd struct {
	Username string `arg:"positional,required"`
}

type listCmd struct{}

var args struct {
	Add      *addCmd      `arg:"subcommand:add" help:"register an operator"`
	Approve  *usernameCmd `arg:"subcommand:approve" help:"allow an operator to scan"`
	Revoke   *usernameCmd `arg:"subcommand:revoke" help:"end an operator's sessions at their next approval check"`
	List     *listCmd     `arg:"subcommand:list" help:"list operators"`
	Db       string       `arg:"--db,env:OPERATORS_DB" default:"bag-tracker.db"`
	LogLevel string       `arg:"--log-level,env:LOG_LEVEL" default:"warn"`
}

var log = logrus.StandardLogger()

func main() {
	if err := cli.LoadDotEnv(); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}
	logutils.SetLoggerLevel(args.LogLevel)

	registry, err := operators.Open(args.Db)
	if err != nil {
		log.Fatalf("open operator registry: %v", err)
	}
	defer registry.Close()

	ctx := context.Background()
	switch {
	case args.Add != nil:
		err = add(ctx, registry, args.Add)
	case args.Approve != nil:
		err = registry.Approve(ctx, args.Approve.Username)
		if err == nil {
			fmt.Printf("%s approved\n", args.Approve.Username)
		}
	case args.Revoke != nil:
		err = registry.Revoke(ctx, args.Revoke.Username)
		if err == nil {
			fmt.Printf("%s revoked\n", args.Revoke.Username)
		}
	case args.List != nil:
		err = list(ctx, registry)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func add(ctx context.Context, registry *operators.Registry, cmd *addCmd) error {
	token := cmd.Token
	generated := token == ""
	if generated {
		token = operators.GenerateToken()
	}
	op, err := registry.Add(ctx, cmd.Username, token, cmd.Branch)
	if err != nil {
		return err
	}
	if cmd.Approve {
		if err := registry.Approve(ctx, op.Username); err != nil {
			return err
		}
	}
	fmt.Printf("added %s\n", op.Username)
	if generated {
		fmt.Printf("token: %s\n", token)
	}
	return nil
}

func list(ctx context.Context, registry *operators.Registry) error {
	ops, err := registry.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tBRANCH\tSTATUS\tCREATED")
	for _, op := range ops {
		status := color.RedString("revoked")
		if op.Approved {
			status = color.GreenString("approved")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.Username, op.Branch, status, op.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
