// Command regularization runs one step of the annual charge regularization
// of an entity: calculate, apply, send, settle, repost, or shows its status.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	regularizationapp "github.com/rentflow/backend/internal/application/regularization"
	"github.com/rentflow/backend/internal/infrastructure/config"
	"github.com/rentflow/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, opts); err != nil {
		log.Error("Regularization command failed", zap.String("command", opts.command), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, opts cliOptions) error {
	app, err := newApplication(ctx, cfg, log, opts.outputDir)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	cmd := regularizationapp.LifecycleCommand{
		EntityID:   opts.entityID,
		UserID:     opts.userID,
		FiscalYear: opts.fiscalYear,
	}
	ctx, runLog := logger.WithRegularization(ctx, app.logger, cmd.EntityID, cmd.FiscalYear)
	runLog.Info("Running regularization command", zap.String("command", opts.command))

	switch opts.command {
	case "calculate":
		result, err := app.service.Calculate(ctx, cmd)
		if result == nil {
			return err
		}
		return errors.Join(err, printJSON(result))

	case "apply":
		changed, err := app.service.Apply(ctx, cmd)
		if err != nil && !changed {
			return err
		}
		// a recorded apply whose postings failed still reports changed
		return errors.Join(err, printJSON(map[string]bool{"changed": changed}))

	case "send":
		sendCtx := ctx
		if cfg.Regularization.SendTimeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(ctx, cfg.Regularization.SendTimeout)
			defer cancel()
		}
		result, err := app.sender.Send(sendCtx, cmd)
		if result != nil {
			if printErr := printJSON(result); printErr != nil {
				return errors.Join(err, printErr)
			}
		}
		return err

	case "settle":
		changed, err := app.service.Settle(ctx, cmd)
		if err != nil {
			return err
		}
		return printJSON(map[string]bool{"changed": changed})

	case "repost":
		published, err := app.service.Repost(ctx, cmd)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"published": published})

	case "status":
		agg, err := app.service.Load(ctx, cmd.EntityID, cmd.FiscalYear)
		if err != nil {
			return err
		}
		return printJSON(agg.State())
	}
	return fmt.Errorf("unknown command %q", opts.command)
}

type cliOptions struct {
	entityID   string
	userID     string
	fiscalYear int
	outputDir  string
	command    string
}

var commands = map[string]bool{
	"calculate": true,
	"apply":     true,
	"send":      true,
	"settle":    true,
	"repost":    true,
	"status":    true,
}

func parseArgs(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("regularization", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = printUsage
	fs.StringVar(&opts.entityID, "entity", "", "Entity (building) id")
	fs.IntVar(&opts.fiscalYear, "year", 0, "Fiscal year")
	fs.StringVar(&opts.userID, "user", "", "Id of the user running the command")
	fs.StringVar(&opts.outputDir, "out", "", "Write sent documents to this directory")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if fs.NArg() != 1 {
		return opts, errors.New("exactly one command is required")
	}
	opts.command = fs.Arg(0)
	if !commands[opts.command] {
		return opts, fmt.Errorf("unknown command %q", opts.command)
	}
	if opts.entityID == "" || opts.fiscalYear == 0 {
		return opts, errors.New("-entity and -year are required")
	}
	if opts.userID == "" && opts.command != "status" {
		return opts, errors.New("-user is required")
	}
	return opts, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Annual charge regularization

Usage:
  regularization -entity <id> -year <yyyy> -user <id> [-out <dir>] <command>

Commands:
  calculate   Compute the tenant statements and record them if they changed
  apply       Post the recorded statements to tenant ledgers
  send        Deliver each tenant's statement, then mark the year as sent
  settle      Close the regularization
  repost      Publish the recorded events again so missed ledger postings are made
  status      Print the current state (-user not needed)

Configuration is read from config.toml and RENTFLOW_* environment variables.`)
}
