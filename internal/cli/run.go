package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gridroute/internal/harness"
	"github.com/roach88/gridroute/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ScenarioFlags
	Database string
	Timeout  time.Duration
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string          `json:"scenario"`
	Database string          `json:"database"`
	Result   *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Bind and run a scenario, recording routes and runs",
		Long: `Bind one route per PET over an in-process mesh, run it, and check every
destination cell against a serially computed reference.

Every bound route and every run is recorded in a SQLite database (created
if it doesn't exist) so it can be inspected later with "routectl trace".

Exit codes:
  0 - All assertions held
  1 - One or more assertions failed
  2 - Command error (bad scenario, unusable database, etc.)

Example:
  routectl run --db ./routes.db ./scenarios/halo_line.yaml
  routectl run --db /tmp/routes.db ./scenarios/regrid_coarsen.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", harness.DefaultTimeout, "bound on the run phase")
	opts.register(cmd)

	return cmd
}

func runScenarioFile(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	opts.apply(cmd, scenario)

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running scenario", "scenario", scenario.Name, "operation", scenario.Operation)
	result, err := harness.RunContext(ctx, scenario,
		harness.WithStore(st),
		harness.WithLogger(logger),
		harness.WithIDs(uuidIDs),
		harness.WithTimeout(opts.Timeout),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}
	logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass)

	if opts.Format == "json" {
		resp := CLIResponse{
			Status: "ok",
			Data:   RunResult{Scenario: scenario.Name, Database: opts.Database, Result: result},
		}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_SCENARIO_FAILED",
				Message: fmt.Sprintf("%d assertion(s) failed", len(result.Errors)),
				Details: result.Errors,
			}
		}
		if err := formatter.Report(resp); err != nil {
			return err
		}
	} else {
		writeRunText(formatter.Writer, scenario, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, scenario *harness.Scenario, result *harness.Result) {
	for _, out := range result.PETs {
		var sent, recv, msgs int64
		for _, run := range out.Runs {
			sent += run.BytesSent
			recv += run.BytesRecv
			msgs += run.Messages
		}
		fmt.Fprintf(w, "  pet %d: %s route=%s runs=%d sent=%d recv=%d messages=%d\n",
			out.PET, codeOrOK(out.Code), out.Route.ID, len(out.Runs), sent, recv, msgs)
	}

	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", scenario.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", scenario.Name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
