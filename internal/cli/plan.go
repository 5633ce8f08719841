package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridroute/internal/harness"
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/route"
)

// ScenarioFlags override scenario fields from the command line.
type ScenarioFlags struct {
	PETs    int
	Options string
}

func (f *ScenarioFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.PETs, "pets", 0, "mesh size (default: the PETs the layouts need)")
	cmd.Flags().StringVar(&f.Options, "options", "", `route options, e.g. "sync,pack_pet"`)
}

// apply overrides the scenario with every flag set on cmd.
func (f *ScenarioFlags) apply(cmd *cobra.Command, s *harness.Scenario) {
	if cmd.Flags().Changed("pets") {
		s.PETs = f.PETs
	}
	if cmd.Flags().Changed("options") {
		s.Options = f.Options
	}
}

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	ScenarioFlags
}

// PlanPET is one PET's bound route.
type PlanPET struct {
	PET    int            `json:"pet"`
	Status string         `json:"status"` // "ok" or a route error code
	Error  string         `json:"error,omitempty"`
	Route  ir.RouteRecord `json:"route"`
}

// PlanResult holds the routes a scenario binds, one per PET.
type PlanResult struct {
	Scenario  string    `json:"scenario"`
	Operation string    `json:"operation"`
	Options   string    `json:"options"`
	PETs      []PlanPET `json:"pets"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <scenario>",
		Short: "Bind a scenario's routes and print their schedules",
		Long: `Precompute the route a scenario describes on every PET without running it.

Prints each PET's send and recv table sizes and its communication schedule.
PETs that fail to bind report their route error code.

Examples:
  routectl plan ./scenarios/halo_line.yaml
  routectl plan ./scenarios/halo_line.yaml --options sync,pack_pet
  routectl plan ./scenarios/regrid_coarsen.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	opts.register(cmd)

	return cmd
}

func runPlan(opts *PlanOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	opts.apply(cmd, scenario)

	result, err := harness.RunContext(cmd.Context(), scenario,
		harness.WithBindOnly(),
		harness.WithLogger(formatter.Logger()),
		harness.WithIDs(uuidIDs),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to bind scenario", err)
	}

	plan := PlanResult{
		Scenario:  scenario.Name,
		Operation: scenario.Operation,
		Options:   result.Options.String(),
		PETs:      make([]PlanPET, 0, len(result.PETs)),
	}
	for _, out := range result.PETs {
		plan.PETs = append(plan.PETs, PlanPET{
			PET:    out.PET,
			Status: codeOrOK(out.Code),
			Error:  out.Err,
			Route:  out.Route,
		})
	}

	if formatter.Format == "json" {
		if err := formatter.Success(plan); err != nil {
			return err
		}
	} else {
		writePlanText(formatter.Writer, plan)
	}

	if result.Failed() {
		return NewExitError(ExitFailure, "one or more PETs failed to bind")
	}
	return nil
}

func writePlanText(w io.Writer, plan PlanResult) {
	fmt.Fprintf(w, "Plan for %s: %s on %d PETs (%s)\n", plan.Scenario, plan.Operation, len(plan.PETs), plan.Options)
	for _, p := range plan.PETs {
		fmt.Fprintln(w)
		if p.Status != "ok" {
			fmt.Fprintf(w, "✗ pet %d: %s\n", p.PET, p.Error)
			continue
		}
		r := p.Route
		fmt.Fprintf(w, "✓ pet %d: route %s key=%s\n", p.PET, r.ID, shortKey(r.RouteKey))
		fmt.Fprintf(w, "  send: %d entries, %d items\n", r.SendEntries, r.SendItems)
		fmt.Fprintf(w, "  recv: %d entries, %d items\n", r.RecvEntries, r.RecvItems)
		fmt.Fprintf(w, "  rounds: %d\n", r.Rounds)
		for _, line := range strings.Split(strings.TrimRight(r.Schedule, "\n"), "\n") {
			if line != "" {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}

// uuidIDs gives every PET UUIDv7 route ids, so records from separate
// invocations never collide in a store.
func uuidIDs(int) route.IDGenerator {
	return route.UUIDv7Generator{}
}

// codeOrOK returns code, or "ok" when empty.
func codeOrOK(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

// shortKey truncates a route key for display.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
