package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RouteID  string // optional - one route with its schedule
	Key      string // optional - every PET's record of one route key
}

// RouteTrace is one recorded route with its runs.
type RouteTrace struct {
	Route ir.RouteRecord `json:"route"`
	Runs  []ir.RunRecord `json:"runs"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Routes []RouteTrace `json:"routes"`
	Stats  TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics over the traced routes.
type TraceStats struct {
	Routes    int   `json:"routes"`
	Runs      int   `json:"runs"`
	Failures  int   `json:"failures"`
	BytesSent int64 `json:"bytes_sent"`
	BytesRecv int64 `json:"bytes_recv"`
	Messages  int64 `json:"messages"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded routes and runs",
		Long: `Show the routes and runs recorded by "routectl run".

Routes are listed in logical clock order, each followed by its runs. With
--route, one route is shown together with its communication schedule. With
--key, every PET's record of one structural route key is shown.

Examples:
  routectl trace --db ./routes.db
  routectl trace --db ./routes.db --route 0192a4c7-...
  routectl trace --db ./routes.db --key 3f9a0c12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RouteID, "route", "", "show one route by id")
	cmd.Flags().StringVar(&opts.Key, "key", "", "show every record of one route key")
	cmd.MarkFlagsMutuallyExclusive("route", "key")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	// Opening a missing path would create an empty database.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var routes []ir.RouteRecord
	switch {
	case opts.RouteID != "":
		rec, err := st.ReadRoute(ctx, opts.RouteID)
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, "route not found", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read route", err)
		}
		routes = []ir.RouteRecord{rec}
	case opts.Key != "":
		if routes, err = st.ReadRoutesByKey(ctx, opts.Key); err != nil {
			return WrapExitError(ExitCommandError, "failed to read routes", err)
		}
	default:
		if routes, err = st.ReadRoutes(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to read routes", err)
		}
	}

	result := TraceResult{Routes: make([]RouteTrace, 0, len(routes))}
	for _, rec := range routes {
		runs, err := st.ReadRuns(ctx, rec.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		result.Routes = append(result.Routes, RouteTrace{Route: rec, Runs: runs})
	}
	result.Stats = traceStats(result.Routes)

	if opts.Format == "json" {
		formatter := newFormatter(opts.RootOptions, cmd)
		return formatter.Report(CLIResponse{Status: "ok", Data: result, TraceID: opts.RouteID})
	}

	w := cmd.OutOrStdout()
	if len(result.Routes) == 0 {
		fmt.Fprintln(w, "No routes recorded.")
		return nil
	}
	writeTraceText(w, result, opts.RouteID != "")
	return nil
}

func traceStats(routes []RouteTrace) TraceStats {
	s := TraceStats{Routes: len(routes)}
	for _, rt := range routes {
		for _, run := range rt.Runs {
			s.Runs++
			if run.Status != "ok" {
				s.Failures++
			}
			s.BytesSent += run.BytesSent
			s.BytesRecv += run.BytesRecv
			s.Messages += run.Messages
		}
	}
	return s
}

func writeTraceText(w io.Writer, result TraceResult, schedule bool) {
	fmt.Fprintln(w, "Timeline:")
	for _, rt := range result.Routes {
		r := rt.Route
		fmt.Fprintf(w, "  [%d] ROUTE %s %s %s pet=%d key=%s rounds=%d\n",
			r.Seq, r.ID, r.Op, r.Kind, r.PET, shortKey(r.RouteKey), r.Rounds)
		for _, run := range rt.Runs {
			fmt.Fprintf(w, "  [%d] RUN %s sent=%d recv=%d messages=%d\n",
				run.Seq, run.Status, run.BytesSent, run.BytesRecv, run.Messages)
		}
		if schedule && r.Schedule != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Schedule:")
			for _, line := range strings.Split(strings.TrimRight(r.Schedule, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  Routes:     %d\n", result.Stats.Routes)
	fmt.Fprintf(w, "  Runs:       %d\n", result.Stats.Runs)
	fmt.Fprintf(w, "  Failures:   %d\n", result.Stats.Failures)
	fmt.Fprintf(w, "  Bytes Sent: %d\n", result.Stats.BytesSent)
	fmt.Fprintf(w, "  Bytes Recv: %d\n", result.Stats.BytesRecv)
	fmt.Fprintf(w, "  Messages:   %d\n", result.Stats.Messages)
}
