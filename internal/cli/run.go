package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/redpath/internal/engine"
	"github.com/roach88/redpath/internal/redfish"
	"github.com/roach88/redpath/internal/redfish/cache"
	"github.com/roach88/redpath/internal/redfish/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Endpoint  string
	CachePath string
	CacheTTL  time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <queries-dir>",
		Short: "Execute queries against a Redfish service",
		Long: `Execute all queries in a directory against a live Redfish service.

Queries are loaded from .cue and .yaml files, compiled into plans, and
executed against the service root. With --cache, responses are cached in
a SQLite database and reused within the TTL window.

Example:
  redpath run --endpoint https://bmc:443 ./queries
  redpath run --endpoint http://localhost:8000 --cache /tmp/redpath.db --ttl 30s ./queries -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueries(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "base URL of the Redfish service (required)")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "path to SQLite response cache (optional)")
	cmd.Flags().DurationVar(&opts.CacheTTL, "ttl", cache.DefaultTTL, "response cache TTL")
	_ = cmd.MarkFlagRequired("endpoint")

	return cmd
}

func runQueries(opts *RunOptions, queriesDir string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	slog.Info("loading queries", "dir", queriesDir)
	loaded, errs := LoadQueries(queriesDir, LoadModeCollectAll)
	for _, err := range errs {
		slog.Error("query load problem", "error", err)
	}
	if loaded == nil || len(loaded.Queries) == 0 {
		return NewExitError(ExitCommandError, "no usable queries loaded")
	}
	slog.Info("queries loaded", "files", loaded.FileCount, "queries", len(loaded.Queries))

	var tr transport.Transport = transport.NewHTTP(opts.Endpoint)
	if opts.CachePath != "" {
		store, err := cache.Open(opts.CachePath, tr, cache.WithTTL(opts.CacheTTL))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open response cache", err)
		}
		defer store.Close()
		tr = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := redfish.ServiceRoot(ctx, tr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fetch service root", err)
	}

	clock := engine.SystemClock{}
	results := make([]*engine.Result, 0, len(loaded.Queries))
	for _, q := range loaded.Queries {
		planner := engine.New(q)
		result := planner.Execute(ctx, root, clock)
		results = append(results, result)
		slog.Info("query executed",
			"query_id", q.ID,
			"trace_token", result.TraceToken,
			"buckets", len(result.RecordsBySubqueryID),
			"duration", result.End.Sub(result.Start),
		)
	}

	return printResults(opts.RootOptions, cmd, results)
}

// printResults renders executed query results per the --format flag.
func printResults(opts *RootOptions, cmd *cobra.Command, results []*engine.Result) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.Format == "json" {
		return out.PrintJSON(results)
	}

	for _, result := range results {
		out.Printf("query %v (%s .. %s)\n",
			result.QueryIDs,
			result.Start.Format(time.RFC3339),
			result.End.Format(time.RFC3339),
		)
		for _, id := range sortedBucketIDs(result) {
			set := result.RecordsBySubqueryID[id]
			out.Printf("  %s: %d record(s)\n", id, len(set.Records))
			for _, rec := range set.Records {
				for _, key := range rec.SortedKeys() {
					out.Printf("    %s=%v\n", key, rec[key])
				}
			}
		}
	}
	return nil
}

func sortedBucketIDs(result *engine.Result) []string {
	ids := make([]string, 0, len(result.RecordsBySubqueryID))
	for id := range result.RecordsBySubqueryID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// configureLogging installs the process-wide slog handler.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
