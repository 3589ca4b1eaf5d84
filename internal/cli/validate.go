package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/redpath/internal/query"
	"github.com/roach88/redpath/internal/redpath"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// validationReport is the JSON output shape of the validate command.
type validationReport struct {
	Files    int      `json:"files"`
	Queries  int      `json:"queries"`
	Problems []string `json:"problems"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <queries-dir>",
		Short: "Compile-check queries without executing them",
		Long: `Load every query file in a directory, check structural
well-formedness, and compile every path expression. Nothing is fetched.

Exit codes:
  0  all queries valid
  1  one or more queries have problems
  2  the directory could not be read at all`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateQueries(opts, args[0], cmd)
		},
	}

	return cmd
}

func validateQueries(opts *ValidateOptions, queriesDir string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	loaded, errs := LoadQueries(queriesDir, LoadModeCollectAll)
	if loaded == nil {
		return WrapExitError(ExitCommandError, "failed to load queries", errs[0])
	}

	report := validationReport{
		Files:    loaded.FileCount,
		Queries:  len(loaded.Queries),
		Problems: []string{},
	}
	for _, err := range errs {
		report.Problems = append(report.Problems, err.Error())
	}

	for _, q := range loaded.Queries {
		result := query.Validate(q)
		report.Problems = append(report.Problems, result.Problems...)

		// Structural validation does not parse paths; compile each one so
		// bracket and predicate errors surface here rather than at run time.
		for _, sq := range q.Subqueries {
			if _, err := redpath.ParseSteps(sq.ID, sq.Path); err != nil {
				report.Problems = append(report.Problems, err.Error())
			}
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := out.PrintJSON(report); err != nil {
			return err
		}
	} else {
		out.Printf("%d file(s), %d query(ies)\n", report.Files, report.Queries)
		if len(report.Problems) == 0 {
			out.Printf("all queries valid\n")
		}
		for _, problem := range report.Problems {
			out.Printf("problem: %s\n", problem)
		}
	}

	if len(report.Problems) > 0 {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
