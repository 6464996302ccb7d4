package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datasheet/internal/config"
	"github.com/JonMunkholm/datasheet/internal/core"
	"github.com/JonMunkholm/datasheet/internal/logging"
	"github.com/JonMunkholm/datasheet/internal/store"
)

// app holds the state shared by every subcommand for one invocation.
type app struct {
	dbURL    string
	uploads  string
	logLevel string
	asJSON   bool

	cfg     *config.Config
	logger  *slog.Logger
	db      *store.Store
	service *core.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "datasheet",
		Short: "Reconcile product datasheets into the catalog",
		Long: `datasheet stores spreadsheet datasheets as runs and reconciles their rows
into products, variants and option values.

Configuration comes from the environment (see DATABASE_URL, UPLOAD_DIR,
SHEET_EXCLUSION_KEYWORDS, LOG_LEVEL); flags override it.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dbURL, "database", "", "database URL or SQLite path (default: $DATABASE_URL)")
	flags.StringVar(&a.uploads, "uploads", "", "directory for stored datasheets (default: $UPLOAD_DIR)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default: $LOG_LEVEL)")
	flags.BoolVar(&a.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		a.processCmd(),
		a.runsCmd(),
		a.deleteCmd(),
		a.migrateCmd(),
	)
	return root
}

// setup loads configuration, opens the store and builds the service.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbURL != "" {
		cfg.Database.URL = a.dbURL
	}
	if a.uploads != "" {
		cfg.Upload.Dir = a.uploads
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	db, err := store.Open(ctx, store.Options{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	a.db = db.WithLogger(a.logger)

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	processor := core.NewProcessor(a.db, a.db, core.ProcessorConfig{
		Keywords: cfg.Sheet.ExclusionKeywords,
		Logger:   a.logger,
	})
	a.service, err = core.NewService(a.db, processor, core.ServiceConfig{
		UploadsDir:    cfg.Upload.Dir,
		MaxFileSize:   cfg.Upload.MaxFileSize,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
	})
	return err
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

func (a *app) processCmd() *cobra.Command {
	var runIDs []string

	cmd := &cobra.Command{
		Use:   "process [file...]",
		Short: "Submit datasheets and reconcile them",
		Long: `process copies each file into the uploads directory as a new run and
reconciles it immediately. With --run, pending runs that were submitted
earlier (for example through the HTTP API) are processed instead.

Every file is attempted; the command fails if any of them failed.`,
		Example: `  datasheet process catalog.xlsx
  datasheet process prices.csv.gz stock.tsv
  datasheet process --run 5f0c6a52-8d3e-4d6b-9a55-0d7c1b2e3f40`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(runIDs) == 0 {
				return errors.New("nothing to process: pass a file or --run <id>")
			}
			ctx, cancel := withTimeout(cmd, a.cfg.Upload.Timeout)
			defer cancel()

			var results []processResult
			var failed int

			for _, path := range args {
				res := processResult{Source: path}
				run, err := a.service.SubmitFile(ctx, path)
				if err == nil {
					res.ID = run.ID
					res.Summary, err = a.service.Process(ctx, run.ID)
				}
				if err != nil {
					res.Error = describeError(err)
					a.logger.Warn("datasheet failed", "file", path, "error", err)
					failed++
				}
				results = append(results, res)
			}

			for _, id := range runIDs {
				res := processResult{Source: id, ID: id}
				summary, err := a.service.Process(ctx, id)
				res.Summary = summary
				if err != nil {
					res.Error = describeError(err)
					a.logger.Warn("run failed", "run_id", id, "error", err)
					failed++
				}
				results = append(results, res)
			}

			if err := a.printResults(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d datasheets failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&runIDs, "run", nil, "process an existing pending run (repeatable)")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"ls", "list"},
		Short:   "List datasheet runs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.service.List(cmd.Context(), includeDeleted)
			if err != nil {
				return err
			}
			return a.printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "deleted", false, "include soft-deleted runs")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Soft-delete datasheet runs",
		Long:  "delete hides runs from the listing. Stored files and reconciled records are kept.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := a.service.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %s", id, describeError(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// setup has already applied the schema
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.db.Dialect())
			return nil
		},
	}
}

// processResult is one line of process output.
type processResult struct {
	Source  string       `json:"source"`
	ID      string       `json:"id,omitempty"`
	Summary core.Summary `json:"summary"`
	Error   string       `json:"error,omitempty"`
}

func (a *app) printResults(w io.Writer, results []processResult) error {
	if a.asJSON {
		return writeJSON(w, results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tRUN\tRESULT")
	for _, r := range results {
		outcome := r.Summary.Stats.String()
		if r.Error != "" {
			outcome = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Source, r.ID, outcome)
	}
	return tw.Flush()
}

func (a *app) printRuns(w io.Writer, runs []core.Run) error {
	if a.asJSON {
		return writeJSON(w, runs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tCREATED\tSTATUS\tCREATED\tSKIPPED\tMATCHED\tUPDATED\tFAILED\tFAILED QUERIES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.FileName, r.CreatedAt.Local().Format(time.DateTime), runStatus(r),
			r.Stats.Created, r.Stats.Skipped, r.Stats.Matched, r.Stats.Updated,
			r.Stats.Failed, r.Stats.FailedQueries)
	}
	return tw.Flush()
}

func runStatus(r core.Run) string {
	switch {
	case r.Deleted():
		return "deleted"
	case r.Processed():
		return "processed"
	default:
		return "pending"
	}
}

// describeError renders err for the terminal. Errors without a catalogue
// entry keep their technical text so the cause is not lost.
func describeError(err error) string {
	msg := core.FormatUserError(err)
	if !core.IsUserFacing(err) {
		msg += ": " + err.Error()
	}
	return msg
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withTimeout bounds processing by UPLOAD_TIMEOUT; zero means no limit.
func withTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
