package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"brims/libs/listview"

	"github.com/spf13/cobra"
)

// run executes the console command line. Without a subcommand it serves the
// dashboard.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "console",
		Short:         "BRIMS operations console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnvFile(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), stdout)
		},
	}
	root.RunE = serve.RunE

	root.AddCommand(serve, newExportCommand(stdout, stderr), newMigrateCommand(stderr))
	return root
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

func runServe(ctx context.Context, logOutput io.Writer) error {
	logger := newLogger(logOutput)
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.serve(ctx)
}

func newMigrateCommand(stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the action journal migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(stderr)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.runMigrations(cmd.Context())
		},
	}
}

type exportOptions struct {
	format    string
	out       string
	search    string
	status    string
	kind      string
	barangay  string
	archive   string
	sort      string
	direction string
}

func (o exportOptions) params() listview.Params {
	return listview.Params{
		Search: o.search,
		Categories: map[string]string{
			"status":   o.status,
			"type":     o.kind,
			"barangay": o.barangay,
			"archive":  o.archive,
		},
		Sort:      o.sort,
		Direction: listview.ParseDirection(o.direction),
	}
}

func newExportCommand(stdout, stderr io.Writer) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered incident list as CSV or PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.format = strings.ToLower(strings.TrimSpace(opts.format))
			if opts.format != exportFormatCSV && opts.format != exportFormatPDF {
				return fmt.Errorf("--format must be %s or %s", exportFormatCSV, exportFormatPDF)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend := NewBackendClient(cfg.BackendBaseURL, cfg.BackendAPIToken, cfg.BackendTimeout, cfg.BackendRatePerSecond)
			return runExport(cmd.Context(), backend.ListIncidents, opts, stdout, newLogger(stderr))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.format, "format", exportFormatCSV, "csv or pdf")
	flags.StringVar(&opts.out, "out", "-", "output file, - for stdout")
	flags.StringVar(&opts.search, "q", "", "search term")
	flags.StringVar(&opts.status, "status", listview.All, "status filter")
	flags.StringVar(&opts.kind, "type", listview.All, "incident type filter")
	flags.StringVar(&opts.barangay, "barangay", listview.All, "barangay filter")
	flags.StringVar(&opts.archive, "archive", listview.All, "active, archived or all")
	flags.StringVar(&opts.sort, "sort", "", "sort field")
	flags.StringVar(&opts.direction, "dir", string(listview.Ascending), "asc or desc")
	return cmd
}

func runExport(ctx context.Context, list func(context.Context) ([]Incident, error), opts exportOptions, stdout io.Writer, logger *slog.Logger) error {
	incidents, err := list(ctx)
	if err != nil {
		return fmt.Errorf("list incidents: %w", err)
	}
	view := exportIncidentView(incidents, opts.params())

	var content []byte
	switch opts.format {
	case exportFormatPDF:
		content, err = buildIncidentPDF(view, "BRIMS incident report", time.Now())
	default:
		content, err = buildIncidentCSV(view)
	}
	if err != nil {
		return err
	}

	if opts.out == "" || opts.out == "-" {
		_, err = stdout.Write(content)
		return err
	}
	if err := os.WriteFile(opts.out, content, 0o644); err != nil {
		return err
	}
	logger.Info("export written", "file", opts.out, "format", opts.format, "incidents", len(view))
	return nil
}
