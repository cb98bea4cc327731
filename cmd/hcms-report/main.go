// Command hcms-report writes one doctor's export from the configured record
// store without going through the queue.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"hcms/internal/backend"
	"hcms/internal/cli"
	"hcms/internal/config"
	"hcms/internal/core"
	applog "hcms/internal/log"
	"hcms/internal/records"
	"hcms/internal/report"
	"hcms/internal/sheets"
	gsheet "hcms/internal/sheets/google"
	"hcms/internal/worker"
)

type options struct {
	doctorID string
	start    string
	end      string
	outDir   string
	publish  bool
	asJSON   bool
}

func parseFlags(args []string, defaultOut string) (options, error) {
	var o options
	fs := flag.NewFlagSet("hcms-report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.doctorID, "doctor", "", "doctor id (required)")
	fs.StringVar(&o.start, "start", "", "first day, YYYY-MM-DD (default: open)")
	fs.StringVar(&o.end, "end", "", "last day, YYYY-MM-DD (default: open)")
	fs.StringVar(&o.outDir, "out", defaultOut, "directory the XLSX file is written to")
	fs.BoolVar(&o.publish, "sheets", false, "also publish to GOOGLE_SPREADSHEET_ID")
	fs.BoolVar(&o.asJSON, "json", false, "print the export as JSON instead of writing a file")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.doctorID == "" {
		return options{}, errors.New("-doctor is required")
	}
	return o, nil
}

// run builds the export and either prints it or hands it to the export worker.
func run(ctx context.Context, rs records.SnapshotReader, publisher sheets.ReportPublisher, o options, stdout io.Writer) error {
	rng, err := core.NewDayRange(o.start, o.end)
	if err != nil {
		return fmt.Errorf("date range: %w", err)
	}
	if o.asJSON {
		snap, err := rs.Snapshot(ctx)
		if err != nil {
			return err
		}
		exp, err := report.BuildDoctorExport(snap, o.doctorID, rng)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	}

	res, err := worker.NewExportWorker(rs, publisher, o.outDir).
		Run(ctx, worker.Job{ID: "cli", DoctorID: o.doctorID, Range: rng})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.File)
	if res.SheetRef != "" {
		fmt.Fprintln(stdout, res.SheetRef)
	}
	return nil
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentReport, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	o, err := parseFlags(os.Args[1:], cfg.ExportDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: hcms-report -doctor ID [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-out DIR] [-sheets] [-json]")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize record store", applog.FieldError, err)
		os.Exit(1)
	}
	defer store.Cleanup()
	if cfg.DataBackend == config.BackendMemory && cfg.SeedFile == "" {
		logger.Warn("Reporting from the default memory seed; set DATA_BACKEND=sqlite or DATA_SEED_FILE for real records")
	}

	var publisher sheets.ReportPublisher
	if o.publish {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = client
	}

	if err := run(ctx, store.Repository, publisher, o, os.Stdout); err != nil {
		logger.Error("Export failed", applog.FieldError, err, applog.FieldDoctorID, o.doctorID)
		os.Exit(1)
	}
}
