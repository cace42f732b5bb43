package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"receivables/internal/config"
	"receivables/internal/consolidation"
	"receivables/internal/credentials"
	"receivables/internal/export"
	"receivables/internal/ledger"
	"receivables/internal/logger"
	"receivables/internal/metrics"
	"receivables/internal/notify"
	"receivables/internal/sheets"
	"receivables/pkg/models"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Build the monthly AR aging gold layer from the invoice ledger",
	Long: `Consolidate reads every yearly ledger table, builds one month-start
snapshot per month from the earliest invoice to the current month and
computes, per client and snapshot:

  - outstanding debt split into 0–3, 3–6, 6–12 and >12 month buckets
  - an alert for debt crossing three months overdue since the previous month
  - the amount billed in the snapshot month
  - the variance of every figure against the previous month

The result fully replaces the output worksheet and any configured file,
SQLite or broker targets.

Environment:
  GOOGLE_SHEET_URL / GOOGLE_SPREADSHEET_ID   ledger workbook
  GOOGLE_CREDENTIALS_JSON / GOOGLE_APPLICATION_CREDENTIALS   service account
  OUTPUT_SHEET_NAME                           output worksheet (default Consolidacion)
  EXPORT_CSV_PATH, EXPORT_PARQUET_PATH, EXPORT_SQLITE_PATH   extra outputs
  AMQP_URL, AMQP_EXCHANGE, AMQP_ROUTING_KEY   run notifications
  METRICS_TEXTFILE                            Prometheus textfile output`,
	Example: `  # Consolidate the configured workbook into its output worksheet
  receivables consolidate

  # Recompute a past month without writing anything
  receivables consolidate --as-of 2024-04-15 --dry-run

  # Consolidate yearly CSV exports into a Parquet file only
  receivables consolidate --input-dir ./ledger --no-sheet --parquet gold.parquet`,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)

	consolidateCmd.Flags().String("as-of", "", "Run date (YYYY-MM-DD); defaults to today in REPORT_TIMEZONE")
	consolidateCmd.Flags().Bool("dry-run", false, "Compute the gold layer without writing or publishing")
	consolidateCmd.Flags().String("input-dir", "", "Read yearly <year>.csv files from this directory instead of the workbook")
	consolidateCmd.Flags().String("output-sheet", "", "Output worksheet name (overrides OUTPUT_SHEET_NAME)")
	consolidateCmd.Flags().Bool("no-sheet", false, "Do not write the output worksheet")
	consolidateCmd.Flags().String("csv", "", "Also write the gold layer to this CSV file")
	consolidateCmd.Flags().String("parquet", "", "Also write the gold layer to this Parquet file")
	consolidateCmd.Flags().String("sqlite", "", "Also write the gold layer to this SQLite database")
	consolidateCmd.Flags().Int("workers", 0, "Parallel client workers (overrides ENGINE_WORKERS)")
}

type consolidateFlags struct {
	asOf        time.Time
	dryRun      bool
	inputDir    string
	outputSheet string
	noSheet     bool
	csvPath     string
	parquetPath string
	sqlitePath  string
	workers     int
}

func readConsolidateFlags(cmd *cobra.Command, cfg *config.Config) (*consolidateFlags, error) {
	f := &consolidateFlags{
		outputSheet: cfg.OutputSheetName,
		csvPath:     cfg.ExportCSVPath,
		parquetPath: cfg.ExportParquetPath,
		sqlitePath:  cfg.ExportSQLitePath,
		workers:     cfg.EngineWorkers,
	}

	asOf, _ := cmd.Flags().GetString("as-of")
	if asOf != "" {
		t, err := time.Parse(models.ReportDateLayout, asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid --as-of date %q, expected YYYY-MM-DD: %w", asOf, err)
		}
		f.asOf = t
	}

	f.dryRun, _ = cmd.Flags().GetBool("dry-run")
	f.noSheet, _ = cmd.Flags().GetBool("no-sheet")
	f.inputDir, _ = cmd.Flags().GetString("input-dir")

	if v, _ := cmd.Flags().GetString("output-sheet"); v != "" {
		f.outputSheet = v
	}
	if v, _ := cmd.Flags().GetString("csv"); v != "" {
		f.csvPath = v
	}
	if v, _ := cmd.Flags().GetString("parquet"); v != "" {
		f.parquetPath = v
	}
	if v, _ := cmd.Flags().GetString("sqlite"); v != "" {
		f.sqlitePath = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v != 0 {
		if v < 0 {
			return nil, fmt.Errorf("invalid --workers %d: must be positive", v)
		}
		f.workers = v
	}

	return f, nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	const op = "runConsolidate"
	log := logger.WithComponent("consolidate")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	flags, err := readConsolidateFlags(cmd, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	needSheet := flags.inputDir == "" || !flags.noSheet
	var workbook *sheets.Service
	if needSheet {
		workbook, err = openWorkbook(ctx, cfg, flags.inputDir == "")
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	var source ledger.TableSource
	if flags.inputDir != "" {
		log.Info().Str("dir", flags.inputDir).Msg("Reading ledger from CSV directory")
		source = ledger.NewCSVSource(flags.inputDir)
	} else {
		log.Info().Str("spreadsheet_id", workbook.SpreadsheetID()).Msg("Reading ledger from workbook")
		source = ledger.NewSheetSource(workbook)
	}
	loader := ledger.NewLoader(source, ledger.NewNormalizer(cfg.LedgerDayFirst))

	sinks := buildSinks(flags, workbook)
	var sink export.Sink
	if sinks.Len() > 0 {
		sink = sinks
	} else {
		log.Warn().Msg("No output configured, the gold layer will only be computed")
	}

	publisher := openPublisher(cfg, flags.dryRun)
	defer publisher.Close()

	runner := consolidation.NewRunner(loader, sink, publisher, metrics.New(), consolidation.Options{
		Location:        loc,
		AsOf:            flags.asOf,
		DryRun:          flags.dryRun,
		Workers:         flags.workers,
		MetricsTextfile: cfg.MetricsTextfile,
	})

	res, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	printSummary(res, sinks.Names(), flags.dryRun)
	return nil
}

// openWorkbook connects to the configured spreadsheet. When the workbook is only
// an output target, a missing spreadsheet reference disables it instead of failing.
func openWorkbook(ctx context.Context, cfg *config.Config, required bool) (*sheets.Service, error) {
	log := logger.WithComponent("consolidate")

	ref := cfg.SpreadsheetRef()
	if ref == "" {
		if required {
			return nil, fmt.Errorf("GOOGLE_SHEET_URL or GOOGLE_SPREADSHEET_ID is required")
		}
		log.Info().Msg("No spreadsheet configured, output worksheet disabled")
		return nil, nil
	}

	creds, err := credentials.Source{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	}.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Google credentials: %w", err)
	}
	log.Debug().Str("origin", string(creds.Origin)).Str("path", creds.Path).Msg("Google credentials resolved")

	svc, err := sheets.NewSheetsService(ctx, ref, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

func buildSinks(flags *consolidateFlags, workbook *sheets.Service) *export.Multi {
	var sinks []export.Sink
	if workbook != nil && !flags.noSheet {
		sinks = append(sinks, export.NewSheetSink(workbook, flags.outputSheet))
	}
	if flags.csvPath != "" {
		sinks = append(sinks, &export.CSVSink{Path: flags.csvPath})
	}
	if flags.parquetPath != "" {
		sinks = append(sinks, &export.ParquetSink{Path: flags.parquetPath})
	}
	if flags.sqlitePath != "" {
		sinks = append(sinks, &export.SQLiteSink{Path: flags.sqlitePath})
	}
	return export.NewMulti(sinks...)
}

// openPublisher connects to the broker when one is configured. Notifications are
// auxiliary: a broker that cannot be reached only disables them.
func openPublisher(cfg *config.Config, dryRun bool) notify.Publisher {
	log := logger.WithComponent("consolidate")

	if cfg.AMQPURL == "" || dryRun {
		return notify.Nop{}
	}

	pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		log.Warn().Err(err).Msg("Run notifications disabled")
		return notify.Nop{}
	}
	return pub
}

func printSummary(res *consolidation.Result, sinks []string, dryRun bool) {
	fmt.Printf("Run %s: %s\n", res.RunID, res.Status)
	fmt.Printf("As of: %s\n", res.AsOf.Format(models.ReportDateLayout))
	if res.Snapshots.Len() > 0 {
		fmt.Printf("Snapshots: %d (%s .. %s)\n",
			res.Snapshots.Len(),
			res.Snapshots.Start().Format(models.ReportDateLayout),
			res.Snapshots.End().Format(models.ReportDateLayout))
	}
	fmt.Printf("Invoices: %d, clients: %d, gold rows: %d\n", res.Invoices, res.Clients, len(res.Rows))

	switch {
	case dryRun:
		fmt.Println("Dry run: nothing written")
	case res.Exported:
		for _, s := range sinks {
			fmt.Printf("Written: %s\n", s)
		}
	}
}
