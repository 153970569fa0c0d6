package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/guttosm/flexpulse/config"
	"github.com/guttosm/flexpulse/internal/app"
	"github.com/guttosm/flexpulse/internal/domain/dto"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/ingestion"
	"github.com/guttosm/flexpulse/internal/logger"
	"github.com/guttosm/flexpulse/internal/query"
	"github.com/guttosm/flexpulse/internal/storage"
)

// Indirections for unit testing.
var (
	dbOpener       = app.InitPostgres
	migrate        = storage.Migrate
	fetcherFactory = app.NewFetcher
)

var errStorageDisabled = errors.New("storage is disabled (STORAGE_ENABLED=false); use summary for offline analysis")

func newImportCmd() *cobra.Command {
	var (
		dir      string
		parallel int
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Persist a directory of Flex Query reports into PostgreSQL",
		Long: `Reads every .xml report of --dir and stores its executions. Reports already
imported (same content hash) are skipped unless --force is set. A running
server picks the new fills up on its next restart or import.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.AppConfig
			if !cfg.Storage.Enabled {
				return errStorageDisabled
			}
			if dir == "" {
				dir = cfg.Import.Dir
			}
			if parallel == 0 {
				parallel = cfg.Import.Parallel
			}

			db, err := dbOpener(cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer func() { _ = db.Close() }()

			if cfg.Storage.AutoMigrate {
				if err := migrate(cmd.Context(), db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			res, err := ingestion.ProcessDirectory(cmd.Context(), dir, db, parallel, force)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "files=%d imported=%d skipped=%d fills=%d\n",
				res.Files, res.Imported, res.Skipped, res.Fills)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory with .xml reports (default IMPORT_DIR)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "files processed concurrently (0=auto up to CPU, max 8)")
	cmd.Flags().BoolVar(&force, "force", false, "re-import reports already in the import log")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the configured Flex Query from the Flex Web Service",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetcher, err := fetcherFactory(config.AppConfig)
			if err != nil {
				return err
			}
			if fetcher == nil {
				return errors.New("flex web service is not configured (FLEX_TOKEN, FLEX_QUERY_ID)")
			}

			data, err := fetcher.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch report: %w", err)
			}
			report, err := flexquery.ParseBytes(data)
			if err != nil {
				return fmt.Errorf("parse report: %w", err)
			}
			logger.L().Info().
				Str("query", report.QueryName).
				Int("statements", len(report.Statements)).
				Int("fills", len(report.Fills)).
				Msg("report fetched")

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var (
		dir      string
		parallel int
		groupBy  []string
		symbols  []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Reconcile a directory of reports offline and print metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.AppConfig
			if dir == "" {
				dir = cfg.Import.Dir
			}

			groupings := make([]models.Grouping, 0, len(groupBy))
			for _, name := range groupBy {
				g, ok := models.ParseGrouping(strings.ToLower(name))
				if !ok {
					return fmt.Errorf("unknown grouping %q", name)
				}
				groupings = append(groupings, g)
			}

			raws, err := ingestion.LoadDirectory(cmd.Context(), dir, parallel)
			if err != nil {
				return err
			}
			pipeline, err := app.NewPipeline(cfg, nil)
			if err != nil {
				return err
			}
			set := pipeline.Build(raws, "dir:"+dir)
			res := query.Run(set.Trades, query.Filter{Symbols: symbols}, groupings...)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(dto.MetricsResponse{Buckets: res.Buckets, Summary: res.Summary})
			}
			return printSummary(cmd.OutOrStdout(), set.Fills, set.Rejected, res, groupings)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory with .xml reports (default IMPORT_DIR)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "files decoded concurrently (0=auto)")
	cmd.Flags().StringSliceVar(&groupBy, "group-by", []string{string(models.GroupDay)}, "day, symbol, day_symbol, week, month, quarter")
	cmd.Flags().StringSliceVar(&symbols, "symbol", nil, "only these underlying symbols")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flexpulse %s\n", version)
		},
	}
}

// printSummary renders the summary and one table per grouping.
func printSummary(w io.Writer, fills, rejected int, res query.Result, groupings []models.Grouping) error {
	s := res.Summary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "fills\t%d\t(rejected %d)\n", fills, rejected)
	fmt.Fprintf(tw, "trades\t%d\t(closed %d, open %d, expired %d)\n", s.TradeCount, s.ClosedCount, s.OpenCount, s.ExpiredCount)
	fmt.Fprintf(tw, "win rate\t%s%%\t(%d wins, %d losses)\n", s.WinRate, s.Wins, s.Losses)
	fmt.Fprintf(tw, "net pnl\t%s\t(gross %s, commission %s)\n", s.NetPnL, s.GrossPnL, s.Commission)
	fmt.Fprintf(tw, "avg per trade\t%s\t(winner %s, loser %s)\n", s.AvgPerTrade, s.AvgWinner, s.AvgLoser)
	fmt.Fprintf(tw, "commission drag\t%s%%\n", s.CommissionDrag)
	if !s.PremiumSold.IsZero() {
		fmt.Fprintf(tw, "premium capture\t%s%%\t(sold %s)\n", s.PremiumCaptureRatio, s.PremiumSold)
	}

	for _, g := range groupings {
		fmt.Fprintf(tw, "\n%s\ttrades\twins\tlosses\twin rate\tnet pnl\n", g)
		for _, b := range res.Buckets[g] {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s%%\t%s\n", bucketLabel(b.Key), b.TradeCount, b.Wins, b.Losses, b.WinRate, b.NetPnL)
		}
	}
	return tw.Flush()
}

func bucketLabel(k models.BucketKey) string {
	switch {
	case k.Period != "" && k.Symbol != "":
		return k.Period + " " + k.Symbol
	case k.Symbol != "":
		return k.Symbol
	default:
		return k.Period
	}
}
