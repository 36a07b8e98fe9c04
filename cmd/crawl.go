package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/config"
	"github.com/JakeFAU/listing-crawler/internal/metrics"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawls every listing page and appends the extracted records",
		Long: `Counts the listing pages once, then fetches, parses and extracts pages
1..N in order. Failed pages are logged and skipped. A failed page count
aborts the run and leaves the raw first page in the error capture path.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, cfg, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	report, runErr := appInstance.Crawler().Run(cmd.Context())

	if err := metrics.Push(cmd.Context(), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if runErr != nil {
		return fmt.Errorf("run crawler: %w", runErr)
	}
	fields := []zap.Field{zap.Int("records", report.Records)}
	if cfg.HasSink(config.SinkFile) {
		fields = append(fields, zap.String("output_path", cfg.Output.Path))
	}
	logger.Info("crawl command finished", fields...)
	return nil
}
