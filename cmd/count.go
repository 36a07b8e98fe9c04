package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCountCmd creates the 'count' subcommand.
func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Prints how many listing pages the start URL has",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, cfg, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			firstPage := cfg.Crawler.StartURL
			total, err := appInstance.Counter().Count(cmd.Context(), firstPage)
			if err != nil {
				return fmt.Errorf("count pages: %w", err)
			}
			appInstance.Logger().Info("page count discovered", zap.String("url", firstPage), zap.Int("pages", total))
			fmt.Fprintln(cmd.OutOrStdout(), total)
			return nil
		},
	}
}
