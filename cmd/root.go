// Package cmd defines and implements the CLI commands for the listing-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/app"
	"github.com/JakeFAU/listing-crawler/internal/config"
	"github.com/JakeFAU/listing-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

type rootOptions struct {
	cfgFile  string
	startURL string
	maxPages int

	app *app.App
}

// release closes the application built by the pre-run hook. It runs whether
// or not the subcommand succeeded.
func (o *rootOptions) release() {
	if o.app == nil {
		return
	}
	_ = o.app.Close()
	_ = o.app.Logger().Sync()
	o.app = nil
}

// newApp is the application factory. Tests replace it.
var newApp = app.New

// newRootCmd creates and configures the root command. The returned options
// own the application once a subcommand starts; release them when done.
func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{maxPages: -1}
	cmd := &cobra.Command{
		Use:   "listing-crawler",
		Short: "Crawls a paginated product listing into a records file.",
		Long: `listing-crawler discovers how many pages a product listing has, then visits
every page in order, extracting name, price and URL for each entry and
appending them to the configured sinks as it goes.`,
		SilenceUsage: true,

		// Builds the application after flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LoggingOptions())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.startURL, "start-url", "", "listing URL ending in the page parameter, e.g. https://example.com/games?p=")
	cmd.PersistentFlags().IntVar(&opts.maxPages, "max-pages", -1, "cap on pages to visit (0 = unlimited; default from config)")

	cmd.AddCommand(newCrawlCmd(), newCountCmd())
	return cmd, opts
}

// run executes the root command and always releases the application, since
// cobra skips post-run hooks when RunE fails.
func run(ctx context.Context, root *cobra.Command, opts *rootOptions) error {
	defer opts.release()
	return root.ExecuteContext(ctx)
}

const configKey appKeyType = "config"

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if opts.startURL != "" {
		cfg.Crawler.StartURL = opts.startURL
	}
	if opts.maxPages >= 0 {
		cfg.Crawler.MaxPages = opts.maxPages
	}
	if err := cfg.CrawlerConfig().Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveApp(ctx context.Context) (*app.App, config.Config, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, config.Config{}, errors.New("application services not initialized")
	}
	cfg, _ := ctx.Value(configKey).(config.Config)
	return appInstance, cfg, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, opts := newRootCmd()
	if err := run(ctx, root, opts); err != nil {
		// The logger may not exist yet when config loading fails.
		zap.NewExample().Error("command execution failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
