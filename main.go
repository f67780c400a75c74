package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iedon/cms-render-go/config"
	"github.com/iedon/cms-render-go/server"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "cms-render",
		Short:         "Render CMS pages from placeholders and plugin trees",
		Version:       SERVER_VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to configuration file")
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve pages over HTTP",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "build",
			Short: "Render every page into the output directory",
			RunE:  runBuild,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger.Info("starting", "version", SERVER_VERSION, "live", a.cfg.Live, "store", a.cfg.Store.Driver)

	if a.cfg.Live {
		go func() {
			if err := a.templates.Watch(ctx, logger); err != nil {
				logger.Warn("template watcher", "error", err)
			}
		}()
	}
	return server.New(a.cfg, a.svc, logger, SERVER_SIGNATURE).Start(ctx)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.svc.BuildStatic(ctx); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	logger.Info("static build completed", "output", a.cfg.OutputDir)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
