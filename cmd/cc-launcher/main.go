// Command cc-launcher runs the Anthropic-to-OpenAI translating proxy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cc-launcher/cc-launcher/internal/config"
	"github.com/cc-launcher/cc-launcher/internal/obs"
	"github.com/cc-launcher/cc-launcher/internal/server"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagVerbose bool
	flagPort    int
	flagNoOpen  bool
)

func main() {
	root := &cobra.Command{
		Use:           "cc-launcher",
		Short:         "Anthropic-to-OpenAI translating proxy",
		Long:          "cc-launcher accepts Anthropic /v1/messages requests and forwards them,\ntranslated, to an OpenAI-compatible chat-completions endpoint.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: time.RFC3339,
			})
			if flagVerbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "listen port (overrides PROXY_PORT)")
	serveCmd.Flags().BoolVar(&flagNoOpen, "no-browser", false, "do not open the browser on start")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cc-launcher %s (built %s)\n", version, buildTime)
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	root.RunE = serveCmd.RunE

	if err := root.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func runServe() error {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded environment from .env")
	}

	cfg := config.Load()
	if flagPort > 0 {
		cfg.Port = flagPort
	}
	if flagNoOpen {
		cfg.AutoOpenBrowser = false
	}

	meters, err := obs.NewMeterSetup(cfg.MetricsEnabled, 60*time.Second)
	if err != nil {
		return fmt.Errorf("metrics setup: %w", err)
	}

	var tracker *obs.TokenTracker
	if meters != nil {
		tracker = meters.Tracker
	}

	srv := server.New(cfg,
		server.WithVersion(version),
		server.WithOpenBrowser(cfg.AutoOpenBrowser),
		server.WithTokenTracker(tracker),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logrus.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Warnf("shutdown: %v", err)
	}
	if err := meters.Shutdown(ctx); err != nil {
		logrus.Warnf("metrics shutdown: %v", err)
	}
	return nil
}
