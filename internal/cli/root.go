package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/mcroute/internal/control"
	"github.com/vietddude/mcroute/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "mcroute",
	Short: "mcroute memcache routing proxy",
	Long:  `mcroute routes memcache operations across backend pools through a configurable tree of routing policies.`,
	Run:   runProxy,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env and the config file, then initializes logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	initLogging(cfg.Logging, isDebug)
	return cfg
}

// initLogging installs the default logger: tint through stylelog for text,
// slog's JSON handler for format "json".
func initLogging(cfg config.LoggingConfig, debug bool) {
	level := loggingLevel(cfg, debug)
	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

func loggingLevel(cfg config.LoggingConfig, debug bool) slog.Level {
	switch {
	case debug || cfg.Level == "debug":
		return slog.LevelDebug
	case cfg.Level == "warn":
		return slog.LevelWarn
	case cfg.Level == "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runProxy(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize mcroute", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start mcroute", "error", err)
		os.Exit(1)
	}

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			reload(app)
			continue
		}
		slog.Info("Received signal, shutting down...", "signal", sig)
		break
	}

	// Graceful Shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("mcroute stopped gracefully")
}

func reload(app *control.App) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to reload config, keeping current tree", "error", err)
		return
	}
	if err := app.Reload(cfg); err != nil {
		slog.Error("Failed to reload routing tree, keeping current tree", "error", err)
	}
}
