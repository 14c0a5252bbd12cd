package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/busybox42/lettera/internal/api"
	"github.com/busybox42/lettera/internal/cache"
	"github.com/busybox42/lettera/internal/catalog"
	"github.com/busybox42/lettera/internal/config"
	"github.com/busybox42/lettera/internal/dispatch"
	"github.com/busybox42/lettera/internal/lookup"
	"github.com/busybox42/lettera/internal/service"
	"github.com/busybox42/lettera/internal/store"
	"github.com/busybox42/lettera/internal/validation"
)

var (
	configPath string
	version    = "dev"
	commit     = "unknown"
	date       = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lettera",
		Short: "Lettera - letter notification service",
		Long: `Lettera stores, validates, and sends notification letters on behalf
of other applications, with environment-gated delivery.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	// Add subcommands
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tagsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the letter service",
	Long:  "Start the Lettera HTTP API server",
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Lettera %s\n", cmd.Root().Version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for generating and validating Lettera configuration",
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Search tag catalog commands",
}

func init() {
	// Server command flags
	serverCmd.Flags().String("listen", "", "API listen address (overrides config)")

	// Config subcommands
	configCmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate default configuration file",
		RunE:  generateConfig,
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE:  validateConfig,
	})

	// Tag subcommands
	tagsCmd.AddCommand(&cobra.Command{
		Use:   "seed [name...]",
		Short: "Add search tag names to the lookup table",
		Args:  cobra.MinimumNArgs(1),
		RunE:  seedTags,
	})
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.API.ListenAddr = listen
	}

	logger := setupLogging(cfg)
	logger.Info("starting lettera", "version", version, "hostname", cfg.Server.Hostname)

	st, err := store.Factory(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := st.Connect(); err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()
	logger.Info("store connected", "type", st.Type())

	var catalogOpts []catalog.Option
	if cfg.Cache.Enabled {
		c, err := cache.Factory(cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		if err := c.Connect(); err != nil {
			// The catalog works without a shared cache, just slower on
			// cold starts across nodes.
			logger.Warn("cache unavailable, continuing without it", "error", err)
		} else {
			defer c.Close()
			catalogOpts = append(catalogOpts, catalog.WithCache(c, time.Hour))
			logger.Info("cache connected", "type", c.Type())
		}
	}
	catalogOpts = append(catalogOpts, catalog.WithLogger(logger.With("component", "catalog")))
	cat := catalog.New(st.SearchParameterNames, catalogOpts...)

	registry := lookup.NewApplicationClient(cfg.Lookup.Applications.ClientConfig())
	templates := lookup.NewTemplateClient(cfg.Lookup.Templates.ClientConfig())
	validator := validation.NewEngine(registry, templates, logger.With("component", "validation"))

	level, err := dispatch.ParseSendLevel(cfg.Send.Level)
	if err != nil {
		return err
	}

	var transport dispatch.Transport
	if cfg.Send.Transport == "mock" {
		transport = dispatch.NewMockTransport()
	} else {
		transport = dispatch.NewSMTPTransport(cfg.Send.SMTP)
	}
	dispatcher := dispatch.NewEngine(level, transport, logger.With("component", "dispatch"))
	logger.Info("dispatch engine ready", "level", level.String())

	svc := service.New(st, cat, validator, dispatcher, logger.With("component", "service"))

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.NewServer(&cfg.API, svc, logger.With("component", "api"))
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("API server shutdown failed", "error", err)
		}
	}

	return nil
}

func generateConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = "./lettera.conf"
	}

	if err := config.CreateDefaultConfig(path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	result := cfg.Validate()
	for _, warning := range result.Warnings {
		fmt.Printf("WARNING: %s\n", warning.Error())
	}
	if !result.Valid {
		for _, verr := range result.Errors {
			fmt.Printf("ERROR: %s\n", verr.Error())
		}
		return fmt.Errorf("configuration is invalid")
	}

	fmt.Println("Configuration is valid")
	return nil
}

func seedTags(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.Factory(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := st.Connect(); err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := st.SeedTagNames(ctx, args); err != nil {
		return err
	}

	fmt.Printf("Seeded %d tag name(s)\n", len(args))
	return nil
}

func setupLogging(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
