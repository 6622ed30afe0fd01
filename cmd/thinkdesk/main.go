package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"thinkdesk/internal/config"
)

var (
	// Build info (set via ldflags).
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"

	// Global flags.
	logLevel   string
	logFormat  string
	logFile    string
	configPath string
	baseURL    string
)

// env is what PersistentPreRunE prepares for every subcommand.
type env struct {
	log     *logrus.Logger
	cfg     *config.Config
	logSink *os.File
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	e := &env{log: log}

	rootCmd := &cobra.Command{
		Use:   "thinkdesk",
		Short: "Terminal docs viewer and workflow wizard for the ThinkDesk API",
		Long: `thinkdesk browses the ThinkDesk REST API documentation and walks through
the login -> tenant -> role -> user -> SLA policy -> ticket workflow.

Without a subcommand the terminal UI is started.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd.Context(), e)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Write logs to this file (the terminal UI discards logs unless set)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to configuration file (default ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "",
		"ThinkDesk API base URL (overrides config and "+config.EnvBaseURL+")")

	rootCmd.AddCommand(
		newUICmd(e),
		newDocsCmd(e),
		newRunCmd(e),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.API.BaseURL = strings.TrimRight(v, "/")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	e.log.SetLevel(level)

	switch cfg.Log.Format {
	case "json":
		e.log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		e.log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Log.Format)
	}

	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		e.logSink = f
		e.log.SetOutput(f)
	case interactive(cmd):
		e.log.SetOutput(io.Discard)
	}

	e.cfg = cfg
	e.log.WithField("config", firstNonEmpty(config.ResolvePath(configPath), "(defaults)")).
		Debug("Configuration loaded:\n" + cfg.String())
	return nil
}

func (e *env) close() {
	if e.logSink != nil {
		_ = e.logSink.Close()
		e.logSink = nil
	}
}

// interactive reports whether cmd draws the terminal UI, which owns the screen.
func interactive(cmd *cobra.Command) bool {
	return cmd.Name() == "ui" || !cmd.HasParent()
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
