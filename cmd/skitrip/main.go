// Package main provides the skitrip binary entry point. skitrip plans the
// transportation, lodging and day-by-day ski schedule for a group trip.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/skitrip/llm/providers"

	"github.com/c360studio/skitrip/config"
	scheduleapi "github.com/c360studio/skitrip/processor/schedule-api"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "skitrip"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Group ski trip schedule planner",
		Long: `skitrip builds a complete ski trip schedule for a group: three
transportation options, three lodging options, and a day-by-day itinerary
with per-member slope recommendations.

Every stage is planned by a search-grounded language model.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(serveCmd(&flags), generateCmd(&flags), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel, flags.logFormat, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Serve(ctx)
		},
	}
}

func generateCmd(flags *globalFlags) *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the pipeline once and print the schedule",
		Long: `generate reads a schedule request (the POST /schedule/generate body)
from a file, or stdin when the path is "-", runs every stage, and writes the
schedule JSON to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel, flags.logFormat, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}

			body, err := readRequest(requestPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			req, err := body.Request()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			schedule, err := app.Service().Generate(ctx, req)
			if err != nil {
				return fmt.Errorf("generate schedule: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schedule)
		},
	}

	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "Request JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func readRequest(path string, stdin io.Reader) (*scheduleapi.GenerateBody, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var body scheduleapi.GenerateBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	return &body, nil
}

func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)
	loader.ExplicitFile = path
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// isServerClosed reports whether err is the normal result of Shutdown.
func isServerClosed(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled)
}
