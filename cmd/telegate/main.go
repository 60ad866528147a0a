// Package main is the entry point for the telegate CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telegate/telegate/internal/config"
	"github.com/telegate/telegate/internal/gate"
	"github.com/telegate/telegate/internal/listener"
	"github.com/telegate/telegate/internal/policy"
	"github.com/telegate/telegate/internal/request/sqlite"
	"github.com/telegate/telegate/internal/telegram"
	"github.com/telegate/telegate/pkg/hookevent"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "telegate",
		Short:         "A Telegram approval gate for agent tool executions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), hookCmd(), listenCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("telegate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// hookCmd is the blocking gate invoked by the agent runtime for every
// PreToolUse event. It must never fail closed: any error on the way to a
// verdict exits 0 so the runtime proceeds. Exit 2 is reached only through
// an observed human denial.
func hookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Evaluate one tool execution event from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			// runHook owns all cleanup; os.Exit must only run after it
			// has returned so the store is closed on the deny path too.
			if code := runHook(cmd.Context(), os.Stdin, os.Stdout, cfgPath, newLogger()); code != hookevent.ExitAllow {
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// runHook reads one event from in, evaluates it, and returns the exit code
// for the agent runtime, writing the block decision to out on deny.
func runHook(ctx context.Context, in io.Reader, out io.Writer, cfgPath string, logger *slog.Logger) int {
	ev, err := hookevent.Decode(in)
	if err != nil {
		logger.Error("unreadable event, allowing", "error", err)
		return hookevent.ExitAllow
	}
	if ev.Event != hookevent.EventPreToolUse {
		return hookevent.ExitAllow
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("config unavailable, allowing", "error", err)
		return hookevent.ExitAllow
	}

	store, err := sqlite.Open(storePath(cfg))
	if err != nil {
		logger.Error("store unavailable, allowing", "error", err)
		return hookevent.ExitAllow
	}
	defer func() { _ = store.Close() }()

	client := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL)
	g := gate.New(
		policy.NewEngine(cfg.Policy),
		store,
		gate.NewTelegramNotifier(client, cfg.Telegram.ChatID),
		gate.Options{
			PollInterval: cfg.Gate.PollInterval,
			WaitTimeout:  cfg.Gate.WaitTimeout,
			Retention:    cfg.Gate.Retention,
		},
		logger,
	)

	verdict := g.Evaluate(ctx, ev.SessionID, ev.ToolName, ev.ToolInput)
	if verdict.Allow {
		return hookevent.ExitAllow
	}

	if err := hookevent.WriteBlock(out, verdict.Reason); err != nil {
		logger.Error("write decision failed", "error", err)
	}
	return hookevent.ExitDeny
}

func listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the responder daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := newLogger()

			store, err := sqlite.Open(storePath(cfg))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			client := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return listener.New(cfg, store, client, logger).Run(ctx)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("Configuration OK (mode: %s, store: %s)\n",
				cfg.Telegram.Mode, storePath(cfg))
			return nil
		},
	})
	return cmd
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadConfig loads the given path, or falls back to the standard search
// locations when it is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	return config.Load(path)
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/telegate/telegate.yaml → ./telegate.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "telegate", "telegate.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "telegate", "telegate.yaml"))
	}

	candidates = append(candidates, "telegate.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// storePath returns the configured database path, defaulting to the data dir.
func storePath(cfg *config.Config) string {
	if cfg.Gate.StorePath != "" {
		return cfg.Gate.StorePath
	}
	return filepath.Join(defaultDataDir(), "approvals.db")
}

func defaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "telegate")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "telegate", "data")
}
