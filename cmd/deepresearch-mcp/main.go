package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/antigravity-dev/deepresearch-mcp/internal/batch"
	"github.com/antigravity-dev/deepresearch-mcp/internal/config"
	"github.com/antigravity-dev/deepresearch-mcp/internal/got"
	"github.com/antigravity-dev/deepresearch-mcp/internal/rpc"
	"github.com/antigravity-dev/deepresearch-mcp/internal/store"
	"github.com/antigravity-dev/deepresearch-mcp/internal/vectorindex"
)

var (
	configPath string
	dbOverride string
	devLog     bool
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev || isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "deepresearch-mcp",
		Short: "A Graph-of-Thoughts research orchestration server speaking JSON-RPC over stdio",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "deepresearch.toml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "override general.state_db from the config file")
	rootCmd.PersistentFlags().BoolVar(&devLog, "log", false, "force text log format (default: JSON unless stderr is a terminal)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(schemaCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON-RPC tool server over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := configureLogger(cfg.General.LogLevel, devLog)
			slog.SetDefault(logger)

			dbPath := cfg.General.StateDB
			if dbOverride != "" {
				dbPath = dbOverride
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			caches := batch.NewRegistry(cfg.Cache, logger.With("component", "cache"))
			caches.StartSweep()
			defer caches.Stop()

			cascadeCron := cron.New()
			cascadeLogger := logger.With("component", "cascade")
			cascadeCron.AddFunc("@every 1h", func() {
				removed, err := st.CleanupOrphanRecords()
				if err != nil {
					cascadeLogger.Error("cleanup orphan records failed", "error", err)
					return
				}
				if removed > 0 {
					cascadeLogger.Info("cleaned up orphan session records", "removed", removed)
				}
			})
			cascadeCron.Start()
			defer cascadeCron.Stop()

			vectors, err := vectorindex.New(cfg.Vector)
			if err != nil {
				return fmt.Errorf("build vector index: %w", err)
			}
			if vectors.Enabled() {
				if err := vectors.EnsureSchema(context.Background()); err != nil {
					return fmt.Errorf("ensure vector schema: %w", err)
				}
			}

			engine := got.New(st)
			registry := rpc.BuildRegistry(rpc.Deps{Store: st, Engine: engine, Caches: caches, Vectors: vectors, Logger: logger})
			server := rpc.NewServer(registry, logger.With("component", "rpc"))

			logger.Info("deepresearch-mcp serving", "db", dbPath, "tools", len(registry.List()))
			return server.Serve(os.Stdin, os.Stdout)
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print every registered tool's JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := rpc.BuildRegistry(rpc.Deps{})

			type toolSchema struct {
				Name        string         `json:"name"`
				Description string         `json:"description"`
				InputSchema map[string]any `json:"inputSchema"`
			}
			var schemas []toolSchema
			for _, t := range registry.List() {
				schemas = append(schemas, toolSchema{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
			}

			encoded, err := json.MarshalIndent(schemas, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal tool schemas: %w", err)
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
}
