// Package main provides the CLI entry point for the agent runtime.
//
// Start the server:
//
//	agentrt serve --config agentrt.yaml
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

	"github.com/forgewell/agentrt/internal/authz"
	"github.com/forgewell/agentrt/internal/config"
	"github.com/forgewell/agentrt/internal/eventbus"
	"github.com/forgewell/agentrt/internal/httpapi"
	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/mcpclient"
	"github.com/forgewell/agentrt/internal/metrics"
	"github.com/forgewell/agentrt/internal/orchestrator"
	"github.com/forgewell/agentrt/internal/reasoning"
	"github.com/forgewell/agentrt/internal/sessionstore"
	"github.com/forgewell/agentrt/internal/subagents"
	"github.com/forgewell/agentrt/internal/toolcatalog"
	"github.com/forgewell/agentrt/internal/toolexec"
	"github.com/forgewell/agentrt/internal/toolinvoke"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentrt",
		Short:        "agentrt - tool-using LLM agent runtime",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(), buildToolsCmd())
	return root
}

func buildToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the built-in tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := toolcatalog.New()
			out := cmd.OutOrStdout()
			for _, spec := range catalog.All() {
				fmt.Fprintf(out, "%-16s %s\n", spec.Name, spec.Description)
			}
			return nil
		},
	}
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/WebSocket agent server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentrt.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	if err := toolinvoke.ValidateRoot(cfg.FSAllowedPath); err != nil {
		return fmt.Errorf("validate filesystem root: %w", err)
	}
	resolver := &toolinvoke.Resolver{Root: cfg.FSAllowedPath}

	db, err := toolinvoke.OpenDB(fmt.Sprintf("%s.sqlite", cfg.DBName))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	kv := toolinvoke.NewKVStore()

	invokers := map[string]toolinvoke.Invoker{
		"db_query":       toolinvoke.NewDBQuery(db),
		"db_migrate":     toolinvoke.NewDBMigrate(db),
		"db_schema":      toolinvoke.NewDBSchema(db),
		"http_request":   toolinvoke.NewHTTPRequest(),
		"fs_read":        toolinvoke.NewFSRead(resolver),
		"fs_write":       toolinvoke.NewFSWrite(resolver),
		"fs_list":        toolinvoke.NewFSList(resolver),
		"fs_search":      toolinvoke.NewFSSearch(resolver),
		"git_status":     toolinvoke.NewGitStatus(),
		"git_log":        toolinvoke.NewGitLog(),
		"git_diff":       toolinvoke.NewGitDiff(),
		"git_show":       toolinvoke.NewGitShow(),
		"kv_get":         toolinvoke.NewKVGet(kv),
		"kv_set":         toolinvoke.NewKVSet(kv),
		"kv_delete":      toolinvoke.NewKVDelete(kv),
		"queue_push":     toolinvoke.NewQueuePush(kv),
		"queue_pop":      toolinvoke.NewQueuePop(kv),
		"queue_peek":     toolinvoke.NewQueuePeek(kv),
		"web_fetch_json": toolinvoke.NewWebFetchJSON(),
		"web_search":     toolinvoke.NewWebSearch(),
		"sys_time":       toolinvoke.NewSysTime(),
	}

	catalog := toolcatalog.New()

	mcpManager := mcpclient.NewManager("mcp-servers.json", logger)
	if err := mcpManager.Load(); err != nil {
		return fmt.Errorf("load mcp server config: %w", err)
	}

	executor := toolexec.New(catalog, invokers, mcpManager)

	llmClient := llm.New(llm.Config{
		BaseURL:      cfg.LLMBaseURL,
		DefaultModel: cfg.LLMModel,
		Temperature:  cfg.LLMTemperature,
		Timeout:      cfg.LLMTimeout,
	})

	sessions := sessionstore.New()
	bus := eventbus.New()
	metricsStore := metrics.New(nil)
	tokens := authz.NewTokenTable(map[string]string{})

	agent := &reasoning.Agent{
		LLM:                llmClient,
		Catalog:            catalog,
		Executor:           executor,
		Sessions:           sessions,
		Bus:                bus,
		Federated:          mcpManager,
		ProductionSafeMode: cfg.ProductionSafeMode,
		PromptConfig: reasoning.SystemPromptConfig{
			Cwd:       cwd,
			FSRoot:    cfg.FSAllowedPath,
			DBHost:    cfg.DBHost,
			DBPort:    cfg.DBPort,
			DBName:    cfg.DBName,
			CacheHost: cfg.RedisHost,
			CachePort: cfg.RedisPort,
			SafeMode:  cfg.ProductionSafeMode,
		},
	}

	planner := &subagents.Planner{LLM: llmClient, KnownToolName: func(name string) bool {
		_, ok := catalog.ByName(name)
		return ok
	}}
	reviewer := &subagents.Reviewer{LLM: llmClient}
	orch := orchestrator.New(planner, agent, reviewer, bus)

	server := &httpapi.Server{
		Logger:             logger,
		Sessions:           sessions,
		Catalog:            catalog,
		MCP:                mcpManager,
		Metrics:            metricsStore,
		Tokens:             tokens,
		Orchestrator:       orch,
		Bus:                bus,
		LLM:                llmClient,
		ProductionSafeMode: cfg.ProductionSafeMode,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	if err := server.Start(addr); err != nil {
		return err
	}

	connectResults := mcpManager.ConnectAll(ctx)
	for id, err := range connectResults {
		if err != nil {
			logger.Warn("mcp server connect failed", "server_id", id, "error", err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	mcpManager.Shutdown()

	return nil
}
