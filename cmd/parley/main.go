package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"parley/internal/api"
	"parley/internal/auth"
	"parley/internal/chat/agent"
	"parley/internal/chat/session"
	"parley/internal/chat/streaming"
	"parley/internal/chat/tree"
	"parley/internal/config"
	"parley/internal/transport/ws"
)

var (
	flagConfig      string
	flagWSEndpoint  string
	flagAPIEndpoint string
	flagToken       string
	flagBotID       string
	flagModel       string
	flagLogDir      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Chat client for the conversation service",
		Long: `parley is an interactive chat client: it posts turns over the chunked
WebSocket transport, renders the streamed reply, and keeps the branching
conversation tree in sync with the conversation service.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagWSEndpoint, "ws-endpoint", "", "streaming WebSocket endpoint")
	rootCmd.PersistentFlags().StringVar(&flagAPIEndpoint, "api-endpoint", "", "conversation API endpoint")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "auth token (defaults to AUTH_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagBotID, "bot", "", "bot id to address turns to")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model for new conversations")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "write session logs to this directory")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newConversationsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges .env, environment, the optional YAML file, and flags,
// in increasing priority.
func loadConfig() (*config.Config, error) {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg := config.Load()
	if flagConfig != "" {
		if err := cfg.LoadFile(flagConfig); err != nil {
			return nil, err
		}
	}
	if flagWSEndpoint != "" {
		cfg.WSEndpoint = flagWSEndpoint
	}
	if flagAPIEndpoint != "" {
		cfg.APIEndpoint = flagAPIEndpoint
	}
	if flagModel != "" {
		cfg.DefaultModel = flagModel
	}
	if flagLogDir != "" {
		cfg.LogDir = flagLogDir
	}
	return cfg, nil
}

// buildController wires the session dependencies the way the backend wires
// its services: constructors, no globals. The API client is returned
// alongside the controller for the commands that consume the collaborator
// APIs directly (bot metadata, bulk deletes).
func buildController(cfg *config.Config, onUpdate func()) (*session.Controller, *api.Client, func(), error) {
	logger, logCloser, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, nil, err
	}

	token := flagToken
	if token == "" {
		token = os.Getenv("AUTH_TOKEN")
	}
	tokens := auth.NewStaticTokenProvider(token)

	apiClient := api.NewClient(cfg.APIEndpoint, tokens, logger)
	reconciler := streaming.NewReconciler(
		ws.NewDialer(cfg.WSEndpoint),
		tokens,
		cfg.ChunkSize,
		streaming.DefaultMessages,
		logger,
	)
	machine := agent.NewMachine(agent.WithLeaveDelay(cfg.AgentLeaveDelay))

	opts := []session.Option{session.WithRelatedDocumentsAPI(apiClient)}
	if onUpdate != nil {
		opts = append(opts, session.WithUpdateHandler(onUpdate))
	}
	controller := session.NewController(
		tree.NewStore(),
		reconciler,
		apiClient,
		apiClient,
		machine,
		cfg.DefaultModel,
		logger,
		opts...,
	)

	logger.Info("client ready",
		"ws_endpoint", cfg.WSEndpoint,
		"api_endpoint", cfg.APIEndpoint,
		"model", cfg.DefaultModel,
		"environment", cfg.Environment,
	)

	cleanup := func() {
		machine.Stop()
		if logCloser != nil {
			logCloser.Close()
		}
	}
	return controller, apiClient, cleanup, nil
}

func rootContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
