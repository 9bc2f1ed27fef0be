package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"labchat/internal/bridge"
	"labchat/internal/chat"
	"labchat/internal/config"
	"labchat/internal/history"
	"labchat/internal/server"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a config file")
	cmd.Flags().String("host", "0.0.0.0", "host interface to bind")
	cmd.Flags().Int("port", 5050, "port to bind")
	cmd.Flags().String("history-file", "chat_history.jsonl", "history log file (JSON lines)")
	cmd.Flags().Int("history-cap", 1000, "maximum history entries kept in memory")
	cmd.Flags().String("bridge-addr", "", "websocket bridge listen address (empty disables the bridge)")
	cmd.Flags().String("log-level", "info", "log level (debug|info|warn|error)")
	return cmd
}

func run(cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	store, err := history.Open(cfg.HistoryFile, cfg.HistoryCap, logger)
	if err != nil {
		return err
	}

	reg := chat.NewRegistry()
	router := chat.NewRouter(reg, store, logger)
	handler := chat.NewHandler(reg, router, logger)

	srv := server.New(cfg.Addr(), handler, logger)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.BridgeAddr != "" {
		br := bridge.New(srv.Addr().String(), logger)
		go func() {
			if err := br.Listen(cfg.BridgeAddr); err != nil {
				logger.Error("bridge stopped", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = br.Shutdown()
		}()
	}

	err = srv.Serve(ctx)
	logger.Info("server stopped")
	return err
}
