package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/cmd/relay/stack"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/gateway"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/relay"
)

const serveLongDesc string = `Run the webhook relay.

Listens for gateway webhook events, answers each inbound text message
with a generated reply and keeps per-conversation history in the
configured store.

Examples:
  relay serve
  relay serve --config relay.toml --listen :8080
  relay serve --store memory --debug`

const serveShortDesc string = "Run the webhook relay server"

// shutdownTimeout bounds how long in-flight webhooks may take to finish.
const shutdownTimeout = 30 * time.Second

type serveCommander struct {
	listen string
	store  string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (overrides config)")
	cmd.Flags().StringVar(&cmder.store, "store", "", "Store driver: redis, sqlite, postgres or memory (overrides config)")

	return cmd
}

func (c *serveCommander) loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.listen != "" {
		cfg.Server.ListenAddr = c.listen
	}
	if c.store != "" {
		cfg.Store.Driver = c.store
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *serveCommander) run(ctx context.Context, configPath string, debug bool) error {
	cfg, err := c.loadConfig(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(debug)
	defer func() { _ = log.Sync() }()

	driver, err := stack.OpenDriver(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer driver.Close()

	store := stack.NewStore(driver, cfg, log)
	if err := store.Ping(ctx); err != nil {
		// Not fatal: every webhook answers erro_redis until the store is back.
		log.Warn("session store is not reachable at startup", zap.Error(err))
	}

	if cfg.Gateway.APIKey == "" {
		log.Warn("gateway api key is empty, replies will likely be rejected")
	}
	dispatcher := gateway.NewDispatcher(gateway.Config{
		URL:     cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: cfg.Gateway.Timeout.Duration,
	}, log)

	metrics := &relay.Metrics{}
	metrics.Publish()

	manager, err := stack.NewManager(cfg, store, dispatcher, metrics, log)
	if err != nil {
		return err
	}

	srv := relay.NewServer(relay.Config{
		ListenAddr:  cfg.Server.ListenAddr,
		WebhookPath: cfg.Server.WebhookPath,
	}, manager, store, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("relay server failed: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("shutting down", zap.Error(ctx.Err()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("could not shut down cleanly: %w", err)
	}

	return nil
}
