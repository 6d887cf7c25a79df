package chatcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/cmd/relay/stack"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/relay"
)

const chatLongDesc string = `Talk to the relay from the terminal.

Runs the same load, compose, infer and persist exchange as the webhook
server, against the configured store and inference provider, but shows
replies on screen instead of sending them through the gateway.

Examples:
  relay chat
  relay chat --key 5511999999999@s.whatsapp.net
  relay chat --store memory --log /tmp/relay-chat.log`

const chatShortDesc string = "Chat with the relay in the terminal"

type chatCommander struct {
	key     string
	store   string
	logPath string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.key, "key", "k", "console", "Conversation key to chat as")
	cmd.Flags().StringVar(&cmder.store, "store", "", "Store driver (overrides config)")
	cmd.Flags().StringVar(&cmder.logPath, "log", "", "Write logs to this file instead of discarding them")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if c.store != "" {
		cfg.Store.Driver = c.store
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	// Log lines would tear the UI, so they go to a file or nowhere.
	var w io.Writer = io.Discard
	if c.logPath != "" {
		f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("could not open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	log := logger.New(w, debug)
	defer func() { _ = log.Sync() }()

	driver, err := stack.OpenDriver(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer driver.Close()

	store := stack.NewStore(driver, cfg, log)
	outbox := &consoleDispatcher{}

	manager, err := stack.NewManager(cfg, store, outbox, &relay.Metrics{}, log)
	if err != nil {
		return err
	}

	m := newModel(c.key, manager.Converse, outbox)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	log.Info("chat closed", zap.String("key", c.key))
	return nil
}

// consoleDispatcher keeps the last reply per key so the UI can show it.
type consoleDispatcher struct {
	mu      sync.Mutex
	replies map[string]string
}

// Send implements relay.Dispatcher.
func (d *consoleDispatcher) Send(_ context.Context, key, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.replies == nil {
		d.replies = make(map[string]string)
	}
	d.replies[key] = text
	return nil
}

// Take returns and forgets the last reply sent to key.
func (d *consoleDispatcher) Take(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, ok := d.replies[key]
	delete(d.replies, key)
	return text, ok
}
