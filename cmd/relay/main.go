package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/relay/cmd/relay/chat"
	historycmder "github.com/papercomputeco/relay/cmd/relay/history"
	mergecmder "github.com/papercomputeco/relay/cmd/relay/merge"
	servecmder "github.com/papercomputeco/relay/cmd/relay/serve"
)

const relayLongDesc string = `relay answers gateway chat messages with a language model.

Each inbound text message is answered using the conversation's stored
history, and the exchange is appended to that history.

Configuration is read from --config (TOML), then .env, then the
environment (EVOLUTION_API_KEY, EVOLUTION_API_URL, REDIS_HOST,
REDIS_PORT, REDIS_PASSWORD, OPENAI_API_KEY, RELAY_*).`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Conversational webhook relay",
		Long:          relayLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to a TOML config file")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(mergecmder.NewMergeCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
