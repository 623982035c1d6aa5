package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shulkerdb/shulker/internal/printer"
	"github.com/shulkerdb/shulker/pkg/bridge"
	"github.com/shulkerdb/shulker/pkg/scorestore"
)

var sendMessageID string

var sendCmd = &cobra.Command{
	Use:   "send JSON",
	Short: "Send one message through the bridge",
	Long: `Send a JSON message through the bridge's outbox. The peer picks it up
on its next poll of that table.

Examples:
  shulker send '{"greeting":"hi"}'
  shulker send --id player-sync-1 '{"player":"alex"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendMessageID, "id", "", "Message id (generated if omitted)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	var data any
	if err := json.Unmarshal([]byte(args[0]), &data); err != nil {
		return printer.Error(
			"Invalid message",
			fmt.Sprintf("The message is not valid JSON: %v", err),
			[]string{`Quote strings, e.g. shulker send '"hello"'`},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		b := bridge.New(store, cfg.BridgeSettings())
		if !b.Send(ctx, data, sendMessageID) {
			return printer.Error(
				"Send failed",
				"The message could not be written to the outbox table.",
				[]string{"Check the world is still attached and try again"},
			)
		}
		printer.Success("Message queued in %q\n", cfg.Bridge.OutboxTable)
		return nil
	})
}
