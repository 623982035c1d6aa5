package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shulkerdb/shulker/internal/printer"
	"github.com/shulkerdb/shulker/pkg/bridge"
	"github.com/shulkerdb/shulker/pkg/scorestore"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch incoming bridge messages live",
	Long: `Poll the bridge's inbox table and print every incoming message as it
arrives. Press Ctrl+C to stop; a stats summary is printed on exit.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		b := bridge.New(store, cfg.BridgeSettings())
		b.OnReceive(func(env bridge.Envelope) (*bridge.Envelope, error) {
			ts := time.UnixMilli(env.Timestamp).Format("15:04:05.000")
			printer.Info("[%s] %s  %s\n", ts, env.ID, string(env.Data))
			return nil, nil
		})

		b.StartListening()
		defer b.StopListening()

		printer.Step("Watching %q (Ctrl+C to stop)\n", cfg.Bridge.InboxTable)

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()

		stats := b.GetStats()
		printer.Info("\nReceived %d message(s), dropped %d duplicate(s), %d corrupt row(s)\n",
			stats.Received, stats.DuplicatesDropped, stats.CorruptDropped)
		return nil
	})
}
