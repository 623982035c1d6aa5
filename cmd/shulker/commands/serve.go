package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shulkerdb/shulker/internal/config"
	"github.com/shulkerdb/shulker/internal/wsserver"
	"github.com/shulkerdb/shulker/pkg/bridge"
	"github.com/shulkerdb/shulker/pkg/scorestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge daemon",
	Long: `Run the command transport and the message bridge until terminated.

The daemon keeps listening whether or not a world is attached: operations
no-op while the backend is away and resume automatically once a world runs
/connect again. Received messages are logged; the periodic cleanup sweep
keeps the mailbox tables bounded.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return serveBridge(cfg)
}

func serveBridge(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := wsserver.New(cfg.Listen)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	b := bridge.New(scorestore.NewRemote(srv), cfg.BridgeSettings())
	b.OnReceive(func(env bridge.Envelope) (*bridge.Envelope, error) {
		log.Printf("[INFO] serve: received %s: %s", env.ID, string(env.Data))
		return nil, nil
	})

	b.StartListening()
	log.Printf("[INFO] serve: bridge running (inbox %q, outbox %q)", cfg.Bridge.InboxTable, cfg.Bridge.OutboxTable)

	select {
	case <-ctx.Done():
		log.Printf("[INFO] serve: shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	b.StopListening()
	stats := b.GetStats()
	log.Printf("[INFO] serve: stopped (received=%d duplicates=%d corrupt=%d cleanups=%d)",
		stats.Received, stats.DuplicatesDropped, stats.CorruptDropped, stats.CleanupRuns)
	return nil
}
