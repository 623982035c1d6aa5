package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shulkerdb/shulker/internal/config"
	"github.com/shulkerdb/shulker/internal/printer"
	"github.com/shulkerdb/shulker/internal/wsserver"
	"github.com/shulkerdb/shulker/pkg/scorestore"
)

// attachTimeout is how long one-shot commands wait for a world to /connect
// before giving up.
var attachTimeout time.Duration

func init() {
	rootCmd.PersistentFlags().DurationVar(&attachTimeout, "attach-timeout", 60*time.Second, "How long to wait for a world to /connect")
}

// withRemoteStore starts the command transport, waits for a world to attach,
// and runs fn against a remote store over it. Used by the one-shot table
// commands; the transport is torn down when fn returns.
func withRemoteStore(cfg *config.Config, fn func(ctx context.Context, store scorestore.Store) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := wsserver.New(cfg.Listen)
	go func() {
		if err := srv.Start(ctx); err != nil {
			printer.Warning("command transport stopped: %v\n", err)
		}
	}()

	printer.Step("Waiting for world to attach (run: /connect %s)\n", cfg.Listen)
	if err := waitAttached(ctx, srv, attachTimeout); err != nil {
		return printer.Error(
			"No world attached",
			fmt.Sprintf("No world connected to %s within %v.", cfg.Listen, attachTimeout),
			[]string{
				fmt.Sprintf("In the world, run: /connect %s", cfg.Listen),
				"Check that websockets are enabled (wsserver encryption off)",
			},
		)
	}
	printer.Success("World attached\n")

	return fn(ctx, scorestore.NewRemote(srv))
}

// waitAttached polls until the executor reports an attached world.
func waitAttached(ctx context.Context, srv *wsserver.Server, timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timeout waiting for world after %v", timeout)
		case <-ticker.C:
			if srv.Available() {
				return nil
			}
		}
	}
}
