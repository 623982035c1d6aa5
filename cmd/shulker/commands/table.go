package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shulkerdb/shulker/internal/printer"
	"github.com/shulkerdb/shulker/pkg/scorestore"
)

// One-shot table operations. Each starts the command transport, waits for
// the world to attach, performs the operation against the remote store, and
// exits.

var listOutputFormat string

var setCmd = &cobra.Command{
	Use:   "set TABLE ID JSON",
	Short: "Write or overwrite a record",
	Long: `Write or overwrite the record at ID in TABLE. The table is created on
first write. JSON is stored verbatim as the record payload.

Note: overwriting an existing id leaves the previous physical row behind
until 'shulker clear' reclaims it.

Examples:
  shulker set players 42 '{"name":"alex","level":7}'
  shulker set settings 1 '"pvp-off"'`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var getCmd = &cobra.Command{
	Use:   "get TABLE ID",
	Short: "Read one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete TABLE ID",
	Short: "Delete one record (verified)",
	Long: `Delete the record at ID in TABLE. The delete is verified with a
follow-up read and retried before reporting success.`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

var listCmd = &cobra.Command{
	Use:   "list TABLE",
	Short: "List all records in a table",
	Long: `List every record in TABLE. Records with unparseable payloads are
skipped and logged, never failing the listing.

Output Formats:
  default - Human-readable table with ID and Payload columns
  json    - JSON array of {id, payload} objects`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear TABLE",
	Short: "Remove every record in a table",
	Long: `Remove every record in TABLE by dropping and recreating its backing
objective. Also reclaims orphaned rows left behind by overwrites.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or json")
	rootCmd.AddCommand(setCmd, getCmd, deleteCmd, listCmd, clearCmd)
}

// parseRecordID converts a CLI id argument into a score value.
func parseRecordID(arg string) (int32, error) {
	id, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("record id must be a 32-bit integer, got %q", arg)
	}
	return int32(id), nil
}

func runSet(cmd *cobra.Command, args []string) error {
	table, payload := args[0], args[2]
	id, err := parseRecordID(args[1])
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return printer.Error(
			"Invalid payload",
			fmt.Sprintf("The payload is not valid JSON: %v", err),
			[]string{`Quote strings, e.g. shulker set t 1 '"hello"'`},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		if err := store.Set(ctx, table, id, value); err != nil {
			return fmt.Errorf("set failed: %w", err)
		}
		printer.Success("Stored %s[%d]\n", table, id)
		return nil
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := parseRecordID(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		payload, err := store.Get(ctx, table, id)
		if err != nil {
			if scorestore.IsNotFound(err) {
				return printer.Error(
					"Record not found",
					fmt.Sprintf("No record with id %d exists in table %q.", id, table),
					[]string{fmt.Sprintf("List the table with: shulker list %s", table)},
				)
			}
			return fmt.Errorf("get failed: %w", err)
		}
		printer.Println(string(payload))
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := parseRecordID(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		if err := store.Delete(ctx, table, id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		printer.Success("Deleted %s[%d]\n", table, id)
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	table := args[0]
	if listOutputFormat != "default" && listOutputFormat != "json" {
		return fmt.Errorf("invalid output format %q (expected default or json)", listOutputFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		result, err := store.List(ctx, table)
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}

		if listOutputFormat == "json" {
			out, err := json.MarshalIndent(result.Items, "", "  ")
			if err != nil {
				return err
			}
			printer.Println(string(out))
			return nil
		}

		if result.Count == 0 {
			printer.Info("Table %q is empty (or does not exist).\n", table)
			return nil
		}

		w := tablewriter.NewWriter(os.Stdout)
		w.Header([]string{"ID", "Payload"})
		for _, rec := range result.Items {
			w.Append([]string{strconv.FormatInt(int64(rec.ID), 10), truncatePayload(string(rec.Payload))})
		}
		if err := w.Render(); err != nil {
			return err
		}
		printer.Info("%d record(s)\n", result.Count)
		return nil
	})
}

// truncatePayload keeps table rows readable; full payloads are available via
// --output=json.
func truncatePayload(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func runClear(cmd *cobra.Command, args []string) error {
	table := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withRemoteStore(cfg, func(ctx context.Context, store scorestore.Store) error {
		if err := store.Clear(ctx, table); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		printer.Success("Cleared table %q\n", table)
		return nil
	})
}
