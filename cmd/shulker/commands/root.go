package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shulkerdb/shulker/internal/config"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "shulker",
	Short: "Shulker - JSON tables and messaging on a scoreboard",
	Long: `Shulker turns a world's scoreboard into a JSON key-value database
and runs a polling message bridge on top of it.

Every table is backed by a scoreboard objective: a stored record is a
participant whose name is the JSON payload and whose score is the row id.
Commands reach the world over the wsserver protocol - start a shulker
command, then attach the world with /connect <host:port>.`,
	Version: version,

	// main prints the returned error itself; without these cobra would
	// print it a second time and dump usage on every runtime failure.
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo records build metadata on the root command.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to shulker.yml")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Listen address for the world to /connect to (overrides config)")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	return cfg, nil
}
