// Package cli implements the tapcore command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tapcore-app/tapcore/internal/daemon"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tapcore",
	Short: "Tapcore clicker economy server and client",
	Long: `Tapcore runs the backend for a Telegram clicker mini-app: crystals,
energy, upgrades, daily and weekly tasks, transfers, a Stars shop and a
global chat. It also ships a terminal client for driving a session against
a running server.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.toml (default ~/.tapcore/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tapcore version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tapcore %s\n", Version)
	},
}

// loadConfig resolves the --config flag and loads (or creates) the file.
func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = daemon.ConfigPath(daemon.DefaultConfig().Storage.DataDir)
	}
	return daemon.LoadConfig(path)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
