// Homecam is the camera gateway daemon.
//
// It joins the configured WiFi network, falling back to a provisioning
// access point when association keeps failing, and serves an MJPEG stream
// and a control API backed by a remote frame server.
//
// Usage:
//
//	homecam [command] [flags]
//
// See 'homecam --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/homecam/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "homecam",
	Short: "HomeCam camera gateway",
	Long: `HomeCam joins a WiFi network and relays frames from a remote frame
server to browsers as an MJPEG stream.

Without stored credentials the device opens the HomeCam_Config access
point and serves a form where the network name and password can be set.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <config dir>/homecam/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "homecam %s\n", version.Full())
		fmt.Fprintf(cmd.OutOrStdout(), "go: %s platform: %s\n", info.GoVersion, info.Platform)
	},
}
