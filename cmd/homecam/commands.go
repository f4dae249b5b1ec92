package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/homecam/internal/config"
	"github.com/muurk/homecam/internal/credentials"
	"github.com/muurk/homecam/internal/discovery"
	"github.com/muurk/homecam/internal/ui"
)

// Command flags
var (
	provisionSSID     string
	provisionPassword string
	configForce       bool
	resolveTimeout    int
	resolveAll        bool
	outputFormat      string
)

func init() {
	provisionCmd.Flags().StringVar(&provisionSSID, "ssid", "", "Network name (required)")
	provisionCmd.Flags().StringVar(&provisionPassword, "password", "", "Network password (empty for open networks)")
	_ = provisionCmd.MarkFlagRequired("ssid")

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	resolveCmd.Flags().IntVar(&resolveTimeout, "timeout", 2, "Resolve timeout in seconds")
	resolveCmd.Flags().BoolVar(&resolveAll, "all", false, "List every frame server seen during the timeout")
	resolveCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

// provisionCmd writes WiFi credentials without the access point form
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Store WiFi credentials",
	Long: `Store the WiFi network name and password in the key-value store.

The daemon reads them on its next start. This is the command-line
equivalent of the provisioning form.`,
	Example: `  homecam provision --ssid HomeNet --password s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return provisionCredentials(cmd.OutOrStdout(), cfg, credentials.Credentials{
			SSID:     provisionSSID,
			Password: provisionPassword,
		})
	},
}

func provisionCredentials(w io.Writer, cfg *config.Config, creds credentials.Credentials) error {
	if !creds.Configured() {
		return fmt.Errorf("ssid must not be empty")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := store.Save(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	path, _ := cfg.StorePath()
	if ui.IsTerminal() {
		fmt.Fprintln(w, ui.RenderSuccess("Credentials saved", []ui.Detail{
			{Key: "SSID", Value: creds.SSID},
			{Key: "Store", Value: path},
			{Key: "Next", Value: "restart the daemon to connect"},
		}, ui.TerminalWidth()))
		return nil
	}
	fmt.Fprintf(w, "Credentials for %q saved to %s\n", creds.SSID, path)
	fmt.Fprintln(w, "Restart the daemon to connect.")
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			path, err = config.GetConfigPath()
			if err != nil {
				return err
			}
		}
		return initConfig(cmd.OutOrStdout(), path, configForce)
	},
}

func initConfig(w io.Writer, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote default configuration to %s\n", path)
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults have been applied, including the
key-value store location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return showConfig(cmd.OutOrStdout(), cfg)
	},
}

func showConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if path, err := cfg.StorePath(); err == nil {
		fmt.Fprintf(w, "# store: %s\n", path)
	}
	return nil
}

// resolveCmd looks up frame servers over mDNS
var resolveCmd = &cobra.Command{
	Use:   "resolve [name]",
	Short: "Resolve a frame server over mDNS",
	Long: `Resolve a frame server by its mDNS name.

Without a name the well-known name espfsp_server is resolved. With --all
every frame server advertising _espfsp._tcp during the timeout is listed.`,
	Example: `  # Resolve the well-known frame server
  homecam resolve

  # Resolve a named server
  homecam resolve garage-cam

  # List all frame servers for 5 seconds
  homecam resolve --all --timeout 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(resolveTimeout) * time.Second
	r := discovery.NewResolver()
	r.Timeout = timeout

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if resolveAll {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		services, err := r.Browse(ctx)
		if err != nil {
			return fmt.Errorf("browse failed: %w", err)
		}
		if len(services) == 0 {
			fmt.Fprintln(out, "No frame servers found.")
			return nil
		}
		return printServices(out, services, outputFormat)
	}

	name := discovery.WellKnownName
	if len(args) == 1 {
		name = args[0]
	}
	svc, err := r.Resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return printServices(out, []*discovery.Service{svc}, outputFormat)
}

func printServices(w io.Writer, services []*discovery.Service, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(services)
	}

	for i, svc := range services {
		fmt.Fprintf(w, "%d. %s\n", i+1, svc.Instance)
		fmt.Fprintf(w, "   Host:    %s\n", svc.Hostname)
		fmt.Fprintf(w, "   Address: %s\n", svc.Addr())
		if len(svc.Metadata) > 0 {
			fmt.Fprintf(w, "   Metadata: %v\n", svc.Metadata)
		}
	}
	fmt.Fprintln(w, "\nBind one with GET /set_server?name=<host>:<port> on the control API.")
	return nil
}
