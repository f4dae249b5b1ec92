package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/homecam/internal/gateway"
	"github.com/muurk/homecam/internal/ui"
)

var (
	statusWatch    bool
	statusInterval time.Duration
)

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep polling and redraw in a dashboard")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", time.Second, "Poll interval for --watch")
	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	rootCmd.AddCommand(statusCmd)
}

// statusCmd queries a running daemon's control API
var statusCmd = &cobra.Command{
	Use:   "status [host[:port]]",
	Short: "Show the status of a running daemon",
	Long: `Fetch /status from a running daemon's control API.

The target defaults to localhost on the configured control port. A target
without a port uses the configured control port.`,
	Example: `  # Status of the local daemon
  homecam status

  # Live dashboard of a camera on the network
  homecam status 192.168.1.40 --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target := "localhost"
	if len(args) == 1 {
		target = args[0]
	}
	base := statusURL(target, cfg.Servers.ControlPort)
	fetch := func(ctx context.Context) (gateway.Status, error) {
		return fetchStatus(ctx, http.DefaultClient, base)
	}

	if statusWatch {
		return ui.RunDashboard(ui.NewDashboardModel(base, statusInterval, fetch))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	st, err := fetch(ctx)
	if err != nil {
		return err
	}
	return printStatus(cmd.OutOrStdout(), st, outputFormat)
}

// statusURL builds the base URL of a control API from host[:port].
func statusURL(target string, defaultPort int) string {
	target = strings.TrimPrefix(strings.TrimPrefix(target, "http://"), "https://")
	target = strings.TrimSuffix(target, "/")
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(strings.Trim(target, "[]"), strconv.Itoa(defaultPort))
	}
	return "http://" + target
}

func fetchStatus(ctx context.Context, client *http.Client, base string) (gateway.Status, error) {
	var st gateway.Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, fmt.Errorf("failed to reach %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return st, fmt.Errorf("status request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

func printStatus(w io.Writer, st gateway.Status, format string) error {
	switch {
	case format == "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case ui.IsTerminal():
		_, err := fmt.Fprintln(w, ui.RenderStatus(st, ui.TerminalWidth()))
		return err
	}

	fmt.Fprintf(w, "connectivity:   %s\n", st.Connectivity)
	fmt.Fprintf(w, "address:        %s\n", st.Address)
	if st.SourceBound {
		fmt.Fprintf(w, "frame source:   %s\n", st.Source)
	} else {
		fmt.Fprintln(w, "frame source:   unbound")
	}
	fmt.Fprintf(w, "active streams: %d\n", st.ActiveStreams)
	fmt.Fprintf(w, "listeners:      %s\n", strings.Join(st.Servers, ", "))
	fmt.Fprintf(w, "version:        %s\n", st.Version)
	return nil
}
