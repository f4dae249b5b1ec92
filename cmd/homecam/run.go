package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/homecam/internal/config"
	"github.com/muurk/homecam/internal/credentials"
	"github.com/muurk/homecam/internal/discovery"
	"github.com/muurk/homecam/internal/framesource"
	"github.com/muurk/homecam/internal/gateway"
	"github.com/muurk/homecam/internal/lifecycle"
	"github.com/muurk/homecam/internal/logging"
	"github.com/muurk/homecam/internal/metrics"
	"github.com/muurk/homecam/internal/provision"
	"github.com/muurk/homecam/internal/version"
	"github.com/muurk/homecam/internal/wifi"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway daemon",
	Long: `Run the gateway daemon.

The daemon loads WiFi credentials from the key-value store and joins the
network. While associated it serves the control API on servers.control_port
and the MJPEG stream on the next port. When association fails more than
network.retry_limit times in a row, or no credentials are stored, it opens
the provisioning access point and serves the credential form on
servers.provisioning_port until it is stopped.`,
	Example: `  # Run with the default configuration
  homecam run

  # Run with a specific config file and debug logging
  homecam run --config /etc/homecam/config.yaml --log-level debug`,
	RunE: runDaemon,
}

// loadConfig reads the config file and brings up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*credentials.Store, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate store: %w", err)
	}
	return credentials.NewStore(credentials.NewFileKV(path)), nil
}

func newRadio(cfg *config.Config, logger *zap.Logger) wifi.Radio {
	if cfg.Network.Radio == "static" {
		return wifi.NewStaticRadio(logger)
	}
	nm := wifi.DefaultNMCLIConfig()
	nm.Interface = cfg.Network.Interface
	if cfg.Network.PollMS > 0 {
		nm.PollInterval = cfg.Network.PollInterval()
	}
	return wifi.NewNMCLIRadio(nm, nil, logger)
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	gc := gateway.DefaultConfig()
	gc.FrameTimeout = cfg.Stream.FrameTimeout()
	gc.FailureThreshold = cfg.Stream.FailureThreshold
	gc.FrameDelay = cfg.Stream.FrameDelay()
	gc.ServiceName = cfg.FrameSource.ServiceName
	gc.ResolveTimeout = cfg.FrameSource.ResolveTimeout()
	gc.ControlPort = cfg.FrameSource.ControlPort
	gc.DataPort = cfg.FrameSource.DataPort
	gc.BufferedFrames = cfg.FrameSource.BufferedFrames
	return gc
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	logger := logging.GetLogger()
	logger.Info("starting homecam",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("radio", cfg.Network.Radio),
	)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	m := metrics.New()

	resolver := discovery.NewResolver()
	resolver.Timeout = cfg.FrameSource.ResolveTimeout()

	prov := provision.New(store, provision.Config{
		Host: cfg.Servers.Host,
		Port: cfg.Servers.ProvisioningPort,
	}, logging.Named("provision"))

	ap := cfg.Network.AccessPoint
	mgr := wifi.NewManager(newRadio(cfg, logging.Named("radio")), store, wifi.Options{
		RetryLimit: cfg.Network.RetryLimit,
		AccessPoint: wifi.AccessPoint{
			SSID:          ap.SSID,
			Password:      ap.Password,
			Channel:       ap.Channel,
			MaxConnection: ap.MaxConnection,
		},
		Provisioner: prov,
		Metrics:     m,
		Logger:      logging.Named("wifi"),
	})

	var orch *lifecycle.Orchestrator
	gw := gateway.New(gateway.Options{
		Config:   gatewayConfig(cfg),
		Dialer:   framesource.NewDialer(logging.Named("framesource")),
		Resolver: resolver,
		Status: func(st *gateway.Status) {
			st.Connectivity = mgr.State().String()
			st.Address = mgr.Address()
			st.Servers = orch.Running()
			st.Version = version.Version
		},
		Metrics: m,
		Logger:  logging.Named("gateway"),
	})
	defer gw.Close()

	orch = lifecycle.NewOrchestrator(
		lifecycle.HTTPLauncher{
			Name:    lifecycle.SlotControl,
			Host:    cfg.Servers.Host,
			Port:    cfg.Servers.ControlPort,
			Handler: gw.ControlHandler(),
			Logger:  logging.Named("control"),
		},
		lifecycle.HTTPLauncher{
			Name:    lifecycle.SlotStream,
			Host:    cfg.Servers.Host,
			Port:    cfg.Servers.StreamPort(),
			Handler: gw.StreamHandler(),
			Logger:  logging.Named("stream"),
		},
		lifecycle.Options{Metrics: m, Logger: logging.Named("lifecycle")},
	)
	defer orch.StopAll()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.Subscribe(orch)
	if cfg.FrameSource.AutoBind {
		mgr.Subscribe(autoBinder(ctx, gw, logger))
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	<-mgr.Done()
	return nil
}

// autoBinder binds the well-known frame server after each association
// while no source is bound.
func autoBinder(ctx context.Context, gw *gateway.Gateway, logger *zap.Logger) wifi.Listener {
	return wifi.ListenerFunc(func(ev wifi.Event) {
		if ev.Kind != wifi.EventAssociated || gw.Source() != nil {
			return
		}
		go func() {
			if err := gw.Bind(ctx, ""); err != nil {
				logger.Warn("auto bind failed", zap.Error(err))
			}
		}()
	})
}
