// Command pod-host runs the host side of a drone connection.
//
// It keeps the device settings in a local store, connects to the drone over
// TCP, MQTT or a built-in simulated device, reconnects on link loss and
// offers an interactive shell to read and change the device state.
//
// Usage:
//
//	pod-host [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-uid string           Device uid
//	-transport string     Transport: tcp, mqtt, sim
//	-address string       Device address for tcp
//	-sim-listen string    Serve the simulated device on this TCP address
//	-store string         Store backend: memory, file, sqlite
//	-store-path string    Store file path
//	-profile string       Preset profile
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Protocol capture file
//	-telemetry            Export state to InfluxDB
//	-interactive          Run the interactive shell (default true)
//
// Examples:
//
//	# Play with the simulated device
//	pod-host -transport sim -store memory
//
//	# Same, over loopback TCP
//	pod-host -transport sim -sim-listen 127.0.0.1:44444
//
//	# Connect to a drone with a config file
//	pod-host -config /etc/pod/host.yaml -protocol-log /tmp/pod.plog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Pix4D/pod-arsdkengine/cmd/pod-host/shell"
	"github.com/Pix4D/pod-arsdkengine/pkg/config"
	"github.com/Pix4D/pod-arsdkengine/pkg/logging"
)

var version = "dev"

type flags struct {
	configFile  string
	uid         string
	transport   string
	address     string
	simListen   string
	store       string
	storePath   string
	profile     string
	logLevel    string
	protocolLog string
	telemetry   bool
	interactive bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "Configuration file path")
	flag.StringVar(&f.uid, "uid", "", "Device uid")
	flag.StringVar(&f.transport, "transport", "", "Transport: tcp, mqtt, sim")
	flag.StringVar(&f.address, "address", "", "Device address for tcp")
	flag.StringVar(&f.simListen, "sim-listen", "", "Serve the simulated device on this TCP address")
	flag.StringVar(&f.store, "store", "", "Store backend: memory, file, sqlite")
	flag.StringVar(&f.storePath, "store-path", "", "Store file path")
	flag.StringVar(&f.profile, "profile", "", "Preset profile")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&f.protocolLog, "protocol-log", "", "Protocol capture file")
	flag.BoolVar(&f.telemetry, "telemetry", false, "Export state to InfluxDB")
	flag.BoolVar(&f.interactive, "interactive", true, "Run the interactive shell")
	flag.Parse()
	return f
}

func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		var err error
		if cfg, err = config.Load(f.configFile); err != nil {
			return nil, err
		}
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Device.UID, f.uid)
	set(&cfg.Device.PresetProfile, f.profile)
	set(&cfg.Transport.Kind, f.transport)
	set(&cfg.Transport.Address, f.address)
	set(&cfg.Transport.SimListen, f.simListen)
	set(&cfg.Store.Backend, f.store)
	set(&cfg.Store.Path, f.storePath)
	set(&cfg.Logging.Level, f.logLevel)
	set(&cfg.Logging.ProtocolLog, f.protocolLog)
	if f.telemetry {
		cfg.Telemetry.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	f := parseFlags()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pod-host: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sh *shell.Shell
	logger := logging.New(cfg.Logging, version)
	if f.interactive {
		if sh, err = shell.New(); err != nil {
			fmt.Fprintf(os.Stderr, "pod-host: %v\n", err)
			os.Exit(1)
		}
		logger = logging.NewWithWriter(cfg.Logging, version, sh.Stderr())
	}
	slog.SetDefault(logger)

	h, err := newHost(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer h.Close()

	logger.Info("pod-host started",
		"device", cfg.Device.UID,
		"transport", cfg.Transport.Kind,
		"store", cfg.Store.Backend,
		"profile", cfg.Device.PresetProfile)

	h.Start(ctx)

	if sh != nil {
		sh.Run(ctx, cancel, h.Target())
		return
	}
	<-ctx.Done()
	logger.Info("shutting down")
}
