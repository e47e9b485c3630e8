package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/Pix4D/pod-arsdkengine/cmd/pod-host/shell"
	"github.com/Pix4D/pod-arsdkengine/internal/simdevice"
	"github.com/Pix4D/pod-arsdkengine/pkg/config"
	"github.com/Pix4D/pod-arsdkengine/pkg/connection"
	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/logging"
	"github.com/Pix4D/pod-arsdkengine/pkg/noack"
	"github.com/Pix4D/pod-arsdkengine/pkg/peripheral"
	"github.com/Pix4D/pod-arsdkengine/pkg/pilotingitf"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/telemetry"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport/mqtt"
)

// host owns everything built from the configuration.
type host struct {
	cfg    *config.Config
	logger *slog.Logger

	hub  *store.Hub
	plog *log.FileLogger
	ctrl *device.Controller
	mgr  *connection.Manager
	sink *telemetry.Client

	// sim outlives single dial attempts; it stops with simCtx.
	sim    *simdevice.Device
	simCtx context.Context
	simSrv *transport.Server

	network  *peripheral.Network
	recorder *peripheral.Recorder
	gimbal   *peripheral.Gimbal
	stereo   *peripheral.StereoVision
	followMe *pilotingitf.FollowMe
}

func openStore(cfg config.StoreConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return store.NewMemoryBackend(), nil
	case config.StoreFile:
		return store.NewFileBackend(cfg.Path), nil
	case config.StoreSQLite:
		db, err := store.OpenSQLite(store.SQLiteConfig{
			Path:        cfg.Path,
			WALMode:     cfg.WALMode,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func newHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*host, error) {
	h := &host{cfg: cfg, logger: logger}

	backend, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	h.hub = store.NewHub(backend)

	dcfg := device.Config{
		UID:             cfg.Device.UID,
		Hub:             h.hub,
		PersistSettings: cfg.PersistSettings(),
		PresetProfile:   cfg.Device.PresetProfile,
		Logger:          logger,
	}
	if cfg.Logging.ProtocolLog != "" {
		if h.plog, err = log.NewFileLogger(cfg.Logging.ProtocolLog); err != nil {
			h.Close()
			return nil, fmt.Errorf("opening protocol log: %w", err)
		}
		dcfg.ProtocolLog = h.plog
	}
	if logging.ParseLevel(cfg.Logging.Level) == slog.LevelDebug {
		if h.plog != nil {
			dcfg.ProtocolLog = log.NewMultiLogger(h.plog, log.NewSlogAdapter(logger))
		} else {
			dcfg.ProtocolLog = log.NewSlogAdapter(logger)
		}
	}

	if h.ctrl, err = device.NewController(dcfg); err != nil {
		h.Close()
		return nil, err
	}

	budget := noack.WithBudget(cfg.Encoder.RepeatBudget)
	h.network = peripheral.NewNetwork(h.ctrl)
	h.recorder = peripheral.NewRecorder(h.ctrl)
	h.gimbal = peripheral.NewGimbal(h.ctrl, budget)
	h.stereo = peripheral.NewStereoVision(h.ctrl)
	h.followMe = pilotingitf.NewFollowMe(h.ctrl, budget)
	for _, c := range []device.Component{h.network, h.recorder, h.gimbal, h.stereo, h.followMe} {
		if err := h.ctrl.Add(c); err != nil {
			h.Close()
			return nil, err
		}
	}

	if cfg.Transport.Kind == config.TransportSim {
		h.sim = simdevice.New(simdevice.WithLogger(logger))
		h.simCtx = ctx
		if cfg.Transport.SimListen != "" {
			if h.simSrv, err = h.sim.Listen(ctx, cfg.Transport.SimListen); err != nil {
				h.Close()
				return nil, fmt.Errorf("starting simulator: %w", err)
			}
			logger.Info("simulator listening", "address", h.simSrv.Addr().String())
		}
	}

	var connRec *log.Recorder
	if h.plog != nil {
		connRec = &log.Recorder{Logger: h.plog, DeviceID: cfg.Device.UID}
	}
	h.mgr = connection.NewManager(h.dial, h.ctrl, connection.Config{
		Backoff: connection.BackoffConfig{
			Initial: cfg.Connection.BackoffInitial,
			Max:     cfg.Connection.BackoffMax,
		},
		MaxAttempts: cfg.Connection.MaxAttempts,
		DialTimeout: cfg.Connection.DialTimeout,
		Recorder:    connRec,
		Logger:      logger,
	})
	h.mgr.OnStateChange(func(oldState, newState connection.State) {
		logger.Info("connection state", "from", oldState.String(), "to", newState.String())
	})

	if cfg.Telemetry.Enabled {
		sink, err := telemetry.Dial(ctx, cfg.Telemetry, logger)
		switch {
		case errors.Is(err, telemetry.ErrDisabled):
		case err != nil:
			logger.Warn("telemetry disabled", "error", err)
		default:
			h.sink = sink
			sink.Attach(h.ctrl.Registry())
		}
	}
	return h, nil
}

// dial opens one session over the configured transport.
func (h *host) dial(ctx context.Context, handler transport.EventHandler) (connection.Session, error) {
	tc := h.cfg.Transport
	rec := h.ctrl.BeginSession()
	lcfg := transport.LinkConfig{
		MaxFrameSize: tc.MaxFrameSize,
		QueueSize:    tc.QueueSize,
		Tick:         tc.Tick,
		Recorder:     rec,
		Logger:       h.logger,
	}

	switch tc.Kind {
	case config.TransportMQTT:
		b, err := mqtt.Connect(h.cfg.MQTT, h.cfg.Device.UID, handler, mqtt.Options{
			Tick:     tc.Tick,
			Recorder: rec,
			Logger:   h.logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.TransportSim:
		if h.simSrv != nil {
			conn, err := transport.Dial(ctx, h.simSrv.Addr().String())
			if err != nil {
				return nil, err
			}
			return transport.NewLink(conn, handler, lcfg), nil
		}
		hostEnd, deviceEnd := net.Pipe()
		go func() {
			if err := h.sim.Serve(h.simCtx, deviceEnd); err != nil {
				h.logger.Warn("simulated device stopped", "error", err)
			}
		}()
		return transport.NewLink(hostEnd, handler, lcfg), nil
	default:
		conn, err := transport.Dial(ctx, tc.Address)
		if err != nil {
			return nil, err
		}
		return transport.NewLink(conn, handler, lcfg), nil
	}
}

// Start connects once and keeps reconnecting on link loss.
func (h *host) Start(ctx context.Context) {
	h.mgr.SetAutoReconnect(true)
	if err := h.mgr.Connect(ctx); err != nil {
		h.logger.Warn("initial connection failed", "error", err)
	}
}

// Target returns what the shell drives.
func (h *host) Target() shell.Target {
	return shell.Target{
		Ctrl:       h.ctrl,
		Network:    h.network,
		Recorder:   h.recorder,
		Gimbal:     h.gimbal,
		Stereo:     h.stereo,
		FollowMe:   h.followMe,
		Connection: h.mgr,
		Sim:        h.sim,
	}
}

// Close releases everything in reverse build order.
func (h *host) Close() {
	if h.sink != nil {
		h.sink.Close()
	}
	if h.mgr != nil {
		h.mgr.Close()
	}
	if h.simSrv != nil {
		h.simSrv.Close()
	}
	if h.plog != nil {
		if err := h.plog.Close(); err != nil {
			h.logger.Warn("closing protocol log", "error", err)
		}
	}
	if h.hub != nil {
		if err := h.hub.Close(); err != nil {
			h.logger.Warn("closing store", "error", err)
		}
	}
}
