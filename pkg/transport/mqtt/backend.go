package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Pix4D/pod-arsdkengine/pkg/config"
	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Options tunes a Backend.
type Options struct {
	// Tick is the transmit cadence of continuous commands (default: 25ms).
	Tick time.Duration

	// Recorder captures frames and decoded messages. Optional.
	Recorder *log.Recorder

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

// publisher is the part of pahomqtt.Client the backend publishes through.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Backend is a transport.Backend for one device behind a broker.
type Backend struct {
	client   publisher
	topics   Topics
	qos      byte
	handler  transport.EventHandler
	encoders transport.Encoders
	rec      *log.Recorder
	logger   *slog.Logger
	tick     time.Duration

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

func newBackend(topics Topics, qos byte, handler transport.EventHandler, o Options) *Backend {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Backend{
		topics:  topics,
		qos:     qos,
		handler: handler,
		rec:     o.Recorder,
		logger:  o.Logger.With("transport", "mqtt", "topic", topics.Command()),
		tick:    o.Tick,
		done:    make(chan struct{}),
	}
}

// Connect connects to the broker and subscribes to the event topic of uid.
// Events are dropped until Start.
func Connect(cfg config.MQTTConfig, uid string, handler transport.EventHandler, o Options) (*Backend, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	topics := Topics{Prefix: cfg.TopicPrefix, UID: uid}
	b := newBackend(topics, byte(cfg.QoS), handler, o)

	opts := buildClientOptions(cfg)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		b.logger.Debug("broker connection lost", "error", err)
		b.shutdown(fmt.Errorf("%w: %w", ErrNotConnected, err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	b.client = client

	token = client.Subscribe(topics.Event(), b.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleMessage(msg.Payload())
	})
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		client.Disconnect(defaultDisconnectQuiesce)
		return nil, fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(defaultDisconnectQuiesce)
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return b, nil
}

// Start begins event delivery and the transmit tick.
func (b *Backend) Start() {
	b.startOnce.Do(func() {
		b.started.Store(true)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.encoders.Run(b.done, b.tick, b.publishNoAck)
		}()
	})
}

// handleMessage decodes one event frame. paho calls it from a single
// goroutine in arrival order.
func (b *Backend) handleMessage(payload []byte) {
	if !b.started.Load() {
		return
	}
	b.rec.Frame(log.DirectionIn, payload)

	ev, err := wire.DecodeEvent(payload)
	if err != nil {
		b.logger.Warn("dropping undecodable frame", "error", err, "size", len(payload))
		b.rec.Error(log.LayerWire, err, "decode event")
		return
	}
	b.rec.DeviceEvent(ev)
	if b.handler != nil {
		b.handler.HandleEvent(ev)
	}
}

// Send publishes cmd without waiting for the broker.
func (b *Backend) Send(cmd wire.Command) error {
	select {
	case <-b.done:
		return transport.ErrClosed
	default:
	}
	if !b.client.IsConnected() {
		return ErrNotConnected
	}

	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	b.client.Publish(b.topics.Command(), b.qos, false, data)
	b.rec.Frame(log.DirectionOut, data)
	b.rec.Command(cmd)
	return nil
}

func (b *Backend) publishNoAck(cmd wire.Command) {
	if !b.client.IsConnected() {
		return
	}
	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		b.logger.Warn("dropping continuous command", "command", cmd.Name(), "error", err)
		return
	}
	b.client.Publish(b.topics.Command(), 0, false, data)
	b.rec.NoAck(cmd)
}

// RegisterNoAckEncoder adds an encoder to the transmit tick.
func (b *Backend) RegisterNoAckEncoder(enc transport.NoAckEncoder) (*transport.Registration, error) {
	return b.encoders.Register(enc)
}

// Done is closed when the broker connection is lost or the backend closed.
func (b *Backend) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that ended the backend, nil after Close.
func (b *Backend) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

// Close stops the tick and disconnects from the broker.
func (b *Backend) Close() error {
	b.shutdown(nil)
	b.wg.Wait()
	if b.client != nil {
		b.client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

func (b *Backend) shutdown(cause error) {
	b.closeOnce.Do(func() {
		b.errMu.Lock()
		b.err = cause
		b.errMu.Unlock()
		close(b.done)
		b.encoders.Close()
	})
}

var _ transport.Backend = (*Backend)(nil)
