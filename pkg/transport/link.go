package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// DefaultQueueSize is the default capacity of the send queue.
const DefaultQueueSize = 64

// LinkConfig configures a Link.
type LinkConfig struct {
	// MaxFrameSize is the maximum frame payload size (default: 16KB).
	MaxFrameSize uint32

	// QueueSize is the send queue capacity (default: 64).
	QueueSize int

	// Tick is the transmit cadence of non-acknowledged encoders (default: 25ms).
	Tick time.Duration

	// Recorder captures frames and decoded messages. Optional.
	Recorder *log.Recorder

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

// Link is a Backend over a byte stream.
type Link struct {
	config   LinkConfig
	rwc      io.ReadWriteCloser
	framer   *Framer
	handler  EventHandler
	encoders Encoders
	logger   *slog.Logger

	queue chan []byte

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// NewLink creates a link over rwc. Events are delivered to handler once
// Start is called.
func NewLink(rwc io.ReadWriteCloser, handler EventHandler, config LinkConfig) *Link {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	framer := NewFramer(rwc, config.MaxFrameSize)
	framer.SetRecorder(config.Recorder)

	return &Link{
		config:  config,
		rwc:     rwc,
		framer:  framer,
		handler: handler,
		logger:  config.Logger.With("transport", "link"),
		queue:   make(chan []byte, config.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the read, write and transmit loops.
func (l *Link) Start() {
	l.startOnce.Do(func() {
		l.wg.Add(3)
		go l.readLoop()
		go l.writeLoop()
		go func() {
			defer l.wg.Done()
			l.encoders.Run(l.done, l.config.Tick, l.sendNoAck)
		}()
	})
}

// Send encodes cmd and enqueues it.
func (l *Link) Send(cmd wire.Command) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	select {
	case l.queue <- data:
		l.config.Recorder.Command(cmd)
		l.logger.Debug("command queued", "command", cmd.Name())
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, cmd.Name())
	}
}

// RegisterNoAckEncoder adds an encoder to the transmit tick.
func (l *Link) RegisterNoAckEncoder(enc NoAckEncoder) (*Registration, error) {
	return l.encoders.Register(enc)
}

// Done is closed when the link is lost or closed.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns the error that ended the link, nil after a local Close.
func (l *Link) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// Close stops the loops and closes the stream.
func (l *Link) Close() error {
	err := l.shutdown(nil)
	l.wg.Wait()
	return err
}

// shutdown ends the link once. cause is nil for a local close.
func (l *Link) shutdown(cause error) error {
	var err error
	l.closeOnce.Do(func() {
		l.errMu.Lock()
		l.err = cause
		l.errMu.Unlock()

		close(l.done)
		l.encoders.Close()
		err = l.rwc.Close()
	})
	return err
}

func (l *Link) readLoop() {
	defer l.wg.Done()

	for {
		frame, err := l.framer.ReadFrame()
		if err != nil {
			select {
			case <-l.done:
			default:
				if errors.Is(err, io.EOF) {
					err = ErrClosed
				}
				l.logger.Debug("link lost", "error", err)
				l.config.Recorder.Error(log.LayerTransport, err, "read")
				l.shutdown(err)
			}
			return
		}

		ev, err := wire.DecodeEvent(frame)
		if err != nil {
			l.logger.Warn("dropping undecodable frame", "error", err, "size", len(frame))
			l.config.Recorder.Error(log.LayerWire, err, "decode event")
			continue
		}
		l.config.Recorder.DeviceEvent(ev)
		if l.handler != nil {
			l.handler.HandleEvent(ev)
		}
	}
}

func (l *Link) writeLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		case data := <-l.queue:
			if err := l.framer.WriteFrame(data); err != nil {
				l.logger.Debug("write failed", "error", err)
				l.shutdown(err)
				return
			}
		}
	}
}

func (l *Link) sendNoAck(cmd wire.Command) {
	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		l.logger.Warn("dropping continuous command", "command", cmd.Name(), "error", err)
		return
	}
	if err := l.framer.WriteFrame(data); err != nil {
		l.logger.Debug("continuous command not sent", "command", cmd.Name(), "error", err)
		return
	}
	l.config.Recorder.NoAck(cmd)
}

var _ Backend = (*Link)(nil)
