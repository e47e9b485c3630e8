package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/Pix4D/pod-arsdkengine/pkg/config"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
)

const pingTimeout = 5 * time.Second

// Errors returned by Dial.
var (
	ErrDisabled    = errors.New("telemetry: disabled")
	ErrUnreachable = errors.New("telemetry: server unreachable")
)

// Sink writes model changes of one device as InfluxDB points. Writes are
// non-blocking and batched by the WriteAPI.
type Sink struct {
	w      api.WriteAPI
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	unsubscribe func()
	done        chan struct{}
}

// NewSink creates a sink writing through w. It does nothing until Attach.
func NewSink(w api.WriteAPI, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		w:      w,
		logger: logger.With("component", "telemetry"),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go s.drainErrors()
	return s
}

func (s *Sink) drainErrors() {
	errs := s.w.Errors()
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			s.logger.Warn("write failed", "error", err)
		case <-s.done:
			return
		}
	}
}

// Attach observes every component of reg. A sink observes one registry at
// a time.
func (s *Sink) Attach(reg *model.Registry) {
	unsubscribe := reg.Subscribe(model.ObserverFunc(s.OnChange))

	s.mu.Lock()
	old := s.unsubscribe
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	if old != nil {
		old()
	}
}

// OnChange writes the points of one batch.
func (s *Sink) OnChange(c *model.Component, ch model.Change) {
	for _, p := range Points(c, ch, s.now()) {
		s.w.WritePoint(p)
	}
}

// Close detaches the sink and flushes pending points.
func (s *Sink) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.w.Flush()
}

// Client owns the InfluxDB client behind a sink.
type Client struct {
	client influxdb2.Client
	*Sink
}

// Dial connects to the configured server and returns a sink writing to its
// bucket.
func Dial(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrUnreachable)
	}

	return &Client{
		client: client,
		Sink:   NewSink(client.WriteAPI(cfg.Org, cfg.Bucket), logger),
	}, nil
}

// Close flushes the sink and closes the client.
func (c *Client) Close() {
	c.Sink.Close()
	c.client.Close()
}
