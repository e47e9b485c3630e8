// Package devicetest provides a recording backend and a controller harness
// for component tests.
package devicetest

import (
	"sync"
	"testing"

	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Backend records sent commands. Continuous encoders run only when the test
// calls Tick.
type Backend struct {
	mu       sync.Mutex
	sent     []wire.Command
	refuse   bool
	encoders transport.Encoders
}

// NewBackend creates an empty recording backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Send records cmd, or fails with transport.ErrQueueFull when refusing.
func (b *Backend) Send(cmd wire.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refuse {
		return transport.ErrQueueFull
	}
	b.sent = append(b.sent, cmd)
	return nil
}

// RegisterNoAckEncoder adds an encoder polled by Tick.
func (b *Backend) RegisterNoAckEncoder(enc transport.NoAckEncoder) (*transport.Registration, error) {
	return b.encoders.Register(enc)
}

// Refuse makes Send fail until called with false.
func (b *Backend) Refuse(refuse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuse = refuse
}

// Sent returns the commands sent so far.
func (b *Backend) Sent() []wire.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]wire.Command(nil), b.sent...)
}

// Take returns the commands sent so far and forgets them.
func (b *Backend) Take() []wire.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	sent := b.sent
	b.sent = nil
	return sent
}

// Tick polls the registered encoders once.
func (b *Backend) Tick() []wire.Command {
	return b.encoders.Poll()
}

// Encoders returns the number of registered encoders.
func (b *Backend) Encoders() int {
	return b.encoders.Len()
}

var _ transport.Backend = (*Backend)(nil)

// Option configures a Harness.
type Option func(*device.Config)

// WithoutPersistence disables the device and preset stores.
func WithoutPersistence() Option {
	return func(c *device.Config) { c.PersistSettings = false }
}

// WithHub uses hub instead of a fresh memory store.
func WithHub(hub *store.Hub) Option {
	return func(c *device.Config) { c.Hub = hub }
}

// WithProfile sets the initial preset profile.
func WithProfile(profile string) Option {
	return func(c *device.Config) { c.PresetProfile = profile }
}

// UID is the device uid used by the harness.
const UID = "drone-1"

// Harness drives a controller the way the connection manager does.
type Harness struct {
	t       testing.TB
	Hub     *store.Hub
	Ctrl    *device.Controller
	Backend *Backend
}

// New creates a controller over a memory store, with persistence enabled.
func New(t testing.TB, opts ...Option) *Harness {
	t.Helper()

	cfg := device.Config{UID: UID, PersistSettings: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Hub == nil {
		cfg.Hub = store.NewHub(store.NewMemoryBackend())
	}

	ctrl, err := device.NewController(cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return &Harness{t: t, Hub: cfg.Hub, Ctrl: ctrl}
}

// Add registers a component.
func (h *Harness) Add(c device.Component) {
	h.t.Helper()
	if err := h.Ctrl.Add(c); err != nil {
		h.t.Fatalf("Add(%s): %v", c.Kind(), err)
	}
}

// WillConnect starts a session over a fresh backend.
func (h *Harness) WillConnect() *Backend {
	h.Backend = NewBackend()
	h.Ctrl.WillConnect(h.Backend)
	return h.Backend
}

// Connect starts a session, sends the burst events then the end marker.
func (h *Harness) Connect(burst ...wire.Event) *Backend {
	b := h.WillConnect()
	h.Event(burst...)
	h.Event(&wire.AllStatesChanged{})
	return b
}

// Event delivers events to the controller.
func (h *Harness) Event(evs ...wire.Event) {
	for _, ev := range evs {
		h.Ctrl.HandleEvent(ev)
	}
}

// Disconnect ends the session.
func (h *Harness) Disconnect() {
	h.Ctrl.DidDisconnect()
}

// Changes records the change notifications of a component.
type Changes struct {
	mu   sync.Mutex
	list []model.Change
}

// Observe records the changes of c from now on.
func Observe(c *model.Component) *Changes {
	ch := &Changes{}
	c.Subscribe(model.ObserverFunc(func(_ *model.Component, change model.Change) {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		ch.list = append(ch.list, change)
	}))
	return ch
}

// Count returns the number of notifications.
func (c *Changes) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

// Last returns the last notification.
func (c *Changes) Last() (model.Change, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.list) == 0 {
		return model.Change{}, false
	}
	return c.list[len(c.list)-1], true
}

// Reset forgets the recorded notifications.
func (c *Changes) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
}
