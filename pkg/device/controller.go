package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Controller errors.
var (
	ErrDuplicateKind  = errors.New("component kind already added")
	ErrFeatureClaimed = errors.New("feature already handled by another component")
	ErrInvalidProfile = errors.New("invalid preset profile")
	ErrNoStore        = errors.New("store hub is required")
	ErrNoDeviceUID    = errors.New("device uid is required")
)

// State is the connection state seen by components.
type State uint8

const (
	// StateDisconnected means no session.
	StateDisconnected State = iota

	// StateConnecting means a session is up and the state burst is in progress.
	StateConnecting

	// StateConnected means the state burst completed.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Component is a peripheral driven by the controller. Every method runs on
// the controller schedule.
type Component interface {
	// Kind returns the model kind of the component.
	Kind() model.Kind

	// Features returns the protocol features whose events the component handles.
	Features() []wire.FeatureID

	// Load restores the stored state when the component is added.
	Load()

	// WillConnect is called when a session starts, before any event.
	WillConnect()

	// DidConnect is called at the end of the initial state burst.
	DidConnect()

	// DidDisconnect is called when the session ends.
	DidDisconnect()

	// WillForget is called before the device stores are cleared.
	WillForget()

	// PresetDidChange is called after a preset profile switch.
	PresetDidChange()

	// HandleEvent receives the events of the component features.
	HandleEvent(ev wire.Event)
}

// Config configures a Controller.
type Config struct {
	// UID identifies the device.
	UID string

	// Hub provides the device and preset stores.
	Hub *store.Hub

	// PersistSettings enables the device and preset stores. When false,
	// components see nil stores and unpublish on disconnect.
	PersistSettings bool

	// PresetProfile is the initial preset profile (default: store.DefaultProfile).
	PresetProfile string

	// ProtocolLog receives the protocol capture. Optional.
	ProtocolLog log.Logger

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

// Controller orchestrates the components of one device.
type Controller struct {
	// schedule serializes hooks, events and user calls.
	schedule sync.Mutex

	uid      string
	hub      *store.Hub
	persist  bool
	registry *model.Registry
	plog     log.Logger
	logger   *slog.Logger

	// Guarded by schedule.
	profile    string
	backend    transport.Backend
	rec        *log.Recorder
	freshRec   bool
	components []Component
	byKind     map[model.Kind]Component
	byFeature  map[wire.FeatureID]Component

	// Readable from any goroutine.
	state atomic.Uint32

	cbMu          sync.Mutex
	onStateChange func(oldState, newState State)
}

// NewController creates a controller with no component.
func NewController(config Config) (*Controller, error) {
	if config.UID == "" {
		return nil, ErrNoDeviceUID
	}
	if config.Hub == nil {
		return nil, ErrNoStore
	}
	if config.PresetProfile == "" {
		config.PresetProfile = store.DefaultProfile
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &Controller{
		uid:       config.UID,
		hub:       config.Hub,
		persist:   config.PersistSettings,
		registry:  model.NewRegistry(config.UID),
		plog:      config.ProtocolLog,
		logger:    config.Logger.With("device", config.UID),
		profile:   config.PresetProfile,
		byKind:    make(map[model.Kind]Component),
		byFeature: make(map[wire.FeatureID]Component),
	}
	c.rec = c.newRecorder()
	return c, nil
}

// UID returns the device uid.
func (c *Controller) UID() string {
	return c.uid
}

// Registry returns the model registry of the device.
func (c *Controller) Registry() *model.Registry {
	return c.registry
}

// Logger returns the operational logger of the device.
func (c *Controller) Logger() *slog.Logger {
	return c.logger
}

// State returns the connection state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Connected returns true between the end of the state burst and the
// disconnection.
func (c *Controller) Connected() bool {
	return c.State() == StateConnected
}

// PresetProfile returns the current preset profile.
func (c *Controller) PresetProfile() string {
	c.schedule.Lock()
	defer c.schedule.Unlock()
	return c.profile
}

// OnStateChange sets a callback for connection state changes. It runs after
// the schedule is released.
func (c *Controller) OnStateChange(fn func(oldState, newState State)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onStateChange = fn
}

// Add registers a component and loads its stored state. Each kind and each
// feature belongs to at most one component.
func (c *Controller) Add(comp Component) error {
	c.schedule.Lock()
	defer c.schedule.Unlock()

	if _, ok := c.byKind[comp.Kind()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, comp.Kind())
	}
	for _, f := range comp.Features() {
		if owner, ok := c.byFeature[f]; ok {
			return fmt.Errorf("%w: %s by %s", ErrFeatureClaimed, f, owner.Kind())
		}
	}

	c.byKind[comp.Kind()] = comp
	for _, f := range comp.Features() {
		c.byFeature[f] = comp
	}
	c.components = append(c.components, comp)
	comp.Load()
	return nil
}

// Components returns the components in registration order.
func (c *Controller) Components() []Component {
	c.schedule.Lock()
	defer c.schedule.Unlock()
	return append([]Component(nil), c.components...)
}

// Do runs fn on the controller schedule. Components wrap every user call
// with it. fn must not call Do.
func (c *Controller) Do(fn func()) {
	c.schedule.Lock()
	defer c.schedule.Unlock()
	fn()
}

// BeginSession starts a new protocol capture session and returns its
// recorder, so the transport can share it. WillConnect reuses it.
func (c *Controller) BeginSession() *log.Recorder {
	c.schedule.Lock()
	defer c.schedule.Unlock()
	c.rec = c.newRecorder()
	c.freshRec = true
	return c.rec
}

// Recorder returns the recorder of the current session.
func (c *Controller) Recorder() *log.Recorder {
	c.schedule.Lock()
	defer c.schedule.Unlock()
	return c.rec
}

func (c *Controller) newRecorder() *log.Recorder {
	return &log.Recorder{
		Logger:    c.plog,
		SessionID: uuid.NewString(),
		DeviceID:  c.uid,
	}
}

// WillConnect starts a session over backend.
func (c *Controller) WillConnect(backend transport.Backend) {
	c.schedule.Lock()
	if !c.freshRec {
		c.rec = c.newRecorder()
	}
	c.freshRec = false
	c.backend = backend
	old := c.setStateLocked(StateConnecting, "session up")
	for _, comp := range c.components {
		comp.WillConnect()
	}
	c.schedule.Unlock()

	c.notifyState(old, StateConnecting)
}

// HandleEvent dispatches a device event to the component owning its feature.
func (c *Controller) HandleEvent(ev wire.Event) {
	c.schedule.Lock()
	if c.backend == nil {
		c.schedule.Unlock()
		c.logger.Debug("dropping event outside a session", "event", ev.Name())
		return
	}

	if _, ok := ev.(*wire.AllStatesChanged); ok {
		if c.State() != StateConnecting {
			c.schedule.Unlock()
			return
		}
		old := c.setStateLocked(StateConnected, "state burst complete")
		for _, comp := range c.components {
			comp.DidConnect()
		}
		c.schedule.Unlock()
		c.notifyState(old, StateConnected)
		return
	}

	comp, ok := c.byFeature[ev.Feature()]
	if ok {
		comp.HandleEvent(ev)
	}
	c.schedule.Unlock()

	if !ok {
		c.logger.Debug("dropping event of unhandled feature", "event", ev.Name())
	}
}

// DidDisconnect ends the session.
func (c *Controller) DidDisconnect() {
	c.schedule.Lock()
	if c.backend == nil {
		c.schedule.Unlock()
		return
	}
	old := c.setStateLocked(StateDisconnected, "session down")
	for _, comp := range c.components {
		comp.DidDisconnect()
	}
	c.backend = nil
	c.schedule.Unlock()

	c.notifyState(old, StateDisconnected)
}

// SetPresetProfile switches every component to the preset store of profile.
func (c *Controller) SetPresetProfile(profile string) error {
	if profile == "" {
		return ErrInvalidProfile
	}

	c.schedule.Lock()
	defer c.schedule.Unlock()
	if profile == c.profile {
		return nil
	}
	c.logger.Info("preset profile changed", "from", c.profile, "to", profile)
	c.profile = profile
	for _, comp := range c.components {
		comp.PresetDidChange()
	}
	return nil
}

// Forget drops everything known about the device: capabilities, cached
// values and device stores. Presets are kept. A live session is ended
// first, as if the device had disconnected.
func (c *Controller) Forget() error {
	c.schedule.Lock()
	old, ended := c.State(), c.backend != nil
	if ended {
		c.setStateLocked(StateDisconnected, "forget")
		for _, comp := range c.components {
			comp.DidDisconnect()
		}
		c.backend = nil
	}
	for _, comp := range c.components {
		comp.WillForget()
	}
	err := c.hub.ForgetDevice(c.uid)
	c.schedule.Unlock()

	if ended {
		c.notifyState(old, StateDisconnected)
	}
	if err != nil {
		return fmt.Errorf("forget %s: %w", c.uid, err)
	}
	c.logger.Info("device forgotten")
	return nil
}

// send issues cmd on the current session. Runs on the schedule.
func (c *Controller) send(cmd wire.Command) bool {
	if c.backend == nil {
		return false
	}
	if err := c.backend.Send(cmd); err != nil {
		c.logger.Warn("command not sent", "command", cmd.Name(), "error", err)
		c.rec.Error(log.LayerTransport, err, cmd.Name())
		return false
	}
	return true
}

// register adds a continuous command encoder to the current session. Runs
// on the schedule.
func (c *Controller) register(enc transport.NoAckEncoder) *transport.Registration {
	if c.backend == nil {
		return nil
	}
	reg, err := c.backend.RegisterNoAckEncoder(enc)
	if err != nil {
		c.logger.Warn("encoder not registered", "error", err)
		return nil
	}
	return reg
}

func (c *Controller) deviceStore(kind model.Kind) *store.Settings {
	if !c.persist {
		return nil
	}
	return c.hub.Device(c.uid, string(kind))
}

func (c *Controller) presetStore(kind model.Kind) *store.Settings {
	if !c.persist {
		return nil
	}
	return c.hub.Preset(c.profile, string(kind))
}

func (c *Controller) setStateLocked(newState State, reason string) State {
	old := State(c.state.Swap(uint32(newState)))
	if old != newState {
		c.rec.State(log.StateEntityDevice, c.uid, old.String(), newState.String(), reason)
		c.logger.Debug("device state changed", "from", old, "to", newState)
	}
	return old
}

func (c *Controller) notifyState(oldState, newState State) {
	if oldState == newState {
		return
	}
	c.cbMu.Lock()
	cb := c.onStateChange
	c.cbMu.Unlock()
	if cb != nil {
		cb(oldState, newState)
	}
}

var _ transport.EventHandler = (*Controller)(nil)
