package device

import (
	"log/slog"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Base carries what every component shares: its model, its stores and
// access to the session. Components embed it and override the hooks they
// need; the default hooks do nothing.
//
// Base implements setting.Host.
type Base struct {
	ctrl   *Controller
	kind   model.Kind
	comp   *model.Component
	logger *slog.Logger
}

// NewBase creates the shared part of a component of the given kind.
func NewBase(ctrl *Controller, kind model.Kind) Base {
	return Base{
		ctrl:   ctrl,
		kind:   kind,
		comp:   ctrl.registry.Add(kind),
		logger: ctrl.logger.With("component", string(kind)),
	}
}

// Kind returns the model kind.
func (b *Base) Kind() model.Kind { return b.kind }

// Model returns the published model of the component.
func (b *Base) Model() *model.Component { return b.comp }

// Begin starts a model batch. Callers defer its Commit.
func (b *Base) Begin() *model.Tx { return b.comp.Begin() }

// Logger returns the component logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Controller returns the owning controller.
func (b *Base) Controller() *Controller { return b.ctrl }

// Do runs fn on the controller schedule.
func (b *Base) Do(fn func()) { b.ctrl.Do(fn) }

// Connected returns true between DidConnect and DidDisconnect.
func (b *Base) Connected() bool { return b.ctrl.Connected() }

// DeviceStore returns the device-scoped store, nil without persistence.
func (b *Base) DeviceStore() *store.Settings { return b.ctrl.deviceStore(b.kind) }

// PresetStore returns the store of the current preset profile, nil without
// persistence.
func (b *Base) PresetStore() *store.Settings { return b.ctrl.presetStore(b.kind) }

// Persistent returns true when the device store is enabled.
func (b *Base) Persistent() bool { return b.ctrl.persist }

// Recorder returns the protocol recorder of the current session.
func (b *Base) Recorder() *log.Recorder { return b.ctrl.rec }

// Send issues cmd on the current session and returns false if the
// transport refused it or no session is up. Runs on the schedule.
func (b *Base) Send(cmd wire.Command) bool { return b.ctrl.send(cmd) }

// Register adds a continuous command encoder to the current session. Runs
// on the schedule; returns nil on failure.
func (b *Base) Register(enc transport.NoAckEncoder) *transport.Registration {
	return b.ctrl.register(enc)
}

// DropEvent logs an event the component does not handle.
func (b *Base) DropEvent(ev wire.Event, reason string) {
	b.logger.Warn("dropping event", "event", ev.Name(), "reason", reason)
}

// Features returns no feature.
func (b *Base) Features() []wire.FeatureID { return nil }

// Load does nothing.
func (b *Base) Load() {}

// WillConnect does nothing.
func (b *Base) WillConnect() {}

// DidConnect does nothing.
func (b *Base) DidConnect() {}

// DidDisconnect does nothing.
func (b *Base) DidDisconnect() {}

// WillForget does nothing.
func (b *Base) WillForget() {}

// PresetDidChange does nothing.
func (b *Base) PresetDidChange() {}

// HandleEvent does nothing.
func (b *Base) HandleEvent(wire.Event) {}
