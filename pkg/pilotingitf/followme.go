package pilotingitf

import (
	"maps"

	"github.com/Pix4D/pod-arsdkengine/pkg/activation"
	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/noack"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// KindFollowMe is the model kind of the follow-me interface.
const KindFollowMe model.Kind = "follow_me"

// Follow-me model fields.
const (
	FieldState              = "state"
	FieldMode               = "mode"
	FieldSupportedModes     = "supported_modes"
	FieldBehavior           = "behavior"
	FieldAvailabilityIssues = "availability_issues"
	FieldQualityIssues      = "quality_issues"
)

// useDefaults asks the device for its default distance, elevation and
// azimuth.
const useDefaults uint8 = 0b111

// FollowMe drives the follow-me piloting interface.
//
// The selected mode is a preset: it survives sessions and is sent with the
// start request. The device echo in FollowMeState overrides it while
// running.
type FollowMe struct {
	device.Base

	machine *activation.Machine
	enc     *noack.Encoder[Inputs]
	reg     *transport.Registration

	mode    Mode
	modes   []Mode
	blocks  map[Mode]IssueSet
	quality map[Mode]IssueSet
	running bool

	// list being received, committed on the last item
	pendingBlocks  map[Mode]IssueSet
	pendingQuality map[Mode]IssueSet
}

// NewFollowMe creates the follow-me interface of ctrl.
func NewFollowMe(ctrl *device.Controller, opts ...noack.Option) *FollowMe {
	f := &FollowMe{
		Base:    device.NewBase(ctrl, KindFollowMe),
		machine: activation.NewMachine(),
		enc:     noack.New(Inputs.command, Inputs.moving, opts...),
		mode:    ModeGeographic,
	}
	f.machine.OnStateChange(f.onStateChange)
	f.clearLists()
	return f
}

// Features returns the follow-me feature.
func (f *FollowMe) Features() []wire.FeatureID {
	return []wire.FeatureID{wire.FeatureFollowMe}
}

func (f *FollowMe) clearLists() {
	f.modes = nil
	f.blocks = map[Mode]IssueSet{}
	f.quality = map[Mode]IssueSet{}
	f.pendingBlocks = map[Mode]IssueSet{}
	f.pendingQuality = map[Mode]IssueSet{}
}

// Load restores the selected mode.
func (f *FollowMe) Load() {
	f.loadMode()
	tx := f.Begin()
	defer tx.Commit()
	tx.Set(FieldMode, f.mode)
}

func (f *FollowMe) loadMode() {
	ps := f.PresetStore()
	if ps == nil {
		return
	}
	m, err := store.ReadValue[uint8](ps, FieldMode)
	switch {
	case err == nil && Mode(m).Valid():
		f.mode = Mode(m)
	case err == nil:
		f.Logger().Warn("ignoring stored mode", "mode", m)
	case !store.IsNotFound(err):
		f.Logger().Warn("ignoring stored mode", "error", err)
	}
}

func (f *FollowMe) storeMode() {
	ps := f.PresetStore()
	if ps == nil {
		return
	}
	if err := store.WriteValue(ps, FieldMode, uint8(f.mode)); err != nil {
		f.Logger().Warn("failed to store mode", "error", err)
	} else if err := ps.Commit(); err != nil {
		f.Logger().Warn("failed to commit mode", "error", err)
	}
}

// DidConnect registers the piloting encoder and publishes if any mode is
// supported.
func (f *FollowMe) DidConnect() {
	f.reg = f.Register(f.enc)

	tx := f.Begin()
	defer tx.Commit()
	f.refresh(tx)
	if len(f.modes) > 0 {
		tx.Publish()
	}
}

// DidDisconnect resets the session state and unpublishes.
func (f *FollowMe) DidDisconnect() {
	if f.reg != nil {
		f.reg.Unregister()
		f.reg = nil
	}
	f.enc.Reset()
	f.running = false
	f.clearLists()
	f.machine.Reset()

	tx := f.Begin()
	defer tx.Commit()
	tx.Set(FieldState, activation.StateUnavailable)
	tx.Clear(FieldSupportedModes)
	tx.Clear(FieldBehavior)
	tx.Clear(FieldAvailabilityIssues)
	tx.Clear(FieldQualityIssues)
	tx.Unpublish()
}

// PresetDidChange reloads the selected mode. A running mode is kept until
// the device stops it.
func (f *FollowMe) PresetDidChange() {
	f.loadMode()
	if f.running {
		return
	}
	tx := f.Begin()
	defer tx.Commit()
	f.refresh(tx)
}

// WillForget resets the mode to its default.
func (f *FollowMe) WillForget() {
	f.mode = ModeGeographic
	tx := f.Begin()
	defer tx.Commit()
	tx.Set(FieldMode, f.mode)
}

// HandleEvent processes follow-me events.
func (f *FollowMe) HandleEvent(ev wire.Event) {
	switch e := ev.(type) {
	case *wire.FollowMeInfo:
		f.onInfo(e)
	case *wire.FollowMeState:
		f.onState(e)
	case *wire.UnknownEvent:
		f.DropEvent(e, "unknown message")
	default:
		f.DropEvent(ev, "not a follow-me event")
	}
}

func (f *FollowMe) onInfo(e *wire.FollowMeInfo) {
	m := Mode(e.Mode)
	if e.Mode != wire.FollowModeNone && !m.Valid() {
		f.DropEvent(e, "unknown mode")
		return
	}
	flags := e.ListFlags

	if flags.Has(wire.ListFlagRemove) {
		if !m.Valid() {
			return
		}
		delete(f.blocks, m)
		delete(f.quality, m)
		f.commitModes()
		f.update()
		return
	}

	if flags.Has(wire.ListFlagFirst) || flags.Has(wire.ListFlagEmpty) {
		f.pendingBlocks = map[Mode]IssueSet{}
		f.pendingQuality = map[Mode]IssueSet{}
	}
	if m.Valid() && !flags.Has(wire.ListFlagEmpty) {
		f.pendingBlocks[m] = issuesFromWire(e.MissingInputs)
		f.pendingQuality[m] = issuesFromWire(e.Improvements)
	}
	if flags.Has(wire.ListFlagLast) || flags.Has(wire.ListFlagEmpty) {
		f.blocks = maps.Clone(f.pendingBlocks)
		f.quality = maps.Clone(f.pendingQuality)
		f.commitModes()
		f.update()
	}
}

func (f *FollowMe) commitModes() {
	f.modes = f.modes[:0]
	for _, m := range Modes {
		if _, ok := f.blocks[m]; ok {
			f.modes = append(f.modes, m)
		}
	}
}

func (f *FollowMe) onState(e *wire.FollowMeState) {
	if e.Mode != wire.FollowModeNone && !Mode(e.Mode).Valid() {
		f.DropEvent(e, "unknown mode")
		return
	}

	tx := f.Begin()
	defer tx.Commit()

	f.running = e.Mode != wire.FollowModeNone
	switch {
	case !f.running:
		tx.Set(FieldBehavior, BehaviorNone)
	case e.Behavior == wire.FollowBehaviorFollow:
		tx.Set(FieldBehavior, BehaviorFollowing)
	default:
		tx.Set(FieldBehavior, BehaviorStationary)
	}
	if f.running {
		f.mode = Mode(e.Mode)
	}
	f.refresh(tx)
}

// update refreshes the model in its own batch.
func (f *FollowMe) update() {
	tx := f.Begin()
	defer tx.Commit()
	f.refresh(tx)
	if f.Connected() && len(f.modes) > 0 {
		tx.Publish()
	}
}

// refresh republishes the selected mode with its issues and recomputes the
// activation state.
func (f *FollowMe) refresh(tx *model.Tx) {
	tx.Set(FieldMode, f.mode)
	tx.Set(FieldSupportedModes, append([]Mode(nil), f.modes...))
	tx.Set(FieldAvailabilityIssues, f.blocks[f.mode])
	tx.Set(FieldQualityIssues, f.quality[f.mode])
	tx.Set(FieldState, f.machine.Update(f.inputs()))
}

func (f *FollowMe) inputs() activation.Inputs {
	blocks, ok := f.blocks[f.mode]
	return activation.Inputs{
		Supported: len(f.modes) > 0,
		Blocked:   !ok || blocks != 0,
		Running:   f.running,
	}
}

// onStateChange gates the piloting inputs on the active state.
func (f *FollowMe) onStateChange(oldState, newState activation.State) {
	f.Logger().Info("follow-me state", "from", oldState.String(), "to", newState.String())
	f.Recorder().State(log.StateEntityActivation, string(KindFollowMe), oldState.String(), newState.String(), "")

	switch {
	case newState == activation.StateActive:
		f.enc.Arm()
	case oldState == activation.StateActive:
		f.enc.Reset()
	}
}

func (f *FollowMe) sendStart(m Mode) bool {
	return f.Send(&wire.FollowMeStart{Mode: uint8(m), UseDefault: useDefaults})
}

// Activate requests the device to start following in the selected mode.
func (f *FollowMe) Activate() error {
	var err error
	f.Do(func() {
		err = f.machine.RequestActivation(func() bool { return f.sendStart(f.mode) })
	})
	return err
}

// Deactivate requests the device to stop following. The interface leaves
// the active state at once.
func (f *FollowMe) Deactivate() error {
	var err error
	f.Do(func() {
		err = f.machine.RequestDeactivation(func() bool { return f.Send(&wire.FollowMeStop{}) })
		if err != nil {
			return
		}
		f.running = false
		tx := f.Begin()
		defer tx.Commit()
		tx.Set(FieldBehavior, BehaviorNone)
		f.refresh(tx)
	})
	return err
}

// SetMode selects the follow-me mode. While active, the device restarts in
// the new mode if it is not blocked, otherwise follow-me stops. Returns
// true if a restart was requested.
func (f *FollowMe) SetMode(m Mode) bool {
	if !m.Valid() {
		return false
	}
	var restarted bool
	f.Do(func() {
		if m == f.mode {
			return
		}
		active := f.machine.State() == activation.StateActive
		blocks, ok := f.blocks[m]
		switch {
		case active && ok && blocks == 0:
			restarted = f.sendStart(m)
		case active:
			if f.Send(&wire.FollowMeStop{}) {
				f.running = false
			}
		}

		f.mode = m
		f.storeMode()
		tx := f.Begin()
		defer tx.Commit()
		if !f.running {
			tx.Set(FieldBehavior, BehaviorNone)
		}
		f.refresh(tx)
	})
	return restarted
}

// SetPitch sets the pitch input in percent, clamped to [-100, 100].
func (f *FollowMe) SetPitch(v int) {
	f.Do(func() { f.enc.Update(func(in *Inputs) { in.Pitch = percent(v) }) })
}

// SetRoll sets the roll input in percent, clamped to [-100, 100].
func (f *FollowMe) SetRoll(v int) {
	f.Do(func() { f.enc.Update(func(in *Inputs) { in.Roll = percent(v) }) })
}

// SetVerticalSpeed sets the vertical speed input in percent, clamped to
// [-100, 100].
func (f *FollowMe) SetVerticalSpeed(v int) {
	f.Do(func() { f.enc.Update(func(in *Inputs) { in.VerticalSpeed = percent(v) }) })
}

// State returns the activation state.
func (f *FollowMe) State() activation.State {
	return f.machine.State()
}

// Mode returns the selected mode.
func (f *FollowMe) Mode() Mode {
	m, _ := model.Value[Mode](f.Model(), FieldMode)
	return m
}

// SupportedModes returns the modes the device supports.
func (f *FollowMe) SupportedModes() []Mode {
	modes, _ := model.Value[[]Mode](f.Model(), FieldSupportedModes)
	return modes
}

// Behavior returns the current behavior.
func (f *FollowMe) Behavior() Behavior {
	b, _ := model.Value[Behavior](f.Model(), FieldBehavior)
	return b
}

// AvailabilityIssues returns the issues blocking the selected mode.
func (f *FollowMe) AvailabilityIssues() IssueSet {
	s, _ := model.Value[IssueSet](f.Model(), FieldAvailabilityIssues)
	return s
}

// QualityIssues returns the issues degrading the selected mode.
func (f *FollowMe) QualityIssues() IssueSet {
	s, _ := model.Value[IssueSet](f.Model(), FieldQualityIssues)
	return s
}

var _ device.Component = (*FollowMe)(nil)
