package setting

import (
	"errors"
	"log/slog"

	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
)

// Model field suffixes. The live value is published under the setting name.
const (
	SuffixCapability = ".capability"
	SuffixPending    = ".pending"
	SuffixPreset     = ".preset"
)

// Store key suffix of the capability in the device store.
const capabilityKeySuffix = ".cap"

// SetResult is the outcome of a user request.
type SetResult uint8

const (
	// SetSent means a command was issued and a pending change recorded.
	SetSent SetResult = iota
	// SetUnchanged means the value is already the device target; nothing sent.
	SetUnchanged
	// SetAppliedLocally means the device is disconnected; the value was
	// stored as preset and applied to the model.
	SetAppliedLocally
	// SetNotSent means the transport refused the command.
	SetNotSent
	// SetRejected means the value is outside the known capability.
	SetRejected
)

// String returns the result name.
func (r SetResult) String() string {
	switch r {
	case SetSent:
		return "SENT"
	case SetUnchanged:
		return "UNCHANGED"
	case SetAppliedLocally:
		return "APPLIED_LOCALLY"
	case SetNotSent:
		return "NOT_SENT"
	case SetRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Host is the component owning a setting.
type Host interface {
	// Connected returns true between DidConnect and DidDisconnect.
	Connected() bool

	// DeviceStore returns the device-scoped store, nil when offline
	// settings are disabled.
	DeviceStore() *store.Settings

	// PresetStore returns the current preset store, nil when offline
	// settings are disabled.
	PresetStore() *store.Settings
}

// Setting resolves one configurable attribute from its three sources:
// the device-reported Capability, the user Preset and the Live value.
//
// Every method runs on the device schedule and takes the Tx of the event or
// user call being processed.
type Setting[T comparable, C Capability[T]] struct {
	name   string
	host   Host
	send   func(T) bool
	logger *slog.Logger

	capability C
	hasCap     bool

	preset    T
	hasPreset bool

	live    T
	hasLive bool

	pending    T
	hasPending bool

	// reported is the last value received from the device this session.
	reported    T
	hasReported bool
}

// New creates a setting. send issues the command changing the device value
// and returns false if the transport refused it.
func New[T comparable, C Capability[T]](name string, host Host, send func(T) bool, logger *slog.Logger) *Setting[T, C] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Setting[T, C]{
		name:   name,
		host:   host,
		send:   send,
		logger: logger.With("setting", name),
	}
}

// Name returns the setting name.
func (s *Setting[T, C]) Name() string { return s.name }

// Field returns the model field of the live value.
func (s *Setting[T, C]) Field() model.Field { return model.Field(s.name) }

// CapabilityField returns the model field of the capability.
func (s *Setting[T, C]) CapabilityField() model.Field {
	return model.Field(s.name + SuffixCapability)
}

// PendingField returns the model field of the pending change.
func (s *Setting[T, C]) PendingField() model.Field {
	return model.Field(s.name + SuffixPending)
}

// PresetField returns the model field of the preset.
func (s *Setting[T, C]) PresetField() model.Field {
	return model.Field(s.name + SuffixPreset)
}

// Value returns the live value.
func (s *Setting[T, C]) Value() (T, bool) { return s.live, s.hasLive }

// Capability returns the capability.
func (s *Setting[T, C]) Capability() (C, bool) { return s.capability, s.hasCap }

// Preset returns the preset.
func (s *Setting[T, C]) Preset() (T, bool) { return s.preset, s.hasPreset }

// Pending returns the value awaiting device confirmation.
func (s *Setting[T, C]) Pending() (T, bool) { return s.pending, s.hasPending }

// Reported returns the last device-reported value of the session.
func (s *Setting[T, C]) Reported() (T, bool) { return s.reported, s.hasReported }

// Target returns the value the device is heading to: the pending change if
// any, else the live value.
func (s *Setting[T, C]) Target() (T, bool) {
	if s.hasPending {
		return s.pending, true
	}
	return s.live, s.hasLive
}

// Load reads the stored capability and preset and exposes them.
// A missing or undecodable value is ignored.
func (s *Setting[T, C]) Load(tx *model.Tx) {
	if ds := s.host.DeviceStore(); ds != nil {
		c, err := store.ReadValue[C](ds, s.name+capabilityKeySuffix)
		switch {
		case err == nil:
			s.capability, s.hasCap = c, true
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("ignoring stored capability", "error", err)
		}
	}
	s.loadPreset()
	s.publish(tx)
}

func (s *Setting[T, C]) loadPreset() {
	var zero T
	s.preset, s.hasPreset = zero, false

	ps := s.host.PresetStore()
	if ps == nil {
		return
	}
	v, err := store.ReadValue[T](ps, s.name)
	switch {
	case err == nil:
		s.preset, s.hasPreset = v, true
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("ignoring stored preset", "error", err)
	}
}

// WillConnect drops values applied locally while offline; the device is
// authoritative for the new session.
func (s *Setting[T, C]) WillConnect(tx *model.Tx) {
	s.clearSession()
	s.publish(tx)
}

// ApplyPreset converges the device to the preset once per connect or
// profile switch. It only acts on settings the device reported this session
// and returns true if a command was sent.
func (s *Setting[T, C]) ApplyPreset(tx *model.Tx) bool {
	if !s.hasReported {
		return false
	}
	defer s.publish(tx)

	s.live, s.hasLive = s.reported, true

	if !s.hasPreset || s.preset == s.reported {
		s.clearPending()
		return false
	}
	if s.hasCap && !s.capability.Contains(s.preset) {
		s.logger.Debug("preset outside capability, keeping device value", "preset", s.preset, "value", s.reported)
		return false
	}
	if s.hasPending && s.pending == s.preset {
		return false
	}
	if !s.send(s.preset) {
		s.logger.Warn("preset not sent")
		return false
	}
	s.pending, s.hasPending = s.preset, true
	return true
}

// OnDeviceSettingChanged records a device-reported value. It updates the
// live value once connected and clears a matching pending change. A value
// outside the known capability is dropped. Returns false if dropped.
func (s *Setting[T, C]) OnDeviceSettingChanged(tx *model.Tx, v T) bool {
	if s.hasCap && !s.capability.Contains(v) {
		s.logger.Warn("dropping value outside capability", "value", v)
		return false
	}
	s.reported, s.hasReported = v, true
	if !s.host.Connected() {
		return true
	}

	s.live, s.hasLive = v, true
	if s.hasPending && s.pending == v {
		s.clearPending()
	}
	s.publish(tx)
	return true
}

// OnDeviceCapabilityChanged records a new capability and stores it. A live
// value or pending change the capability no longer contains is cleared.
func (s *Setting[T, C]) OnDeviceCapabilityChanged(tx *model.Tx, c C) {
	s.capability, s.hasCap = c, true

	if ds := s.host.DeviceStore(); ds != nil {
		if err := store.WriteValue(ds, s.name+capabilityKeySuffix, c); err != nil {
			s.logger.Warn("failed to store capability", "error", err)
		} else if err := ds.Commit(); err != nil {
			s.logger.Warn("failed to commit capability", "error", err)
		}
	}

	if s.hasLive && !c.Contains(s.live) {
		var zero T
		s.live, s.hasLive = zero, false
	}
	if s.hasPending && !c.Contains(s.pending) {
		s.clearPending()
	}
	s.publish(tx)
}

// UserSet handles a user request.
func (s *Setting[T, C]) UserSet(tx *model.Tx, v T) SetResult {
	if s.hasCap && !s.capability.Contains(v) {
		return SetRejected
	}
	defer s.publish(tx)

	s.preset, s.hasPreset = v, true
	if ps := s.host.PresetStore(); ps != nil {
		if err := store.WriteValue(ps, s.name, v); err != nil {
			s.logger.Warn("failed to store preset", "error", err)
		} else if err := ps.Commit(); err != nil {
			s.logger.Warn("failed to commit preset", "error", err)
		}
	}

	if !s.host.Connected() {
		s.live, s.hasLive = v, true
		return SetAppliedLocally
	}

	if target, ok := s.Target(); ok && target == v {
		return SetUnchanged
	}
	if !s.send(v) {
		return SetNotSent
	}
	s.pending, s.hasPending = v, true
	return SetSent
}

// PresetDidChange reloads the preset from the current preset store and
// applies it if connected.
func (s *Setting[T, C]) PresetDidChange(tx *model.Tx) {
	s.loadPreset()
	if s.host.Connected() {
		s.ApplyPreset(tx)
		return
	}
	var zero T
	s.live, s.hasLive = zero, false
	s.publish(tx)
}

// Disconnect clears the session state. The capability is kept only when a
// device store exists.
func (s *Setting[T, C]) Disconnect(tx *model.Tx) {
	s.clearSession()
	if s.host.DeviceStore() == nil {
		var zero C
		s.capability, s.hasCap = zero, false
	}
	s.publish(tx)
}

// Forget clears the capability and every session value. The preset is kept.
func (s *Setting[T, C]) Forget(tx *model.Tx) {
	s.clearSession()
	var zero C
	s.capability, s.hasCap = zero, false
	s.publish(tx)
}

func (s *Setting[T, C]) clearSession() {
	var zero T
	s.live, s.hasLive = zero, false
	s.reported, s.hasReported = zero, false
	s.clearPending()
}

func (s *Setting[T, C]) clearPending() {
	var zero T
	s.pending, s.hasPending = zero, false
}

// publish mirrors the setting into the model.
func (s *Setting[T, C]) publish(tx *model.Tx) {
	setOrClear(tx, s.Field(), s.live, s.hasLive)
	setOrClear(tx, s.CapabilityField(), s.capability, s.hasCap)
	setOrClear(tx, s.PendingField(), s.pending, s.hasPending)
	setOrClear(tx, s.PresetField(), s.preset, s.hasPreset)
}

func setOrClear[V any](tx *model.Tx, f model.Field, v V, ok bool) {
	if ok {
		tx.Set(f, v)
	} else {
		tx.Clear(f)
	}
}
