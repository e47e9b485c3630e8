package peripheral

import (
	"maps"
	"math"

	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/noack"
	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// MainGimbalID is the id of the camera gimbal.
const MainGimbalID uint8 = 0

// Gimbal controls the camera gimbal: max speeds, stabilization, attitude
// control and offsets correction.
//
// Attitude control goes through a continuous encoder. It is registered on
// the session at DidConnect and armed by the first attitude of the session;
// stabilization changes travel in the frames of the same command.
type Gimbal struct {
	device.Base

	id        uint8
	maxSpeeds *maxSpeedSetting
	enc       *noack.Encoder[controlState]
	reg       *transport.Registration

	axes    AxisSet
	hasAxes bool

	stabPreset    AxisSet
	hasStabPreset bool
	// stabilized is the live value, stabDesired the target of the session
	// and stabPending the axes whose change the device has not confirmed.
	stabilized    AxisSet
	hasStabilized bool
	stabDesired   AxisSet
	stabPending   AxisSet

	relBounds   AxisRanges
	absBounds   AxisRanges
	relAttitude AxisValues
	absAttitude AxisValues
	hasAttitude bool

	offsets    OffsetsCorrection
	hasOffsets bool

	// lastSpeeds survives disconnection so offline changes of one axis
	// keep the others.
	lastSpeeds AxisValues

	presetsApplied bool
}

// NewGimbal creates the gimbal component of ctrl. opts configure the
// control encoder.
func NewGimbal(ctrl *device.Controller, opts ...noack.Option) *Gimbal {
	g := &Gimbal{Base: device.NewBase(ctrl, KindGimbal), id: MainGimbalID}
	g.maxSpeeds = setting.New[AxisValues, AxisRanges](FieldMaxSpeeds, &g.Base,
		func(v AxisValues) bool {
			return g.Send(&wire.GimbalSetMaxSpeed{
				GimbalID: g.id,
				Yaw:      float32(v[AxisYaw]),
				Pitch:    float32(v[AxisPitch]),
				Roll:     float32(v[AxisRoll]),
			})
		}, g.Logger())
	g.enc = noack.New(func(s controlState) wire.Command { return s.command(g.id) },
		controlState.sustained, opts...)
	return g
}

// Features returns the gimbal feature.
func (g *Gimbal) Features() []wire.FeatureID {
	return []wire.FeatureID{wire.FeatureGimbal}
}

// Load restores the supported axes, the max speed ranges and the presets.
func (g *Gimbal) Load() {
	tx := g.Begin()
	defer tx.Commit()

	if ds := g.DeviceStore(); ds != nil {
		names, err := store.ReadSet[string](ds, FieldSupportedAxes)
		switch {
		case err == nil:
			g.axes, g.hasAxes = axesFromNames(names), true
		case !store.IsNotFound(err):
			g.Logger().Warn("ignoring stored axes", "error", err)
		}
	}
	g.loadStabPreset()
	g.maxSpeeds.Load(tx)

	setOrClear(tx, FieldSupportedAxes, g.axes, g.hasAxes)
	g.publishStabilization(tx)
	if g.hasAxes {
		tx.Publish()
	}
}

func (g *Gimbal) loadStabPreset() {
	g.stabPreset, g.hasStabPreset = 0, false
	ps := g.PresetStore()
	if ps == nil {
		return
	}
	names, err := store.ReadSet[string](ps, FieldStabilizedAxes)
	switch {
	case err == nil:
		g.stabPreset, g.hasStabPreset = axesFromNames(names), true
	case !store.IsNotFound(err):
		g.Logger().Warn("ignoring stored stabilization preset", "error", err)
	}
}

func (g *Gimbal) storeStabPreset(s AxisSet) {
	g.stabPreset, g.hasStabPreset = s, true
	ps := g.PresetStore()
	if ps == nil {
		return
	}
	if err := store.WriteSet(ps, FieldStabilizedAxes, s.Names()); err != nil {
		g.Logger().Warn("failed to store stabilization preset", "error", err)
	} else if err := ps.Commit(); err != nil {
		g.Logger().Warn("failed to commit stabilization preset", "error", err)
	}
}

// WillConnect clears the values applied offline.
func (g *Gimbal) WillConnect() {
	tx := g.Begin()
	defer tx.Commit()

	g.presetsApplied = false
	g.hasStabilized = false
	g.stabDesired, g.stabPending = 0, 0
	g.maxSpeeds.WillConnect(tx)
	g.publishStabilization(tx)
}

// DidConnect registers the control encoder, applies presets and publishes.
func (g *Gimbal) DidConnect() {
	tx := g.Begin()
	defer tx.Commit()

	g.reg = g.Register(g.enc)
	g.maxSpeeds.ApplyPreset(tx)
	if g.enc.Armed() {
		g.applyStabPreset(tx)
	}
	g.publishStabilization(tx)
	tx.Publish()
}

// DidDisconnect stops control and clears the live values.
func (g *Gimbal) DidDisconnect() {
	tx := g.Begin()
	defer tx.Commit()

	if g.reg != nil {
		g.reg.Unregister()
		g.reg = nil
	}
	g.enc.Reset()
	g.maxSpeeds.Disconnect(tx)

	g.hasStabilized = false
	g.stabDesired, g.stabPending = 0, 0
	g.relBounds, g.absBounds = nil, nil
	g.hasAttitude = false
	g.offsets, g.hasOffsets = OffsetsCorrection{}, false
	for _, f := range []model.Field{
		FieldRelativeAttitude, FieldAbsoluteAttitude,
		FieldRelativeBounds, FieldAbsoluteBounds,
		FieldLockedAxes, FieldOffsetsCorrection, FieldGimbalErrors,
	} {
		tx.Clear(f)
	}
	if !g.Persistent() {
		g.axes, g.hasAxes = 0, false
		tx.Clear(FieldSupportedAxes)
		tx.Unpublish()
	}
	g.publishStabilization(tx)
}

// WillForget drops the supported axes and the max speed ranges.
func (g *Gimbal) WillForget() {
	tx := g.Begin()
	defer tx.Commit()

	g.axes, g.hasAxes = 0, false
	tx.Clear(FieldSupportedAxes)
	g.maxSpeeds.Forget(tx)
	tx.Unpublish()
}

// PresetDidChange reloads and applies the presets.
func (g *Gimbal) PresetDidChange() {
	tx := g.Begin()
	defer tx.Commit()

	g.loadStabPreset()
	g.maxSpeeds.PresetDidChange(tx)
	switch {
	case g.Connected() && g.enc.Armed():
		g.applyStabPreset(tx)
	case !g.Connected():
		g.hasStabilized = false
	}
	g.publishStabilization(tx)
}

// HandleEvent processes gimbal events.
func (g *Gimbal) HandleEvent(ev wire.Event) {
	ge, ok := ev.(wire.GimbalEvent)
	if !ok {
		g.DropEvent(ev, "not a gimbal event")
		return
	}
	if id, ok := gimbalIDOf(ge); ok && id != g.id {
		g.Logger().Warn("dropping event of unknown gimbal", "event", ev.Name(), "gimbal", id)
		return
	}

	tx := g.Begin()
	defer tx.Commit()

	switch e := ge.(type) {
	case *wire.GimbalCapabilities:
		g.onCapabilities(tx, e)
	case *wire.GimbalRelativeAttitudeBounds:
		r := newAxisRanges(g.supported(),
			AxisValues{float64(e.MinYaw), float64(e.MinPitch), float64(e.MinRoll)},
			AxisValues{float64(e.MaxYaw), float64(e.MaxPitch), float64(e.MaxRoll)})
		if !r.Valid() {
			g.DropEvent(e, "invalid attitude bounds")
			return
		}
		g.relBounds = r
		tx.Set(FieldRelativeBounds, r)
	case *wire.GimbalAbsoluteAttitudeBounds:
		r := newAxisRanges(g.supported(),
			AxisValues{float64(e.MinYaw), float64(e.MinPitch), float64(e.MinRoll)},
			AxisValues{float64(e.MaxYaw), float64(e.MaxPitch), float64(e.MaxRoll)})
		if !r.Valid() {
			g.DropEvent(e, "invalid attitude bounds")
			return
		}
		g.absBounds = r
		tx.Set(FieldAbsoluteBounds, r)
	case *wire.GimbalMaxSpeed:
		g.onMaxSpeed(tx, e)
	case *wire.GimbalAttitude:
		g.onAttitude(tx, e)
	case *wire.GimbalAxisLockState:
		tx.Set(FieldLockedAxes, axesFromWire(e.Locked)&g.supported())
	case *wire.GimbalOffsets:
		g.onOffsets(tx, e)
	case *wire.GimbalAlert:
		tx.Set(FieldGimbalErrors, GimbalErrors(e.Errors)&knownGimbalErrors)
	case *wire.UnknownEvent:
		g.DropEvent(e, "unknown message")
	}
}

func gimbalIDOf(ev wire.GimbalEvent) (uint8, bool) {
	switch e := ev.(type) {
	case *wire.GimbalCapabilities:
		return e.GimbalID, true
	case *wire.GimbalRelativeAttitudeBounds:
		return e.GimbalID, true
	case *wire.GimbalAbsoluteAttitudeBounds:
		return e.GimbalID, true
	case *wire.GimbalMaxSpeed:
		return e.GimbalID, true
	case *wire.GimbalAttitude:
		return e.GimbalID, true
	case *wire.GimbalAxisLockState:
		return e.GimbalID, true
	case *wire.GimbalOffsets:
		return e.GimbalID, true
	case *wire.GimbalAlert:
		return e.GimbalID, true
	default:
		return 0, false
	}
}

// supported returns the supported axes, or every axis while unknown.
func (g *Gimbal) supported() AxisSet {
	if g.hasAxes {
		return g.axes
	}
	return allAxes
}

func (g *Gimbal) onCapabilities(tx *model.Tx, e *wire.GimbalCapabilities) {
	axes := axesFromWire(e.Axes)
	if g.hasAxes && axes == g.axes {
		return
	}
	g.axes, g.hasAxes = axes, true
	tx.Set(FieldSupportedAxes, axes)

	ds := g.DeviceStore()
	if ds == nil {
		return
	}
	if err := store.WriteSet(ds, FieldSupportedAxes, axes.Names()); err != nil {
		g.Logger().Warn("failed to store axes", "error", err)
	} else if err := ds.Commit(); err != nil {
		g.Logger().Warn("failed to commit axes", "error", err)
	}
}

func (g *Gimbal) onMaxSpeed(tx *model.Tx, e *wire.GimbalMaxSpeed) {
	r := newAxisRanges(g.supported(),
		AxisValues{float64(e.MinYaw), float64(e.MinPitch), float64(e.MinRoll)},
		AxisValues{float64(e.MaxYaw), float64(e.MaxPitch), float64(e.MaxRoll)})
	if !r.Valid() {
		g.DropEvent(e, "invalid max speed range")
		return
	}
	// Range and current speeds land together or not at all.
	cur := AxisValues{float64(e.CurrentYaw), float64(e.CurrentPitch), float64(e.CurrentRoll)}
	if cur.hasNaN(g.supported()) || !r.Contains(cur) {
		g.DropEvent(e, "invalid current max speed")
		return
	}
	if c, ok := g.maxSpeeds.Capability(); !ok || !maps.Equal(c, r) {
		g.maxSpeeds.OnDeviceCapabilityChanged(tx, r)
	}
	if g.maxSpeeds.OnDeviceSettingChanged(tx, cur) {
		g.lastSpeeds = cur
	}
}

func (g *Gimbal) onAttitude(tx *model.Tx, e *wire.GimbalAttitude) {
	if !g.hasAxes {
		g.DropEvent(e, "attitude before capabilities")
		return
	}

	frames := [axisCount]uint8{e.YawFrame, e.PitchFrame, e.RollFrame}
	raw := [2]AxisValues{
		{float64(e.YawRelative), float64(e.PitchRelative), float64(e.RollRelative)},
		{float64(e.YawAbsolute), float64(e.PitchAbsolute), float64(e.RollAbsolute)},
	}
	var stab AxisSet
	var rel, abs AxisValues
	for _, a := range g.axes.Axes() {
		switch frames[a] {
		case wire.GimbalFrameRelative:
		case wire.GimbalFrameAbsolute:
			stab = stab.With(a)
		default:
			g.DropEvent(e, "unknown frame of reference")
			return
		}
		if math.IsNaN(raw[0][a]) || math.IsNaN(raw[1][a]) {
			g.DropEvent(e, "attitude is not a number")
			return
		}
		rel[a], abs[a] = round3(raw[0][a]), round3(raw[1][a])
	}

	g.relAttitude, g.absAttitude, g.hasAttitude = rel, abs, true
	tx.Set(FieldRelativeAttitude, rel)
	tx.Set(FieldAbsoluteAttitude, abs)

	if !g.enc.Armed() {
		g.enc.Arm()
		g.stabDesired = stab
	}
	g.onStabilization(stab)

	if g.Connected() {
		if !g.presetsApplied {
			g.applyStabPreset(tx)
		}
		g.publishStabilization(tx)
	}
}

// onStabilization records the stabilization reported by the device.
func (g *Gimbal) onStabilization(stab AxisSet) {
	g.stabilized, g.hasStabilized = stab, true
	// Axes without a pending change follow the device.
	g.stabDesired = g.stabDesired&g.stabPending | stab&^g.stabPending
	g.stabPending &^= ^(stab ^ g.stabDesired) & allAxes
}

func (g *Gimbal) applyStabPreset(tx *model.Tx) {
	g.presetsApplied = true
	if !g.hasStabPreset {
		return
	}
	g.requestStabilization(tx, g.stabPreset&g.axes)
}

// requestStabilization moves the changed axes to their target in the new
// frame. Returns false if the encoder cannot transmit.
func (g *Gimbal) requestStabilization(tx *model.Tx, want AxisSet) bool {
	changed := (want ^ g.stabDesired) & g.axes
	if changed == 0 {
		return true
	}
	if g.reg == nil || !g.enc.Armed() {
		return false
	}

	s := controlState{Mode: ControlPosition, Defined: changed, Stabilized: want}
	for _, a := range changed.Axes() {
		s.Targets[a] = as32(g.stabilizationTarget(a, want.Has(a)))
	}
	g.enc.Set(s)
	g.stabDesired = want
	g.stabPending |= changed
	g.publishStabilization(tx)
	return true
}

// stabilizationTarget returns the position keeping the axis still across a
// frame change: the current attitude in the new frame clamped to its bounds,
// the middle of the bounds without attitude, 0 without bounds.
func (g *Gimbal) stabilizationTarget(a Axis, stabilized bool) float64 {
	bounds, att := g.relBounds, g.relAttitude
	if stabilized {
		bounds, att = g.absBounds, g.absAttitude
	}
	r, ok := bounds.Range(a)
	if !ok {
		return 0
	}
	if g.hasAttitude {
		return r.Clamp(att[a])
	}
	return (r.Min + r.Max) / 2
}

func (g *Gimbal) onOffsets(tx *model.Tx, e *wire.GimbalOffsets) {
	if e.UpdateState > wire.GimbalOffsetsActive {
		g.DropEvent(e, "unknown offsets update state")
		return
	}
	mins := AxisValues{float64(e.MinYaw), float64(e.MinPitch), float64(e.MinRoll)}
	maxs := AxisValues{float64(e.MaxYaw), float64(e.MaxPitch), float64(e.MaxRoll)}
	r := newAxisRanges(g.supported(), mins, maxs)
	cur := AxisValues{float64(e.CurrentYaw), float64(e.CurrentPitch), float64(e.CurrentRoll)}
	if !r.Valid() || cur.hasNaN(g.supported()) {
		g.DropEvent(e, "invalid offsets")
		return
	}

	oc := OffsetsCorrection{
		Active: e.UpdateState == wire.GimbalOffsetsActive,
		Ranges: r,
	}
	for _, a := range g.supported().Axes() {
		if maxs[a] > mins[a] {
			oc.Correctable = oc.Correctable.With(a)
		}
		oc.Offsets[a] = round3(cur[a])
	}
	g.offsets, g.hasOffsets = oc, true
	tx.Set(FieldOffsetsCorrection, oc)
}

func (g *Gimbal) publishStabilization(tx *model.Tx) {
	setOrClear(tx, FieldStabilizedAxes, g.stabilized, g.hasStabilized)
	setOrClear(tx, FieldStabilizedAxes+setting.SuffixPending, g.stabPending, g.stabPending != 0)
	setOrClear(tx, FieldStabilizedAxes+setting.SuffixPreset, g.stabPreset, g.hasStabPreset)
}

// SetMaxSpeed requests the max speed of an axis in deg/s.
func (g *Gimbal) SetMaxSpeed(a Axis, degPerSec float64) setting.SetResult {
	var res setting.SetResult
	g.Do(func() {
		if r, ok := g.maxSpeeds.Capability(); ok {
			if _, ok := r.Range(a); !ok {
				res = setting.SetRejected
				return
			}
		}
		base, ok := g.maxSpeeds.Target()
		if !ok {
			base, ok = g.maxSpeeds.Preset()
		}
		if !ok {
			base = g.lastSpeeds
		}

		tx := g.Begin()
		defer tx.Commit()
		res = g.maxSpeeds.UserSet(tx, base.With(a, as32(degPerSec)))
	})
	return res
}

// SetStabilized requests the frame of reference of an axis.
func (g *Gimbal) SetStabilized(a Axis, stabilized bool) setting.SetResult {
	var res setting.SetResult
	g.Do(func() {
		if !g.hasAxes || !g.axes.Has(a) {
			res = setting.SetRejected
			return
		}

		tx := g.Begin()
		defer tx.Commit()
		defer g.publishStabilization(tx)

		base := g.stabPreset
		if !g.hasStabPreset {
			base = g.stabilized
		}
		g.storeStabPreset(withAxis(base, a, stabilized))

		if !g.Connected() {
			g.stabilized, g.hasStabilized = withAxis(g.stabilized, a, stabilized), true
			res = setting.SetAppliedLocally
			return
		}
		if g.stabDesired.Has(a) == stabilized {
			res = setting.SetUnchanged
			return
		}
		if !g.requestStabilization(tx, withAxis(g.stabDesired, a, stabilized)) {
			res = setting.SetNotSent
			return
		}
		res = setting.SetSent
	})
	return res
}

func withAxis(s AxisSet, a Axis, on bool) AxisSet {
	if on {
		return s.With(a)
	}
	return s.Without(a)
}

// Control sets the control targets of some axes. Position targets are
// clamped to the bounds of the axis frame, velocity targets to [-1, 1].
// Returns false if the gimbal cannot be controlled.
func (g *Gimbal) Control(mode ControlMode, targets map[Axis]float64) bool {
	var ok bool
	g.Do(func() {
		if !g.Connected() || g.reg == nil || !g.enc.Armed() {
			return
		}
		s := controlState{Mode: mode, Stabilized: g.stabDesired}
		for a, v := range targets {
			if !g.axes.Has(a) || math.IsNaN(v) {
				continue
			}
			s.Defined = s.Defined.With(a)
			s.Targets[a] = as32(g.controlTarget(mode, a, v))
		}
		if s.Defined == 0 {
			return
		}
		g.enc.Set(s)
		ok = true
	})
	return ok
}

func (g *Gimbal) controlTarget(mode ControlMode, a Axis, v float64) float64 {
	if mode == ControlVelocity {
		return setting.Range[float64]{Min: -1, Max: 1}.Clamp(v)
	}
	bounds := g.relBounds
	if g.stabDesired.Has(a) {
		bounds = g.absBounds
	}
	if r, ok := bounds.Range(a); ok {
		return r.Clamp(v)
	}
	return v
}

// CancelControl stops the control command. The gimbal keeps its attitude.
func (g *Gimbal) CancelControl() {
	g.Do(g.enc.Cancel)
}

// ResetAttitude stops control and moves the gimbal to its default attitude.
func (g *Gimbal) ResetAttitude() bool {
	var ok bool
	g.Do(func() {
		if !g.Connected() {
			return
		}
		g.enc.Cancel()
		ok = g.Send(&wire.GimbalResetOrientation{GimbalID: g.id})
	})
	return ok
}

// StartOffsetsCorrection starts the offsets correction process.
func (g *Gimbal) StartOffsetsCorrection() bool {
	var ok bool
	g.Do(func() {
		if !g.Connected() || !g.hasOffsets || g.offsets.Active {
			return
		}
		ok = g.Send(&wire.GimbalStartOffsetsUpdate{GimbalID: g.id})
	})
	return ok
}

// StopOffsetsCorrection stops the offsets correction process.
func (g *Gimbal) StopOffsetsCorrection() bool {
	var ok bool
	g.Do(func() {
		if !g.Connected() || !g.offsets.Active {
			return
		}
		ok = g.Send(&wire.GimbalStopOffsetsUpdate{GimbalID: g.id})
	})
	return ok
}

// SetOffset sets the offset of a correctable axis while the correction
// process runs. The value is clamped to the axis range.
func (g *Gimbal) SetOffset(a Axis, deg float64) bool {
	var ok bool
	g.Do(func() {
		if !g.Connected() || !g.offsets.Active || !g.offsets.Correctable.Has(a) {
			return
		}
		r, _ := g.offsets.Ranges.Range(a)
		v := g.offsets.Offsets.With(a, r.Clamp(deg))
		ok = g.Send(&wire.GimbalSetOffsets{
			GimbalID: g.id,
			Yaw:      float32(v[AxisYaw]),
			Pitch:    float32(v[AxisPitch]),
			Roll:     float32(v[AxisRoll]),
		})
	})
	return ok
}

// SupportedAxes returns the axes of the gimbal.
func (g *Gimbal) SupportedAxes() (AxisSet, bool) {
	return model.Value[AxisSet](g.Model(), FieldSupportedAxes)
}

// MaxSpeeds returns the max speed of every axis in deg/s.
func (g *Gimbal) MaxSpeeds() (AxisValues, bool) {
	return model.Value[AxisValues](g.Model(), FieldMaxSpeeds)
}

// MaxSpeedRanges returns the supported max speed range of every axis.
func (g *Gimbal) MaxSpeedRanges() (AxisRanges, bool) {
	return model.Value[AxisRanges](g.Model(), FieldMaxSpeeds+setting.SuffixCapability)
}

// StabilizedAxes returns the stabilized axes.
func (g *Gimbal) StabilizedAxes() (AxisSet, bool) {
	return model.Value[AxisSet](g.Model(), FieldStabilizedAxes)
}

// Attitude returns the attitude in the given frame, in degrees.
func (g *Gimbal) Attitude(f Frame) (AxisValues, bool) {
	if f == FrameAbsolute {
		return model.Value[AxisValues](g.Model(), FieldAbsoluteAttitude)
	}
	return model.Value[AxisValues](g.Model(), FieldRelativeAttitude)
}

// Bounds returns the attitude bounds in the given frame.
func (g *Gimbal) Bounds(f Frame) (AxisRanges, bool) {
	if f == FrameAbsolute {
		return model.Value[AxisRanges](g.Model(), FieldAbsoluteBounds)
	}
	return model.Value[AxisRanges](g.Model(), FieldRelativeBounds)
}

// LockedAxes returns the axes the gimbal cannot move.
func (g *Gimbal) LockedAxes() (AxisSet, bool) {
	return model.Value[AxisSet](g.Model(), FieldLockedAxes)
}

// OffsetsCorrection returns the offsets correction process.
func (g *Gimbal) OffsetsCorrection() (OffsetsCorrection, bool) {
	return model.Value[OffsetsCorrection](g.Model(), FieldOffsetsCorrection)
}

// Errors returns the active gimbal errors.
func (g *Gimbal) Errors() GimbalErrors {
	errs, _ := model.Value[GimbalErrors](g.Model(), FieldGimbalErrors)
	return errs
}

func setOrClear[V any](tx *model.Tx, f model.Field, v V, ok bool) {
	if ok {
		tx.Set(f, v)
	} else {
		tx.Clear(f)
	}
}

var _ device.Component = (*Gimbal)(nil)
