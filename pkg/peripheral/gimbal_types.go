package peripheral

import (
	"math"
	"strings"

	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Axis is a gimbal axis.
type Axis uint8

const (
	AxisYaw Axis = iota
	AxisPitch
	AxisRoll
)

const axisCount = 3

// Axes lists every axis.
var Axes = []Axis{AxisYaw, AxisPitch, AxisRoll}

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case AxisYaw:
		return "yaw"
	case AxisPitch:
		return "pitch"
	case AxisRoll:
		return "roll"
	default:
		return "unknown"
	}
}

// ParseAxis returns the axis of the given name.
func ParseAxis(s string) (Axis, bool) {
	for _, a := range Axes {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// AxisSet is a set of axes. Bit i is Axis i, as on the wire.
type AxisSet uint8

const allAxes = AxisSet(1)<<axisCount - 1

// NewAxisSet returns the set of the given axes.
func NewAxisSet(axes ...Axis) AxisSet {
	var s AxisSet
	for _, a := range axes {
		s = s.With(a)
	}
	return s
}

func axesFromWire(v uint8) AxisSet {
	return AxisSet(v) & allAxes
}

func axesFromNames(names []string) AxisSet {
	var s AxisSet
	for _, n := range names {
		if a, ok := ParseAxis(n); ok {
			s = s.With(a)
		}
	}
	return s
}

// Has returns true if a is in the set.
func (s AxisSet) Has(a Axis) bool {
	return a < axisCount && s&(1<<a) != 0
}

// With returns the set plus a.
func (s AxisSet) With(a Axis) AxisSet {
	if a >= axisCount {
		return s
	}
	return s | 1<<a
}

// Without returns the set minus a.
func (s AxisSet) Without(a Axis) AxisSet {
	return s &^ (1 << a)
}

// Axes returns the members in axis order.
func (s AxisSet) Axes() []Axis {
	var out []Axis
	for _, a := range Axes {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// Names returns the member names in axis order.
func (s AxisSet) Names() []string {
	var out []string
	for _, a := range s.Axes() {
		out = append(out, a.String())
	}
	return out
}

// String returns the member names joined by commas, or "none".
func (s AxisSet) String() string {
	if s&allAxes == 0 {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// AxisValues holds one value per axis, indexed by Axis.
type AxisValues [axisCount]float64

// With returns a copy with the value of a replaced.
func (v AxisValues) With(a Axis, x float64) AxisValues {
	if a < axisCount {
		v[a] = x
	}
	return v
}

// AxisRanges maps an axis name to its closed [min, max] range. It is stored
// in the layout of store.WriteMultiRange.
type AxisRanges map[string][2]float64

// hasNaN reports whether any axis of axes holds NaN.
func (v AxisValues) hasNaN(axes AxisSet) bool {
	for _, a := range axes.Axes() {
		if math.IsNaN(v[a]) {
			return true
		}
	}
	return false
}

func newAxisRanges(axes AxisSet, mins, maxs AxisValues) AxisRanges {
	r := make(AxisRanges, axisCount)
	for _, a := range axes.Axes() {
		r[a.String()] = [2]float64{mins[a], maxs[a]}
	}
	return r
}

// Range returns the range of a.
func (r AxisRanges) Range(a Axis) (setting.Range[float64], bool) {
	b, ok := r[a.String()]
	if !ok {
		return setting.Range[float64]{}, false
	}
	return setting.Range[float64]{Min: b[0], Max: b[1]}, true
}

// Valid returns false if any range is inverted or has a NaN bound.
func (r AxisRanges) Valid() bool {
	for _, b := range r {
		if !(b[0] <= b[1]) {
			return false
		}
	}
	return true
}

// Contains returns true if every ranged axis of v is within its range.
func (r AxisRanges) Contains(v AxisValues) bool {
	for _, a := range Axes {
		if rg, ok := r.Range(a); ok && !rg.Contains(v[a]) {
			return false
		}
	}
	return true
}

// Frame is a frame of reference of the gimbal attitude.
type Frame uint8

const (
	// FrameRelative is relative to the drone body: the axis is not stabilized.
	FrameRelative Frame = iota
	// FrameAbsolute is relative to the horizon: the axis is stabilized.
	FrameAbsolute
)

// String returns the frame name.
func (f Frame) String() string {
	switch f {
	case FrameRelative:
		return "RELATIVE"
	case FrameAbsolute:
		return "ABSOLUTE"
	default:
		return "UNKNOWN"
	}
}

func frameOf(stabilized bool) Frame {
	if stabilized {
		return FrameAbsolute
	}
	return FrameRelative
}

// ControlMode tells how control targets are interpreted.
type ControlMode uint8

const (
	// ControlPosition targets are angles in degrees.
	ControlPosition ControlMode = iota
	// ControlVelocity targets are signed fractions of the max speed, -1 to 1.
	ControlVelocity
)

// String returns the mode name.
func (m ControlMode) String() string {
	switch m {
	case ControlPosition:
		return "POSITION"
	case ControlVelocity:
		return "VELOCITY"
	default:
		return "UNKNOWN"
	}
}

// GimbalErrors is the set of active gimbal errors.
type GimbalErrors uint8

const (
	GimbalErrorCalibration GimbalErrors = 1 << iota
	GimbalErrorOverload
	GimbalErrorCommunication
	GimbalErrorCritical

	knownGimbalErrors = GimbalErrorCalibration | GimbalErrorOverload | GimbalErrorCommunication | GimbalErrorCritical
)

// Has returns true if every error of e is set.
func (s GimbalErrors) Has(e GimbalErrors) bool {
	return s&e == e
}

// String returns the error names joined by commas, or "none".
func (s GimbalErrors) String() string {
	var names []string
	for _, e := range []struct {
		bit  GimbalErrors
		name string
	}{
		{GimbalErrorCalibration, "calibration"},
		{GimbalErrorOverload, "overload"},
		{GimbalErrorCommunication, "communication"},
		{GimbalErrorCritical, "critical"},
	} {
		if s.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// OffsetsCorrection is the state of the offsets correction process.
type OffsetsCorrection struct {
	// Active is true while the process runs.
	Active bool

	// Correctable holds the axes whose range is not empty.
	Correctable AxisSet

	// Ranges bounds the offset of each correctable axis.
	Ranges AxisRanges

	// Offsets is the current correction in degrees.
	Offsets AxisValues
}

// Gimbal model fields.
const (
	FieldSupportedAxes     = "supported_axes"
	FieldMaxSpeeds         = "max_speeds"
	FieldStabilizedAxes    = "stabilized_axes"
	FieldRelativeAttitude  = "attitude.relative"
	FieldAbsoluteAttitude  = "attitude.absolute"
	FieldRelativeBounds    = "bounds.relative"
	FieldAbsoluteBounds    = "bounds.absolute"
	FieldLockedAxes        = "locked_axes"
	FieldOffsetsCorrection = "offsets_correction"
	FieldGimbalErrors      = "errors"
)

type maxSpeedSetting = setting.Setting[AxisValues, AxisRanges]

// controlState is the desired state of the continuous control command.
type controlState struct {
	Mode       ControlMode
	Defined    AxisSet
	Targets    AxisValues
	Stabilized AxisSet
}

func (s controlState) command(gimbalID uint8) wire.Command {
	cmd := &wire.GimbalSetTarget{GimbalID: gimbalID, ControlMode: wire.GimbalControlPosition}
	if s.Mode == ControlVelocity {
		cmd.ControlMode = wire.GimbalControlVelocity
	}
	frame := func(a Axis) uint8 {
		switch {
		case !s.Defined.Has(a):
			return wire.GimbalFrameNone
		case s.Stabilized.Has(a):
			return wire.GimbalFrameAbsolute
		default:
			return wire.GimbalFrameRelative
		}
	}
	cmd.YawFrame, cmd.Yaw = frame(AxisYaw), float32(s.Targets[AxisYaw])
	cmd.PitchFrame, cmd.Pitch = frame(AxisPitch), float32(s.Targets[AxisPitch])
	cmd.RollFrame, cmd.Roll = frame(AxisRoll), float32(s.Targets[AxisRoll])
	return cmd
}

// sustained is true for velocity control with a moving axis; other states
// are repeated within the encoder budget only.
func (s controlState) sustained() bool {
	if s.Mode != ControlVelocity {
		return false
	}
	for _, a := range s.Defined.Axes() {
		if s.Targets[a] != 0 {
			return true
		}
	}
	return false
}

// round3 rounds to 3 decimals.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// as32 returns v as the device will echo it back.
func as32(v float64) float64 {
	return float64(float32(v))
}
