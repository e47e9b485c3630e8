package peripheral_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pix4D/pod-arsdkengine/internal/devicetest"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/noack"
	"github.com/Pix4D/pod-arsdkengine/pkg/peripheral"
	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// gimbalBurst describes a yaw and pitch gimbal.
func gimbalBurst() []wire.Event {
	return []wire.Event{
		&wire.GimbalCapabilities{Axes: 0b011},
		&wire.GimbalRelativeAttitudeBounds{MinYaw: -90, MaxYaw: 90, MinPitch: -90, MaxPitch: 30},
		&wire.GimbalAbsoluteAttitudeBounds{MinYaw: -180, MaxYaw: 180, MinPitch: -90, MaxPitch: 30},
		&wire.GimbalMaxSpeed{
			MinYaw: 1, MaxYaw: 180, CurrentYaw: 60,
			MinPitch: 1, MaxPitch: 180, CurrentPitch: 90,
		},
	}
}

func attitude(yawFrame, pitchFrame uint8) *wire.GimbalAttitude {
	return &wire.GimbalAttitude{
		YawFrame:      yawFrame,
		PitchFrame:    pitchFrame,
		YawRelative:   10.12345,
		PitchRelative: -20,
		YawAbsolute:   15,
		PitchAbsolute: -25.5,
	}
}

const (
	relative = wire.GimbalFrameRelative
	absolute = wire.GimbalFrameAbsolute
)

func newGimbal(t *testing.T, opts ...devicetest.Option) (*devicetest.Harness, *peripheral.Gimbal) {
	t.Helper()
	h := devicetest.New(t, opts...)
	g := peripheral.NewGimbal(h.Ctrl, noack.WithBudget(2))
	h.Add(g)
	return h, g
}

func TestGimbalConnect(t *testing.T) {
	h, g := newGimbal(t)
	assert.False(t, g.Model().Published())

	h.Connect(gimbalBurst()...)
	assert.True(t, g.Model().Published())

	axes, ok := g.SupportedAxes()
	require.True(t, ok)
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisYaw, peripheral.AxisPitch), axes)
	assert.Equal(t, "yaw,pitch", axes.String())

	speeds, ok := g.MaxSpeeds()
	require.True(t, ok)
	assert.Equal(t, peripheral.AxisValues{60, 90, 0}, speeds)

	ranges, ok := g.MaxSpeedRanges()
	require.True(t, ok)
	assert.Equal(t, peripheral.AxisRanges{"yaw": {1, 180}, "pitch": {1, 180}}, ranges)

	bounds, ok := g.Bounds(peripheral.FrameRelative)
	require.True(t, ok)
	pitch, ok := bounds.Range(peripheral.AxisPitch)
	require.True(t, ok)
	assert.Equal(t, setting.Range[float64]{Min: -90, Max: 30}, pitch)
	_, ok = bounds.Range(peripheral.AxisRoll)
	assert.False(t, ok)

	ds := h.Hub.Device(devicetest.UID, string(peripheral.KindGimbal))
	stored, err := store.ReadMultiRange[float64](ds, peripheral.FieldMaxSpeeds+".cap")
	require.NoError(t, err)
	assert.Equal(t, map[string][2]float64{"yaw": {1, 180}, "pitch": {1, 180}}, stored)
	names, err := store.ReadSet[string](ds, peripheral.FieldSupportedAxes)
	require.NoError(t, err)
	assert.Equal(t, []string{"pitch", "yaw"}, names)
}

func TestGimbalReloadsStoredAxes(t *testing.T) {
	h, _ := newGimbal(t)
	h.Connect(gimbalBurst()...)
	h.Disconnect()

	again := devicetest.New(t, devicetest.WithHub(h.Hub))
	g := peripheral.NewGimbal(again.Ctrl)
	again.Add(g)

	assert.True(t, g.Model().Published(), "a known gimbal is published offline")
	axes, _ := g.SupportedAxes()
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisYaw, peripheral.AxisPitch), axes)
	ranges, ok := g.MaxSpeedRanges()
	require.True(t, ok)
	assert.Len(t, ranges, 2)
}

func TestGimbalDropsInvalidEvents(t *testing.T) {
	h, g := newGimbal(t)
	h.WillConnect()

	h.Event(attitude(relative, relative))
	_, ok := g.Attitude(peripheral.FrameRelative)
	assert.False(t, ok, "attitude before capabilities")

	h.Event(&wire.GimbalCapabilities{GimbalID: 1, Axes: 0b111})
	_, ok = g.SupportedAxes()
	assert.False(t, ok, "unknown gimbal")

	h.Event(&wire.GimbalCapabilities{Axes: 0b011})
	h.Event(&wire.GimbalRelativeAttitudeBounds{MinYaw: 10, MaxYaw: -10})
	_, ok = g.Bounds(peripheral.FrameRelative)
	assert.False(t, ok, "inverted bounds")

	nan := attitude(relative, relative)
	nan.PitchAbsolute = float32(math.NaN())
	h.Event(nan)
	_, ok = g.Attitude(peripheral.FrameAbsolute)
	assert.False(t, ok, "NaN attitude")

	h.Event(attitude(relative, 7))
	_, ok = g.Attitude(peripheral.FrameAbsolute)
	assert.False(t, ok, "unknown frame")

	h.Event(&wire.GimbalMaxSpeed{MinYaw: 10, MaxYaw: 1})
	_, ok = g.MaxSpeedRanges()
	assert.False(t, ok, "inverted max speed range")

	h.Event(attitude(relative, relative))
	att, ok := g.Attitude(peripheral.FrameRelative)
	require.True(t, ok)
	assert.Equal(t, peripheral.AxisValues{10.123, -20, 0}, att, "rounded to 3 decimals")
}

func TestGimbalDropsNaNPayloads(t *testing.T) {
	nan := float32(math.NaN())
	h, g := newGimbal(t)
	h.Connect(gimbalBurst()...)
	h.Event(&wire.GimbalOffsets{MinYaw: -5, MaxYaw: 5, CurrentYaw: 1.5})
	ds := h.Hub.Device(devicetest.UID, string(peripheral.KindGimbal))

	t.Run("Bounds", func(t *testing.T) {
		h.Event(&wire.GimbalRelativeAttitudeBounds{MinYaw: nan, MaxYaw: 90, MinPitch: -90, MaxPitch: 30})
		h.Event(&wire.GimbalAbsoluteAttitudeBounds{MinYaw: -180, MaxYaw: 180, MinPitch: -90, MaxPitch: nan})

		rel, _ := g.Bounds(peripheral.FrameRelative)
		assert.Equal(t, peripheral.AxisRanges{"yaw": {-90, 90}, "pitch": {-90, 30}}, rel)
		abs, _ := g.Bounds(peripheral.FrameAbsolute)
		assert.Equal(t, peripheral.AxisRanges{"yaw": {-180, 180}, "pitch": {-90, 30}}, abs)
	})

	t.Run("MaxSpeedRange", func(t *testing.T) {
		h.Event(&wire.GimbalMaxSpeed{
			MinYaw: 1, MaxYaw: nan, CurrentYaw: 60,
			MinPitch: 1, MaxPitch: 180, CurrentPitch: 90,
		})
		ranges, _ := g.MaxSpeedRanges()
		assert.Equal(t, peripheral.AxisRanges{"yaw": {1, 180}, "pitch": {1, 180}}, ranges)
	})

	for name, ev := range map[string]*wire.GimbalMaxSpeed{
		"NaNCurrentSpeed": {
			MinYaw: 1, MaxYaw: 100, CurrentYaw: nan,
			MinPitch: 1, MaxPitch: 100, CurrentPitch: 50,
		},
		"CurrentSpeedOutOfRange": {
			MinYaw: 1, MaxYaw: 100, CurrentYaw: 150,
			MinPitch: 1, MaxPitch: 100, CurrentPitch: 50,
		},
	} {
		t.Run(name, func(t *testing.T) {
			h.Event(ev)

			ranges, _ := g.MaxSpeedRanges()
			assert.Equal(t, peripheral.AxisRanges{"yaw": {1, 180}, "pitch": {1, 180}}, ranges,
				"the new range is not applied without its speeds")
			speeds, _ := g.MaxSpeeds()
			assert.Equal(t, peripheral.AxisValues{60, 90, 0}, speeds)

			stored, err := store.ReadMultiRange[float64](ds, peripheral.FieldMaxSpeeds+".cap")
			require.NoError(t, err)
			assert.Equal(t, map[string][2]float64{"yaw": {1, 180}, "pitch": {1, 180}}, stored)
		})
	}

	t.Run("Offsets", func(t *testing.T) {
		h.Event(&wire.GimbalOffsets{MinYaw: -5, MaxYaw: nan, CurrentYaw: 1})
		h.Event(&wire.GimbalOffsets{MinYaw: -5, MaxYaw: 5, CurrentYaw: nan})

		oc, ok := g.OffsetsCorrection()
		require.True(t, ok)
		assert.Equal(t, 1.5, oc.Offsets[peripheral.AxisYaw])
		assert.Equal(t, peripheral.AxisRanges{"yaw": {-5, 5}, "pitch": {0, 0}}, oc.Ranges)
	})
}

func TestAxisRangesRejectNaN(t *testing.T) {
	nan := math.NaN()
	assert.False(t, peripheral.AxisRanges{"yaw": {nan, 1}}.Valid())
	assert.False(t, peripheral.AxisRanges{"yaw": {-1, nan}}.Valid())
	assert.False(t, peripheral.AxisRanges{"yaw": {nan, nan}}.Valid())
}

func TestGimbalSetMaxSpeed(t *testing.T) {
	h, g := newGimbal(t)
	b := h.Connect(gimbalBurst()...)

	assert.Equal(t, setting.SetSent, g.SetMaxSpeed(peripheral.AxisYaw, 120))
	assert.Equal(t, []wire.Command{&wire.GimbalSetMaxSpeed{Yaw: 120, Pitch: 90}}, b.Take())

	assert.Equal(t, setting.SetRejected, g.SetMaxSpeed(peripheral.AxisRoll, 20), "roll is not supported")
	assert.Equal(t, setting.SetRejected, g.SetMaxSpeed(peripheral.AxisPitch, 500))
	assert.Empty(t, b.Take())

	h.Event(&wire.GimbalMaxSpeed{
		MinYaw: 1, MaxYaw: 180, CurrentYaw: 120,
		MinPitch: 1, MaxPitch: 180, CurrentPitch: 90,
	})
	speeds, _ := g.MaxSpeeds()
	assert.Equal(t, peripheral.AxisValues{120, 90, 0}, speeds)
	_, pending := model.Value[peripheral.AxisValues](g.Model(), peripheral.FieldMaxSpeeds+setting.SuffixPending)
	assert.False(t, pending)
}

func TestGimbalMaxSpeedPresetOffline(t *testing.T) {
	h, g := newGimbal(t)
	h.Connect(gimbalBurst()...)
	h.Disconnect()

	assert.Equal(t, setting.SetAppliedLocally, g.SetMaxSpeed(peripheral.AxisPitch, 45.3))

	b := h.Connect(gimbalBurst()...)
	require.Len(t, b.Sent(), 1)
	cmd := b.Sent()[0].(*wire.GimbalSetMaxSpeed)
	assert.Equal(t, float32(60), cmd.Yaw, "the other axes keep their last value")
	assert.Equal(t, float32(45.3), cmd.Pitch)
}

func TestGimbalStabilization(t *testing.T) {
	h, g := newGimbal(t)
	b := h.Connect(gimbalBurst()...)
	h.Event(attitude(relative, relative))
	assert.Empty(t, b.Tick(), "nothing to control yet")

	stab, ok := g.StabilizedAxes()
	require.True(t, ok)
	assert.Equal(t, peripheral.AxisSet(0), stab)

	assert.Equal(t, setting.SetRejected, g.SetStabilized(peripheral.AxisRoll, true))
	assert.Equal(t, setting.SetUnchanged, g.SetStabilized(peripheral.AxisYaw, false))
	assert.Equal(t, setting.SetSent, g.SetStabilized(peripheral.AxisPitch, true))

	pending, _ := model.Value[peripheral.AxisSet](g.Model(), peripheral.FieldStabilizedAxes+setting.SuffixPending)
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisPitch), pending)
	assert.Equal(t, []wire.Command{&wire.GimbalSetTarget{
		ControlMode: wire.GimbalControlPosition,
		PitchFrame:  absolute,
		Pitch:       -25.5,
	}}, b.Tick(), "the pitch stays still in the absolute frame")

	h.Event(attitude(relative, absolute))
	stab, _ = g.StabilizedAxes()
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisPitch), stab)
	_, ok = model.Value[peripheral.AxisSet](g.Model(), peripheral.FieldStabilizedAxes+setting.SuffixPending)
	assert.False(t, ok)

	names, err := store.ReadSet[string](h.Hub.Preset(store.DefaultProfile, string(peripheral.KindGimbal)),
		peripheral.FieldStabilizedAxes)
	require.NoError(t, err)
	assert.Equal(t, []string{"pitch"}, names)
}

func TestGimbalStabilizationPresetOnConnect(t *testing.T) {
	h, g := newGimbal(t)
	h.Connect(gimbalBurst()...)
	h.Disconnect()

	assert.Equal(t, setting.SetAppliedLocally, g.SetStabilized(peripheral.AxisYaw, true))
	stab, _ := g.StabilizedAxes()
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisYaw), stab)

	b := h.Connect(gimbalBurst()...)
	assert.Empty(t, b.Tick(), "presets wait for the first attitude")

	h.Event(attitude(relative, relative))
	assert.Equal(t, []wire.Command{&wire.GimbalSetTarget{
		ControlMode: wire.GimbalControlPosition,
		YawFrame:    absolute,
		Yaw:         15,
	}}, b.Tick())
}

func TestGimbalControl(t *testing.T) {
	h, g := newGimbal(t)
	assert.False(t, g.Control(peripheral.ControlVelocity, map[peripheral.Axis]float64{peripheral.AxisYaw: 1}))

	b := h.Connect(gimbalBurst()...)
	assert.Equal(t, 1, b.Encoders())
	assert.False(t, g.Control(peripheral.ControlVelocity, map[peripheral.Axis]float64{peripheral.AxisYaw: 1}),
		"not armed before the first attitude")

	h.Event(attitude(relative, relative))
	require.True(t, g.Control(peripheral.ControlVelocity, map[peripheral.Axis]float64{peripheral.AxisYaw: 2}))
	moving := &wire.GimbalSetTarget{ControlMode: wire.GimbalControlVelocity, YawFrame: relative, Yaw: 1}
	for range 4 {
		assert.Equal(t, []wire.Command{moving}, b.Tick(), "a moving velocity is sustained")
	}

	require.True(t, g.Control(peripheral.ControlVelocity, map[peripheral.Axis]float64{peripheral.AxisYaw: 0}))
	assert.Len(t, b.Tick(), 1)
	assert.Len(t, b.Tick(), 1)
	assert.Empty(t, b.Tick(), "a stop is repeated within the budget only")

	require.True(t, g.Control(peripheral.ControlPosition, map[peripheral.Axis]float64{
		peripheral.AxisYaw:  500,
		peripheral.AxisRoll: 3,
	}))
	assert.Equal(t, []wire.Command{&wire.GimbalSetTarget{
		ControlMode: wire.GimbalControlPosition,
		YawFrame:    relative,
		Yaw:         90,
	}}, b.Tick())

	g.CancelControl()
	assert.Empty(t, b.Tick())
	assert.False(t, g.Control(peripheral.ControlPosition, map[peripheral.Axis]float64{peripheral.AxisRoll: 3}))

	require.True(t, g.Control(peripheral.ControlVelocity, map[peripheral.Axis]float64{peripheral.AxisPitch: -1}))
	assert.True(t, g.ResetAttitude())
	assert.Empty(t, b.Tick(), "reset cancels control")
	assert.Equal(t, []wire.Command{&wire.GimbalResetOrientation{}}, b.Take())
}

func TestGimbalDisconnect(t *testing.T) {
	h, g := newGimbal(t)
	b := h.Connect(gimbalBurst()...)
	h.Event(attitude(relative, relative), &wire.GimbalAxisLockState{Locked: 0b111})
	h.Disconnect()

	assert.Zero(t, b.Encoders())
	assert.True(t, g.Model().Published())
	_, ok := g.Attitude(peripheral.FrameRelative)
	assert.False(t, ok)
	_, ok = g.LockedAxes()
	assert.False(t, ok)
	_, ok = g.SupportedAxes()
	assert.True(t, ok)
	assert.False(t, g.ResetAttitude())
}

func TestGimbalWithoutPersistence(t *testing.T) {
	h, g := newGimbal(t, devicetest.WithoutPersistence())
	h.Connect(gimbalBurst()...)
	h.Disconnect()

	assert.False(t, g.Model().Published())
	_, ok := g.SupportedAxes()
	assert.False(t, ok)
	_, ok = g.MaxSpeedRanges()
	assert.False(t, ok)
}

func TestGimbalOffsets(t *testing.T) {
	h, g := newGimbal(t)
	b := h.Connect(gimbalBurst()...)
	assert.False(t, g.StartOffsetsCorrection(), "no offsets reported")

	offsets := &wire.GimbalOffsets{MinYaw: -5, MaxYaw: 5, CurrentYaw: 1.5}
	h.Event(offsets)
	oc, ok := g.OffsetsCorrection()
	require.True(t, ok)
	assert.False(t, oc.Active)
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisYaw), oc.Correctable)

	assert.False(t, g.SetOffset(peripheral.AxisYaw, 2), "process not started")
	assert.True(t, g.StartOffsetsCorrection())
	assert.Equal(t, []wire.Command{&wire.GimbalStartOffsetsUpdate{}}, b.Take())

	offsets.UpdateState = wire.GimbalOffsetsActive
	h.Event(offsets)
	assert.False(t, g.StartOffsetsCorrection())
	assert.False(t, g.SetOffset(peripheral.AxisPitch, 1), "pitch is not correctable")
	assert.True(t, g.SetOffset(peripheral.AxisYaw, 9))
	assert.True(t, g.StopOffsetsCorrection())
	assert.Equal(t, []wire.Command{
		&wire.GimbalSetOffsets{Yaw: 5},
		&wire.GimbalStopOffsetsUpdate{},
	}, b.Take())

	h.Event(&wire.GimbalOffsets{UpdateState: 9})
	oc, _ = g.OffsetsCorrection()
	assert.True(t, oc.Active, "unknown update state dropped")
}

func TestGimbalLocksAndAlerts(t *testing.T) {
	h, g := newGimbal(t)
	h.Connect(gimbalBurst()...)

	h.Event(&wire.GimbalAxisLockState{Locked: 0b111}, &wire.GimbalAlert{Errors: 0xff})
	locked, ok := g.LockedAxes()
	require.True(t, ok)
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisYaw, peripheral.AxisPitch), locked, "roll is not supported")

	errs := g.Errors()
	assert.True(t, errs.Has(peripheral.GimbalErrorOverload|peripheral.GimbalErrorCritical))
	assert.Equal(t, "calibration,overload,communication,critical", errs.String())
	assert.Equal(t, "none", peripheral.GimbalErrors(0).String())
}

func TestAxisRanges(t *testing.T) {
	r := peripheral.AxisRanges{"yaw": {-10, 10}}
	assert.True(t, r.Valid())
	assert.True(t, r.Contains(peripheral.AxisValues{5, 1000, -1000}), "unranged axes are free")
	assert.False(t, r.Contains(peripheral.AxisValues{11, 0, 0}))
	assert.False(t, peripheral.AxisRanges{"pitch": {1, 0}}.Valid())

	a, ok := peripheral.ParseAxis("roll")
	require.True(t, ok)
	assert.Equal(t, peripheral.AxisRoll, a)
	_, ok = peripheral.ParseAxis("tilt")
	assert.False(t, ok)
	assert.Equal(t, "none", peripheral.AxisSet(0).String())
	assert.Equal(t, peripheral.NewAxisSet(peripheral.AxisRoll), peripheral.NewAxisSet(peripheral.AxisRoll, peripheral.AxisYaw).Without(peripheral.AxisYaw))
}
