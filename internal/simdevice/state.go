package simdevice

import "github.com/Pix4D/pod-arsdkengine/pkg/wire"

// axis indices in the per-axis arrays.
const (
	yaw = iota
	pitch
	roll
	axisCount
)

type axisRange struct {
	Min, Max float32
}

func (r axisRange) clamp(v float32) float32 {
	return min(max(v, r.Min), r.Max)
}

// NetworkState is the simulated network feature.
type NetworkState struct {
	MinBitrate int32
	MaxBitrate int32
	Bitrate    int32
	Policy     uint8
	Current    uint8
	Links      []wire.LinkInfo
	Quality    int32
}

// GimbalState is the simulated main gimbal.
type GimbalState struct {
	Axes       uint8
	Bounds     [axisCount]axisRange
	SpeedRange [axisCount]axisRange
	MaxSpeed   [axisCount]float32
	Stabilized [axisCount]bool
	Relative   [axisCount]float32
	Absolute   [axisCount]float32
	Locked     uint8
	Offsets    [axisCount]float32
	OffsetsOn  bool
	Errors     uint8
}

// StereoState is the simulated stereo vision sensor.
type StereoState struct {
	Supported bool
	StepCount uint8
	State     uint8
	Step      uint8
}

// FollowMeState is the simulated follow-me feature. A mode is supported
// when it has an entry in Missing.
type FollowMeState struct {
	Missing  map[uint8]uint32
	Improve  map[uint8]uint32
	Mode     uint8
	Behavior uint8
}

// State is the whole simulated device state.
type State struct {
	Network  NetworkState
	Gimbal   GimbalState
	Recorder struct {
		Supported uint64
		Active    uint64
	}
	Stereo   StereoState
	FollowMe FollowMeState
}

// DefaultState returns a device with a yaw and pitch gimbal, two network
// links, calibrated stereo vision and every follow-me mode ready.
func DefaultState() State {
	var s State
	s.Network = NetworkState{
		MinBitrate: 100,
		MaxBitrate: 5000,
		Policy:     3,
		Current:    2,
		Links: []wire.LinkInfo{
			{Type: 1, Status: 1, Quality: 3},
			{Type: 2, Status: 2, Quality: 4},
		},
		Quality: 4,
	}
	s.Gimbal = GimbalState{
		Axes: 0b011,
		Bounds: [axisCount]axisRange{
			{Min: -180, Max: 180}, {Min: -90, Max: 90}, {Min: -45, Max: 45},
		},
		SpeedRange: [axisCount]axisRange{
			{Min: 1, Max: 180}, {Min: 1, Max: 180}, {Min: 1, Max: 180},
		},
		MaxSpeed:   [axisCount]float32{90, 90, 90},
		Stabilized: [axisCount]bool{false, true, false},
	}
	s.Recorder.Supported = 0b111
	s.Recorder.Active = 0b001
	s.Stereo = StereoState{Supported: true, StepCount: 6, State: wire.StereoCalibrationOK}
	s.FollowMe = FollowMeState{
		Missing: map[uint8]uint32{
			wire.FollowModeGeographic: 0,
			wire.FollowModeRelative:   0,
			wire.FollowModeLeash:      0,
		},
		Improve: map[uint8]uint32{},
	}
	return s
}

func (g *GimbalState) frame(a int) uint8 {
	if g.Axes&(1<<a) == 0 {
		return wire.GimbalFrameNone
	}
	if g.Stabilized[a] {
		return wire.GimbalFrameAbsolute
	}
	return wire.GimbalFrameRelative
}

func (g *GimbalState) attitude(id uint8) *wire.GimbalAttitude {
	return &wire.GimbalAttitude{
		GimbalID:      id,
		YawFrame:      g.frame(yaw),
		PitchFrame:    g.frame(pitch),
		RollFrame:     g.frame(roll),
		YawRelative:   g.Relative[yaw],
		PitchRelative: g.Relative[pitch],
		RollRelative:  g.Relative[roll],
		YawAbsolute:   g.Absolute[yaw],
		PitchAbsolute: g.Absolute[pitch],
		RollAbsolute:  g.Absolute[roll],
	}
}

func (g *GimbalState) maxSpeed(id uint8) *wire.GimbalMaxSpeed {
	r := g.SpeedRange
	return &wire.GimbalMaxSpeed{
		GimbalID: id,
		MinYaw:   r[yaw].Min, MaxYaw: r[yaw].Max, CurrentYaw: g.MaxSpeed[yaw],
		MinPitch: r[pitch].Min, MaxPitch: r[pitch].Max, CurrentPitch: g.MaxSpeed[pitch],
		MinRoll: r[roll].Min, MaxRoll: r[roll].Max, CurrentRoll: g.MaxSpeed[roll],
	}
}

func (g *GimbalState) offsets(id uint8) *wire.GimbalOffsets {
	ev := &wire.GimbalOffsets{
		GimbalID:    id,
		UpdateState: wire.GimbalOffsetsInactive,
		MinYaw:      -5, MaxYaw: 5, CurrentYaw: g.Offsets[yaw],
		MinPitch: -5, MaxPitch: 5, CurrentPitch: g.Offsets[pitch],
		MinRoll: -5, MaxRoll: 5, CurrentRoll: g.Offsets[roll],
	}
	if g.OffsetsOn {
		ev.UpdateState = wire.GimbalOffsetsActive
	}
	return ev
}

func (g *GimbalState) bounds(id uint8) (*wire.GimbalRelativeAttitudeBounds, *wire.GimbalAbsoluteAttitudeBounds) {
	b := g.Bounds
	rel := &wire.GimbalRelativeAttitudeBounds{
		GimbalID: id,
		MinYaw:   b[yaw].Min, MaxYaw: b[yaw].Max,
		MinPitch: b[pitch].Min, MaxPitch: b[pitch].Max,
		MinRoll: b[roll].Min, MaxRoll: b[roll].Max,
	}
	abs := &wire.GimbalAbsoluteAttitudeBounds{
		GimbalID: id,
		MinYaw:   b[yaw].Min, MaxYaw: b[yaw].Max,
		MinPitch: b[pitch].Min, MaxPitch: b[pitch].Max,
		MinRoll: b[roll].Min, MaxRoll: b[roll].Max,
	}
	return rel, abs
}

func (n *NetworkState) state(withCaps bool) *wire.NetworkState {
	ev := &wire.NetworkState{
		RoutingInfo:        &wire.RoutingInfo{Policy: n.Policy, Current: n.Current},
		LinksStatus:        &wire.LinksStatus{Links: append([]wire.LinkInfo(nil), n.Links...)},
		GlobalLinkQuality:  &wire.GlobalLinkQuality{Quality: n.Quality},
		CellularMaxBitrate: &wire.CellularMaxBitrate{MaxBitrate: n.Bitrate},
	}
	if withCaps {
		ev.DefaultCapabilities = &wire.NetworkCapabilities{
			CellularMinBitrate: n.MinBitrate,
			CellularMaxBitrate: n.MaxBitrate,
		}
	}
	return ev
}

// modesList returns the follow-me info list in mode order.
func (f *FollowMeState) modesList() []wire.Event {
	var evs []wire.Event
	for _, m := range []uint8{wire.FollowModeGeographic, wire.FollowModeRelative, wire.FollowModeLeash} {
		missing, ok := f.Missing[m]
		if !ok {
			continue
		}
		evs = append(evs, &wire.FollowMeInfo{Mode: m, MissingInputs: missing, Improvements: f.Improve[m]})
	}
	if len(evs) == 0 {
		return []wire.Event{&wire.FollowMeInfo{ListFlags: wire.ListFlagEmpty}}
	}
	evs[0].(*wire.FollowMeInfo).ListFlags |= wire.ListFlagFirst
	evs[len(evs)-1].(*wire.FollowMeInfo).ListFlags |= wire.ListFlagLast
	return evs
}
