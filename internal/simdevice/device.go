// Package simdevice implements the device side of the protocol for tests,
// demos and the built-in simulator of pod-host.
//
// A Device keeps the state of every feature family, answers GetAllStates
// with a burst ending in AllStatesChanged and echoes every accepted setting
// change. Continuous commands are applied and counted.
package simdevice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// ErrNotServing is returned by Emit when no host is connected.
var ErrNotServing = errors.New("simdevice: no host connected")

// GimbalID is the id of the simulated gimbal.
const GimbalID uint8 = 0

// velocityStep scales a velocity target to one command period, at the
// default 25ms tick.
const velocityStep = 0.025

// Option configures a Device.
type Option func(*Device)

// WithState replaces the initial state.
func WithState(s State) Option {
	return func(d *Device) { d.state = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// Device is a simulated drone.
type Device struct {
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	noAck  map[string]int
	fw     *transport.FrameWriter
	onCmds []func(wire.Command)
}

// New creates a device in its default state.
func New(opts ...Option) *Device {
	d := &Device{
		logger: slog.Default(),
		state:  DefaultState(),
		noAck:  map[string]int{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "simdevice")
	return d
}

// State returns a copy of the device state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Update changes the state under the device lock, then emits the events fn
// returns.
func (d *Device) Update(fn func(s *State) []wire.Event) error {
	d.mu.Lock()
	evs := fn(&d.state)
	d.mu.Unlock()
	return d.Emit(evs...)
}

// NoAckCount returns how many continuous commands of the given name were
// received.
func (d *Device) NoAckCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.noAck[name]
}

// OnCommand adds a callback for every decoded command.
func (d *Device) OnCommand(fn func(wire.Command)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCmds = append(d.onCmds, fn)
}

// Serve runs the device over one stream until it fails or ctx ends. Only
// one stream is served at a time.
func (d *Device) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	framer := transport.NewFramer(rwc, 0)

	d.mu.Lock()
	if d.fw != nil {
		d.mu.Unlock()
		rwc.Close()
		return fmt.Errorf("simdevice: already serving")
	}
	d.fw = framer.FrameWriter
	d.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { rwc.Close() })
	defer func() {
		stop()
		rwc.Close()
		d.mu.Lock()
		d.fw = nil
		d.mu.Unlock()
	}()

	d.logger.Info("host connected")
	for {
		frame, err := framer.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				d.logger.Info("host disconnected")
				return nil
			}
			return err
		}
		cmd, err := wire.DecodeCommand(frame)
		if err != nil {
			d.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		if err := d.Emit(d.Handle(cmd)...); err != nil {
			return err
		}
	}
}

// Listen serves the device over TCP on address until ctx ends or the
// returned server is closed. A second host is refused while one is served.
func (d *Device) Listen(ctx context.Context, address string) (*transport.Server, error) {
	srv, err := transport.Listen(address, func(conn net.Conn) {
		if err := d.Serve(ctx, conn); err != nil {
			d.logger.Warn("serve ended", "remote", conn.RemoteAddr().String(), "error", err)
		}
	}, d.logger)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, func() { srv.Close() })
	return srv, nil
}

// Emit sends events to the connected host.
func (d *Device) Emit(evs ...wire.Event) error {
	if len(evs) == 0 {
		return nil
	}
	d.mu.Lock()
	fw := d.fw
	d.mu.Unlock()
	if fw == nil {
		return ErrNotServing
	}
	for _, ev := range evs {
		data, err := wire.EncodeEvent(ev)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", ev.Name(), err)
		}
		if err := fw.WriteFrame(data); err != nil {
			return err
		}
	}
	return nil
}

// Handle applies a command and returns the events the device answers with.
func (d *Device) Handle(cmd wire.Command) []wire.Event {
	d.mu.Lock()
	cbs := slices.Clone(d.onCmds)
	evs := d.handleLocked(cmd)
	d.mu.Unlock()

	for _, cb := range cbs {
		cb(cmd)
	}
	return evs
}

func (d *Device) handleLocked(cmd wire.Command) []wire.Event {
	s := &d.state
	g := &s.Gimbal

	switch c := cmd.(type) {
	case *wire.GetAllStates:
		return d.burstLocked()

	case *wire.NetworkGetState:
		return []wire.Event{s.Network.state(c.IncludeDefaultCapabilities)}
	case *wire.NetworkSetRoutingPolicy:
		if c.Policy > 3 {
			return nil
		}
		s.Network.Policy = c.Policy
		return []wire.Event{&wire.NetworkState{RoutingInfo: &wire.RoutingInfo{Policy: c.Policy, Current: s.Network.Current}}}
	case *wire.NetworkSetCellularMaxBitrate:
		kbps := c.MaxBitrate
		if kbps != 0 {
			kbps = min(max(kbps, s.Network.MinBitrate), s.Network.MaxBitrate)
		}
		s.Network.Bitrate = kbps
		return []wire.Event{&wire.NetworkState{CellularMaxBitrate: &wire.CellularMaxBitrate{MaxBitrate: kbps}}}

	case *wire.RecorderConfigurePipelines:
		s.Recorder.Active = c.Pipelines & s.Recorder.Supported
		return []wire.Event{&wire.RecorderState{ActivePipelines: s.Recorder.Active}}

	case *wire.GimbalSetMaxSpeed:
		if c.GimbalID != GimbalID {
			return nil
		}
		for a, v := range [axisCount]float32{c.Yaw, c.Pitch, c.Roll} {
			g.MaxSpeed[a] = g.SpeedRange[a].clamp(v)
		}
		return []wire.Event{g.maxSpeed(GimbalID)}
	case *wire.GimbalSetTarget:
		d.noAck[c.Name()]++
		if c.GimbalID != GimbalID {
			return nil
		}
		d.applyTargetLocked(c)
		return []wire.Event{g.attitude(GimbalID)}
	case *wire.GimbalResetOrientation:
		g.Relative, g.Absolute = [axisCount]float32{}, [axisCount]float32{}
		return []wire.Event{g.attitude(GimbalID)}
	case *wire.GimbalStartOffsetsUpdate:
		g.OffsetsOn = true
		return []wire.Event{g.offsets(GimbalID)}
	case *wire.GimbalStopOffsetsUpdate:
		g.OffsetsOn = false
		return []wire.Event{g.offsets(GimbalID)}
	case *wire.GimbalSetOffsets:
		if !g.OffsetsOn {
			return nil
		}
		r := axisRange{Min: -5, Max: 5}
		g.Offsets = [axisCount]float32{r.clamp(c.Yaw), r.clamp(c.Pitch), r.clamp(c.Roll)}
		return []wire.Event{g.offsets(GimbalID)}

	case *wire.StereoStartCalibration:
		if !s.Stereo.Supported || s.Stereo.State == wire.StereoCalibrationCapture {
			return nil
		}
		s.Stereo.State, s.Stereo.Step = wire.StereoCalibrationCapture, 1
		return []wire.Event{
			&wire.StereoCalibrationState{State: s.Stereo.State},
			&wire.StereoCalibrationStep{Step: 1, Vertices: [8]float32{0.2, 0.2, 0.8, 0.2, 0.2, 0.8, 0.8, 0.8}},
		}
	case *wire.StereoCancelCalibration:
		if s.Stereo.State != wire.StereoCalibrationCapture && s.Stereo.State != wire.StereoCalibrationComputation {
			return nil
		}
		s.Stereo.State, s.Stereo.Step = wire.StereoCalibrationRequired, 0
		return []wire.Event{
			&wire.StereoCalibrationResult{Result: wire.StereoResultCanceled},
			&wire.StereoCalibrationState{State: s.Stereo.State},
		}

	case *wire.FollowMeStart:
		f := &s.FollowMe
		if missing, ok := f.Missing[c.Mode]; ok && missing == 0 {
			f.Mode, f.Behavior = c.Mode, wire.FollowBehaviorFollow
		} else {
			f.Mode, f.Behavior = wire.FollowModeNone, wire.FollowBehaviorIdle
		}
		return []wire.Event{&wire.FollowMeState{Mode: f.Mode, Behavior: f.Behavior}}
	case *wire.FollowMeStop:
		s.FollowMe.Mode, s.FollowMe.Behavior = wire.FollowModeNone, wire.FollowBehaviorIdle
		return []wire.Event{&wire.FollowMeState{}}

	case *wire.PilotingCommand:
		d.noAck[c.Name()]++
		return nil

	default:
		d.logger.Warn("ignoring command", "command", cmd.Name())
		return nil
	}
}

// applyTargetLocked moves the gimbal. The frame of each axis selects its
// stabilization.
func (d *Device) applyTargetLocked(c *wire.GimbalSetTarget) {
	g := &d.state.Gimbal
	targets := [axisCount]struct {
		frame uint8
		value float32
	}{{c.YawFrame, c.Yaw}, {c.PitchFrame, c.Pitch}, {c.RollFrame, c.Roll}}

	for a, t := range targets {
		if t.frame == wire.GimbalFrameNone || g.Axes&(1<<a) == 0 || g.Locked&(1<<a) != 0 {
			continue
		}
		g.Stabilized[a] = t.frame == wire.GimbalFrameAbsolute
		att := &g.Relative
		if g.Stabilized[a] {
			att = &g.Absolute
		}
		v := t.value
		if c.ControlMode == wire.GimbalControlVelocity {
			v = att[a] + t.value*g.MaxSpeed[a]*velocityStep
		}
		att[a] = g.Bounds[a].clamp(v)
	}
}

func (d *Device) burstLocked() []wire.Event {
	s := &d.state
	g := &s.Gimbal
	rel, abs := g.bounds(GimbalID)

	evs := []wire.Event{
		&wire.GimbalCapabilities{GimbalID: GimbalID, Axes: g.Axes},
		rel, abs,
		g.maxSpeed(GimbalID),
		g.attitude(GimbalID),
		&wire.GimbalAxisLockState{GimbalID: GimbalID, Locked: g.Locked},
		g.offsets(GimbalID),
		&wire.GimbalAlert{GimbalID: GimbalID, Errors: g.Errors},
		&wire.RecorderCapabilities{SupportedPipelines: s.Recorder.Supported},
		&wire.RecorderState{ActivePipelines: s.Recorder.Active},
	}

	var features uint8
	if s.Stereo.Supported {
		features = wire.StereoFeatureCalibration
	}
	evs = append(evs, &wire.StereoCapabilities{SupportedFeatures: features})
	if s.Stereo.Supported {
		evs = append(evs,
			&wire.StereoCalibrationInfo{StepCount: s.Stereo.StepCount, AspectRatio: 1.5},
			&wire.StereoCalibrationState{State: s.Stereo.State},
		)
	}

	evs = append(evs, s.FollowMe.modesList()...)
	evs = append(evs, &wire.FollowMeState{Mode: s.FollowMe.Mode, Behavior: s.FollowMe.Behavior})
	return append(evs, &wire.AllStatesChanged{})
}

// SetFollowMeIssues replaces the blocking issues of a follow-me mode and
// sends the modes list. A running mode that becomes blocked stops.
func (d *Device) SetFollowMeIssues(mode uint8, missing uint32) error {
	return d.Update(func(s *State) []wire.Event {
		f := &s.FollowMe
		f.Missing[mode] = missing
		evs := f.modesList()
		if f.Mode == mode && missing != 0 {
			f.Mode, f.Behavior = wire.FollowModeNone, wire.FollowBehaviorIdle
			evs = append(evs, &wire.FollowMeState{})
		}
		return evs
	})
}

// FinishCalibration ends a capturing calibration with the given result.
func (d *Device) FinishCalibration(result uint8) error {
	return d.Update(func(s *State) []wire.Event {
		if s.Stereo.State != wire.StereoCalibrationCapture {
			return nil
		}
		s.Stereo.State = wire.StereoCalibrationRequired
		if result == wire.StereoResultSuccess {
			s.Stereo.State = wire.StereoCalibrationOK
		}
		s.Stereo.Step = 0
		return []wire.Event{
			&wire.StereoCalibrationResult{Result: result},
			&wire.StereoCalibrationState{State: s.Stereo.State},
		}
	})
}
