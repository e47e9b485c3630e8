package peripheral

import (
	"math/bits"
	"strings"

	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Pipeline is a flight camera recording pipeline. Its value is the bit
// index on the wire.
type Pipeline uint8

const (
	PipelineFrontTimelapse Pipeline = iota
	PipelineFrontTracking
	PipelineFrontEmergency
	PipelineStereoLeftTimelapse
	PipelineStereoLeftEmergency
	PipelineStereoLeftCalibration
	PipelineStereoLeftObstacleAvoidance
	PipelineStereoRightTimelapse
	PipelineStereoRightEmergency
	PipelineStereoRightCalibration
	PipelineStereoRightObstacleAvoidance
	PipelineVerticalPreciseHovering
	PipelineVerticalPreciseHome
	PipelineStereoRightPreciseHovering
	PipelineStereoLeftEvent
	PipelineStereoRightEvent
	PipelineFrontEvent

	pipelineCount
)

var pipelineNames = [pipelineCount]string{
	"FRONT_TIMELAPSE",
	"FRONT_TRACKING",
	"FRONT_EMERGENCY",
	"STEREO_LEFT_TIMELAPSE",
	"STEREO_LEFT_EMERGENCY",
	"STEREO_LEFT_CALIBRATION",
	"STEREO_LEFT_OBSTACLE_AVOIDANCE",
	"STEREO_RIGHT_TIMELAPSE",
	"STEREO_RIGHT_EMERGENCY",
	"STEREO_RIGHT_CALIBRATION",
	"STEREO_RIGHT_OBSTACLE_AVOIDANCE",
	"VERTICAL_PRECISE_HOVERING",
	"VERTICAL_PRECISE_HOME",
	"STEREO_RIGHT_PRECISE_HOVERING",
	"STEREO_LEFT_EVENT",
	"STEREO_RIGHT_EVENT",
	"FRONT_EVENT",
}

// String returns the pipeline name.
func (p Pipeline) String() string {
	if p < pipelineCount {
		return pipelineNames[p]
	}
	return "UNKNOWN"
}

// ParsePipeline returns the pipeline of the given name.
func ParsePipeline(s string) (Pipeline, bool) {
	for i, name := range pipelineNames {
		if name == s {
			return Pipeline(i), true
		}
	}
	return 0, false
}

// PipelineSet is a set of pipelines.
type PipelineSet uint64

// knownPipelines masks the bits of known pipelines.
const knownPipelines = PipelineSet(1)<<pipelineCount - 1

// NewPipelineSet builds a set.
func NewPipelineSet(pipelines ...Pipeline) PipelineSet {
	var s PipelineSet
	for _, p := range pipelines {
		s = s.With(p)
	}
	return s
}

// pipelinesFromWire keeps the known bits of a wire bitfield. The second
// result is false if unknown bits were dropped.
func pipelinesFromWire(v uint64) (PipelineSet, bool) {
	s := PipelineSet(v)
	return s & knownPipelines, s&^knownPipelines == 0
}

// Has returns true if p is in the set.
func (s PipelineSet) Has(p Pipeline) bool {
	return p < pipelineCount && s&(1<<p) != 0
}

// With returns the set with p added.
func (s PipelineSet) With(p Pipeline) PipelineSet {
	if p >= pipelineCount {
		return s
	}
	return s | 1<<p
}

// Without returns the set with p removed.
func (s PipelineSet) Without(p Pipeline) PipelineSet {
	return s &^ (1 << p)
}

// Len returns the number of pipelines in the set.
func (s PipelineSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Pipelines lists the set in ascending order.
func (s PipelineSet) Pipelines() []Pipeline {
	var list []Pipeline
	for p := Pipeline(0); p < pipelineCount; p++ {
		if s.Has(p) {
			list = append(list, p)
		}
	}
	return list
}

// String returns the pipeline names joined with '|'.
func (s PipelineSet) String() string {
	names := make([]string, 0, s.Len())
	for _, p := range s.Pipelines() {
		names = append(names, p.String())
	}
	return strings.Join(names, "|")
}

// PipelineCapability is the set of pipelines the device supports. A
// selection is valid if it only holds supported pipelines.
type PipelineCapability struct {
	Supported PipelineSet `cbor:"1,keyasint"`
}

// Contains returns true if every pipeline of s is supported.
func (c PipelineCapability) Contains(s PipelineSet) bool {
	return s&^c.Supported == 0
}

// FieldActivePipelines is the model field of the active pipelines.
const FieldActivePipelines = "active_pipelines"

// Recorder controls the flight camera recorder pipelines.
type Recorder struct {
	device.Base

	active *setting.Setting[PipelineSet, PipelineCapability]
}

// NewRecorder creates the recorder component of ctrl.
func NewRecorder(ctrl *device.Controller) *Recorder {
	r := &Recorder{Base: device.NewBase(ctrl, KindRecorder)}
	r.active = setting.New[PipelineSet, PipelineCapability](FieldActivePipelines, &r.Base,
		func(s PipelineSet) bool {
			return r.Send(&wire.RecorderConfigurePipelines{Pipelines: uint64(s)})
		}, r.Logger())
	return r
}

// Features returns the recorder feature.
func (r *Recorder) Features() []wire.FeatureID {
	return []wire.FeatureID{wire.FeatureRecorder}
}

// Load restores the stored capability and preset.
func (r *Recorder) Load() {
	tx := r.Begin()
	defer tx.Commit()

	r.active.Load(tx)
	ds, ps := r.DeviceStore(), r.PresetStore()
	if ds != nil && ps != nil && !ds.IsNew() && !ps.IsNew() {
		tx.Publish()
	}
}

// WillConnect clears the device-reported value.
func (r *Recorder) WillConnect() {
	tx := r.Begin()
	defer tx.Commit()
	r.active.WillConnect(tx)
}

// DidConnect applies the preset and publishes.
func (r *Recorder) DidConnect() {
	tx := r.Begin()
	defer tx.Commit()
	r.active.ApplyPreset(tx)
	tx.Publish()
}

// DidDisconnect clears the live value.
func (r *Recorder) DidDisconnect() {
	tx := r.Begin()
	defer tx.Commit()
	r.active.Disconnect(tx)
	if !r.Persistent() {
		tx.Unpublish()
	}
}

// WillForget drops the capability and unpublishes.
func (r *Recorder) WillForget() {
	tx := r.Begin()
	defer tx.Commit()
	r.active.Forget(tx)
	tx.Unpublish()
}

// PresetDidChange reloads and applies the preset.
func (r *Recorder) PresetDidChange() {
	tx := r.Begin()
	defer tx.Commit()
	r.active.PresetDidChange(tx)
}

// HandleEvent processes recorder events.
func (r *Recorder) HandleEvent(ev wire.Event) {
	re, ok := ev.(wire.RecorderEvent)
	if !ok {
		r.DropEvent(ev, "not a recorder event")
		return
	}

	tx := r.Begin()
	defer tx.Commit()

	switch e := re.(type) {
	case *wire.RecorderCapabilities:
		s, clean := pipelinesFromWire(e.SupportedPipelines)
		if !clean {
			r.Logger().Debug("ignoring unknown supported pipelines", "bits", e.SupportedPipelines)
		}
		r.active.OnDeviceCapabilityChanged(tx, PipelineCapability{Supported: s})
	case *wire.RecorderState:
		s, clean := pipelinesFromWire(e.ActivePipelines)
		if !clean {
			r.Logger().Debug("ignoring unknown active pipelines", "bits", e.ActivePipelines)
		}
		r.active.OnDeviceSettingChanged(tx, s)
	case *wire.UnknownEvent:
		r.DropEvent(e, "unknown message")
	}
}

// SetActivePipelines requests the active pipelines.
func (r *Recorder) SetActivePipelines(s PipelineSet) setting.SetResult {
	var res setting.SetResult
	r.Do(func() {
		tx := r.Begin()
		defer tx.Commit()
		res = r.active.UserSet(tx, s)
	})
	return res
}

// ActivePipelines returns the active pipelines.
func (r *Recorder) ActivePipelines() (PipelineSet, bool) {
	return model.Value[PipelineSet](r.Model(), FieldActivePipelines)
}

// SupportedPipelines returns the pipelines the device supports.
func (r *Recorder) SupportedPipelines() (PipelineSet, bool) {
	c, ok := model.Value[PipelineCapability](r.Model(), FieldActivePipelines+setting.SuffixCapability)
	return c.Supported, ok
}

var _ device.Component = (*Recorder)(nil)
