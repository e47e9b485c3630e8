package peripheral_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pix4D/pod-arsdkengine/internal/devicetest"
	"github.com/Pix4D/pod-arsdkengine/pkg/peripheral"
	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

var fourPipelines = peripheral.NewPipelineSet(
	peripheral.PipelineFrontTimelapse,
	peripheral.PipelineFrontTracking,
	peripheral.PipelineFrontEmergency,
	peripheral.PipelineStereoLeftTimelapse,
)

func TestRecorderConnect(t *testing.T) {
	h := devicetest.New(t)
	r := peripheral.NewRecorder(h.Ctrl)
	h.Add(r)
	assert.False(t, r.Model().Published())

	b := h.Connect(
		&wire.RecorderCapabilities{SupportedPipelines: uint64(fourPipelines)},
		&wire.RecorderState{ActivePipelines: 1 | 1<<40},
	)
	assert.True(t, r.Model().Published())

	active, ok := r.ActivePipelines()
	require.True(t, ok)
	assert.Equal(t, peripheral.NewPipelineSet(peripheral.PipelineFrontTimelapse), active, "unknown bits are dropped")
	supported, ok := r.SupportedPipelines()
	require.True(t, ok)
	assert.Equal(t, fourPipelines, supported)

	next := peripheral.NewPipelineSet(peripheral.PipelineFrontTracking)
	assert.Equal(t, setting.SetSent, r.SetActivePipelines(next))
	assert.Equal(t, []wire.Command{&wire.RecorderConfigurePipelines{Pipelines: uint64(next)}}, b.Take())
	assert.Equal(t, setting.SetRejected,
		r.SetActivePipelines(peripheral.NewPipelineSet(peripheral.PipelineFrontEvent)))
}

func TestRecorderPublishedOfflineOnceKnown(t *testing.T) {
	h := devicetest.New(t)
	r := peripheral.NewRecorder(h.Ctrl)
	h.Add(r)
	h.Connect(&wire.RecorderCapabilities{SupportedPipelines: uint64(fourPipelines)},
		&wire.RecorderState{ActivePipelines: 1})
	h.Disconnect()

	tracking := peripheral.NewPipelineSet(peripheral.PipelineFrontTracking)
	assert.Equal(t, setting.SetAppliedLocally, r.SetActivePipelines(tracking))

	again := devicetest.New(t, devicetest.WithHub(h.Hub))
	r2 := peripheral.NewRecorder(again.Ctrl)
	again.Add(r2)
	assert.True(t, r2.Model().Published())

	b := again.Connect(&wire.RecorderState{ActivePipelines: 1})
	assert.Equal(t, []wire.Command{&wire.RecorderConfigurePipelines{Pipelines: uint64(tracking)}}, b.Sent())
}

func TestPipelineSet(t *testing.T) {
	s := peripheral.NewPipelineSet(peripheral.PipelineFrontEvent, peripheral.PipelineFrontTimelapse)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "FRONT_TIMELAPSE|FRONT_EVENT", s.String())
	assert.False(t, s.Without(peripheral.PipelineFrontEvent).Has(peripheral.PipelineFrontEvent))

	p, ok := peripheral.ParsePipeline("VERTICAL_PRECISE_HOME")
	require.True(t, ok)
	assert.Equal(t, peripheral.PipelineVerticalPreciseHome, p)
	assert.Equal(t, "UNKNOWN", peripheral.Pipeline(99).String())
}
