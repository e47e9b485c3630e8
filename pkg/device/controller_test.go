package device_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pix4D/pod-arsdkengine/internal/devicetest"
	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// spy is a component recording its hooks. It owns one recorder pipelines
// setting so the hooks have something to act on.
type spy struct {
	device.Base
	calls      []string
	connected  []bool
	pipelines  *setting.Setting[uint64, setting.Any[uint64]]
	lastPreset bool
}

func newSpy(ctrl *device.Controller) *spy {
	p := &spy{Base: device.NewBase(ctrl, "spy")}
	p.pipelines = setting.New[uint64, setting.Any[uint64]]("pipelines", &p.Base, func(v uint64) bool {
		return p.Send(&wire.RecorderConfigurePipelines{Pipelines: v})
	}, nil)
	return p
}

func (p *spy) record(call string) {
	p.calls = append(p.calls, call)
	p.connected = append(p.connected, p.Connected())
}

func (p *spy) Features() []wire.FeatureID { return []wire.FeatureID{wire.FeatureRecorder} }

func (p *spy) Load() {
	p.record("load")
	tx := p.Begin()
	defer tx.Commit()
	p.pipelines.Load(tx)
}

func (p *spy) WillConnect() {
	p.record("willConnect")
	tx := p.Begin()
	defer tx.Commit()
	p.pipelines.WillConnect(tx)
}

func (p *spy) DidConnect() {
	p.record("didConnect")
	tx := p.Begin()
	defer tx.Commit()
	p.lastPreset = p.pipelines.ApplyPreset(tx)
	tx.Publish()
}

func (p *spy) DidDisconnect() {
	p.record("didDisconnect")
	tx := p.Begin()
	defer tx.Commit()
	p.pipelines.Disconnect(tx)
}

func (p *spy) WillForget() {
	p.record("willForget")
	tx := p.Begin()
	defer tx.Commit()
	p.pipelines.Forget(tx)
	tx.Unpublish()
}

func (p *spy) PresetDidChange() {
	p.record("presetDidChange")
	tx := p.Begin()
	defer tx.Commit()
	p.pipelines.PresetDidChange(tx)
}

func (p *spy) HandleEvent(ev wire.Event) {
	p.record("event:" + ev.Name())
	if e, ok := ev.(*wire.RecorderState); ok {
		tx := p.Begin()
		defer tx.Commit()
		p.pipelines.OnDeviceSettingChanged(tx, e.ActivePipelines)
	}
}

func (p *spy) set(v uint64) setting.SetResult {
	var res setting.SetResult
	p.Do(func() {
		tx := p.Begin()
		defer tx.Commit()
		res = p.pipelines.UserSet(tx, v)
	})
	return res
}

func TestNewController(t *testing.T) {
	hub := store.NewHub(store.NewMemoryBackend())

	_, err := device.NewController(device.Config{Hub: hub})
	assert.ErrorIs(t, err, device.ErrNoDeviceUID)

	_, err = device.NewController(device.Config{UID: "x"})
	assert.ErrorIs(t, err, device.ErrNoStore)

	ctrl, err := device.NewController(device.Config{UID: "x", Hub: hub})
	require.NoError(t, err)
	assert.Equal(t, store.DefaultProfile, ctrl.PresetProfile())
	assert.Equal(t, device.StateDisconnected, ctrl.State())
	assert.Equal(t, "x", ctrl.Registry().DeviceUID())
}

func TestAddRejectsDuplicates(t *testing.T) {
	h := devicetest.New(t)
	h.Add(newSpy(h.Ctrl))

	err := h.Ctrl.Add(newSpy(h.Ctrl))
	assert.ErrorIs(t, err, device.ErrDuplicateKind)

	other := &spy{Base: device.NewBase(h.Ctrl, "other")}
	err = h.Ctrl.Add(other)
	assert.ErrorIs(t, err, device.ErrFeatureClaimed)
	assert.Len(t, h.Ctrl.Components(), 1)
}

func TestLifecycleOrder(t *testing.T) {
	h := devicetest.New(t)
	p := newSpy(h.Ctrl)
	h.Add(p)

	h.WillConnect()
	assert.Equal(t, device.StateConnecting, h.Ctrl.State())
	h.Event(&wire.RecorderState{ActivePipelines: 1})
	h.Event(&wire.AllStatesChanged{})
	assert.True(t, h.Ctrl.Connected())
	h.Disconnect()

	assert.Equal(t, []string{
		"load", "willConnect", "event:RecorderState", "didConnect", "didDisconnect",
	}, p.calls)
	assert.Equal(t, []bool{false, false, false, true, false}, p.connected,
		"components see the device connected only after the state burst")
}

func TestEventsOutsideSessionDropped(t *testing.T) {
	h := devicetest.New(t)
	p := newSpy(h.Ctrl)
	h.Add(p)

	h.Event(&wire.RecorderState{ActivePipelines: 1})
	assert.Equal(t, []string{"load"}, p.calls)

	h.Connect()
	h.Event(&wire.NetworkState{}, &wire.UnknownEvent{FeatureID: 0x7f, MessageID: 0x90})
	assert.NotContains(t, p.calls, "event:NetworkState")

	h.Event(&wire.AllStatesChanged{})
	assert.Equal(t, 1, count(p.calls, "didConnect"), "a repeated end marker does not reconnect")

	h.Disconnect()
	h.Disconnect()
	assert.Equal(t, 1, count(p.calls, "didDisconnect"))
}

func TestOfflineRoundTrip(t *testing.T) {
	h := devicetest.New(t)
	p := newSpy(h.Ctrl)
	h.Add(p)

	assert.Equal(t, setting.SetAppliedLocally, p.set(3))

	b := h.Connect(&wire.RecorderState{ActivePipelines: 1})
	assert.True(t, p.lastPreset)
	assert.Equal(t, []wire.Command{&wire.RecorderConfigurePipelines{Pipelines: 3}}, b.Sent())

	h.Event(&wire.RecorderState{ActivePipelines: 3})
	v, ok := model.Value[uint64](p.Model(), "pipelines")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), v)
	assert.Len(t, b.Sent(), 1)
}

func TestSetPresetProfile(t *testing.T) {
	h := devicetest.New(t)
	p := newSpy(h.Ctrl)
	h.Add(p)

	assert.ErrorIs(t, h.Ctrl.SetPresetProfile(""), device.ErrInvalidProfile)

	require.NoError(t, h.Ctrl.SetPresetProfile(store.DefaultProfile))
	assert.Zero(t, count(p.calls, "presetDidChange"), "same profile is a no-op")

	outdoor := h.Hub.Preset("outdoor", "spy")
	require.NoError(t, store.WriteValue(outdoor, "pipelines", uint64(6)))
	require.NoError(t, outdoor.Commit())

	b := h.Connect(&wire.RecorderState{ActivePipelines: 1})
	assert.Empty(t, b.Sent())

	require.NoError(t, h.Ctrl.SetPresetProfile("outdoor"))
	assert.Equal(t, "outdoor", h.Ctrl.PresetProfile())
	assert.Equal(t, []wire.Command{&wire.RecorderConfigurePipelines{Pipelines: 6}}, b.Sent())
}

func TestForget(t *testing.T) {
	h := devicetest.New(t)
	p := newSpy(h.Ctrl)
	h.Add(p)

	h.Connect(&wire.RecorderState{ActivePipelines: 1})
	require.NoError(t, store.WriteValue(p.DeviceStore(), "extra", 1))
	require.NoError(t, p.DeviceStore().Commit())

	h.Disconnect()
	require.NoError(t, h.Ctrl.Forget())
	assert.Contains(t, p.calls, "willForget")
	assert.True(t, p.DeviceStore().IsNew())
	assert.False(t, p.Model().Published())
}

func TestForgetEndsLiveSession(t *testing.T) {
	h := devicetest.New(t)
	p := newSpy(h.Ctrl)
	h.Add(p)

	var transitions []device.State
	h.Ctrl.OnStateChange(func(_, newState device.State) {
		transitions = append(transitions, newState)
	})

	b := h.Connect(&wire.RecorderState{ActivePipelines: 1})
	require.NoError(t, store.WriteValue(p.DeviceStore(), "extra", 1))
	require.NoError(t, p.DeviceStore().Commit())
	p.calls = nil

	require.NoError(t, h.Ctrl.Forget())
	assert.Equal(t, []string{"didDisconnect", "willForget"}, p.calls)
	assert.Equal(t, device.StateDisconnected, h.Ctrl.State())
	assert.Equal(t, device.StateDisconnected, transitions[len(transitions)-1])
	assert.True(t, p.DeviceStore().IsNew())

	// Late traffic of the ended session is ignored.
	h.Event(&wire.RecorderState{ActivePipelines: 3})
	assert.Equal(t, []string{"didDisconnect", "willForget"}, p.calls)
	assert.Empty(t, b.Sent())

	h.Ctrl.DidDisconnect()
	assert.Equal(t, []string{"didDisconnect", "willForget"}, p.calls)
}

func TestWithoutPersistence(t *testing.T) {
	h := devicetest.New(t, devicetest.WithoutPersistence())
	p := newSpy(h.Ctrl)
	h.Add(p)

	assert.Nil(t, p.DeviceStore())
	assert.Nil(t, p.PresetStore())
	assert.False(t, p.Persistent())

	p.set(2)
	assert.True(t, h.Hub.Preset(store.DefaultProfile, "spy").IsNew(), "nothing is stored")
}

func TestStateCallback(t *testing.T) {
	h := devicetest.New(t)
	h.Add(newSpy(h.Ctrl))

	var mu sync.Mutex
	var got []device.State
	h.Ctrl.OnStateChange(func(oldState, newState device.State) {
		// Runs outside the schedule: calling back must not deadlock.
		_ = h.Ctrl.PresetProfile()
		mu.Lock()
		got = append(got, newState)
		mu.Unlock()
	})

	h.Connect()
	h.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []device.State{device.StateConnecting, device.StateConnected, device.StateDisconnected}, got)
}

// memoryLog keeps captured events.
type memoryLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (m *memoryLog) Log(ev log.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func TestSessionCapture(t *testing.T) {
	plog := &memoryLog{}
	hub := store.NewHub(store.NewMemoryBackend())
	ctrl, err := device.NewController(device.Config{UID: "drone-1", Hub: hub, ProtocolLog: plog})
	require.NoError(t, err)

	rec := ctrl.BeginSession()
	ctrl.WillConnect(devicetest.NewBackend())
	assert.Same(t, rec, ctrl.Recorder(), "WillConnect reuses the session begun by the dialer")
	ctrl.DidDisconnect()

	ctrl.WillConnect(devicetest.NewBackend())
	assert.NotEqual(t, rec.SessionID, ctrl.Recorder().SessionID, "each session gets a new id")
	ctrl.DidDisconnect()

	plog.mu.Lock()
	defer plog.mu.Unlock()
	require.Len(t, plog.events, 4)
	for _, ev := range plog.events {
		assert.Equal(t, log.CategoryState, ev.Category)
		assert.Equal(t, "drone-1", ev.DeviceID)
	}
	assert.Equal(t, "CONNECTING", plog.events[0].StateChange.NewState)
	assert.Equal(t, rec.SessionID, plog.events[0].SessionID)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state device.State
		want  string
	}{
		{device.StateDisconnected, "DISCONNECTED"},
		{device.StateConnecting, "CONNECTING"},
		{device.StateConnected, "CONNECTED"},
		{device.State(9), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func count(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}
