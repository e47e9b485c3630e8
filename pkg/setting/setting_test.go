package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/store"
)

type fakeHost struct {
	connected bool
	hub       *store.Hub
	profile   string
	persist   bool
}

func newFakeHost(persist bool) *fakeHost {
	return &fakeHost{hub: store.NewHub(store.NewMemoryBackend()), profile: "default", persist: persist}
}

func (h *fakeHost) Connected() bool { return h.connected }

func (h *fakeHost) DeviceStore() *store.Settings {
	if !h.persist {
		return nil
	}
	return h.hub.Device("drone-1", "network")
}

func (h *fakeHost) PresetStore() *store.Settings {
	if !h.persist {
		return nil
	}
	return h.hub.Preset(h.profile, "network")
}

type harness struct {
	host *fakeHost
	comp *model.Component
	s    *Setting[int, Range[int]]
	sent []int
	fail bool
}

func newHarness(t *testing.T, persist bool) *harness {
	t.Helper()
	h := &harness{host: newFakeHost(persist)}
	h.comp = model.NewRegistry("drone-1").Add("network")
	h.s = New[int, Range[int]]("bitrate", h.host, func(v int) bool {
		if h.fail {
			return false
		}
		h.sent = append(h.sent, v)
		return true
	}, nil)
	h.do(func(tx *model.Tx) { h.s.Load(tx) })
	return h
}

func (h *harness) do(fn func(tx *model.Tx)) {
	tx := h.comp.Begin()
	defer tx.Commit()
	fn(tx)
}

// connect runs a connection with the given device burst.
func (h *harness) connect(capability *Range[int], reported *int) {
	h.do(func(tx *model.Tx) { h.s.WillConnect(tx) })
	h.do(func(tx *model.Tx) {
		if capability != nil {
			h.s.OnDeviceCapabilityChanged(tx, *capability)
		}
		if reported != nil {
			h.s.OnDeviceSettingChanged(tx, *reported)
		}
	})
	h.host.connected = true
	h.do(func(tx *model.Tx) { h.s.ApplyPreset(tx) })
}

func (h *harness) disconnect() {
	h.host.connected = false
	h.do(func(tx *model.Tx) { h.s.Disconnect(tx) })
}

func (h *harness) deviceReports(v int) {
	h.do(func(tx *model.Tx) { h.s.OnDeviceSettingChanged(tx, v) })
}

func (h *harness) userSet(v int) SetResult {
	var r SetResult
	h.do(func(tx *model.Tx) { r = h.s.UserSet(tx, v) })
	return r
}

func ptr[T any](v T) *T { return &v }

func TestApplyPreset(t *testing.T) {
	capability := &Range[int]{Min: 0, Max: 100}

	t.Run("preset within capability converges with one command", func(t *testing.T) {
		h := newHarness(t, true)
		assert.Equal(t, SetAppliedLocally, h.userSet(40))

		h.connect(capability, ptr(10))
		assert.Equal(t, []int{40}, h.sent)

		v, _ := h.s.Value()
		assert.Equal(t, 10, v, "live stays device-reported until confirmation")
		p, ok := h.s.Pending()
		assert.True(t, ok)
		assert.Equal(t, 40, p)

		h.deviceReports(40)
		v, _ = h.s.Value()
		assert.Equal(t, 40, v)
		_, ok = h.s.Pending()
		assert.False(t, ok)
		assert.Len(t, h.sent, 1)
	})

	t.Run("preset outside capability sends nothing", func(t *testing.T) {
		h := newHarness(t, true)
		h.userSet(500)

		h.connect(capability, ptr(10))
		assert.Empty(t, h.sent)
		v, _ := h.s.Value()
		assert.Equal(t, 10, v)
	})

	t.Run("no preset adopts device value", func(t *testing.T) {
		h := newHarness(t, true)
		h.connect(capability, ptr(25))

		assert.Empty(t, h.sent)
		v, ok := h.s.Value()
		assert.True(t, ok)
		assert.Equal(t, 25, v)
	})

	t.Run("preset equal to device value", func(t *testing.T) {
		h := newHarness(t, true)
		h.userSet(25)
		h.connect(capability, ptr(25))
		assert.Empty(t, h.sent)
	})

	t.Run("unreported setting is left alone", func(t *testing.T) {
		h := newHarness(t, true)
		h.userSet(25)
		h.connect(capability, nil)
		assert.Empty(t, h.sent)
		_, ok := h.s.Value()
		assert.False(t, ok)
	})

	t.Run("applied once per connect", func(t *testing.T) {
		h := newHarness(t, true)
		h.userSet(40)
		h.connect(capability, ptr(10))
		h.do(func(tx *model.Tx) { h.s.ApplyPreset(tx) })
		assert.Len(t, h.sent, 1, "outstanding pending change must not be duplicated")
	})
}

func TestUserSetIdempotent(t *testing.T) {
	h := newHarness(t, true)
	h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))

	assert.Equal(t, SetSent, h.userSet(50))
	assert.Equal(t, SetUnchanged, h.userSet(50))
	assert.Equal(t, []int{50}, h.sent)

	h.deviceReports(50)
	assert.Equal(t, SetUnchanged, h.userSet(50))
	assert.Len(t, h.sent, 1)

	// Back to a value equal to live while a change is pending.
	assert.Equal(t, SetSent, h.userSet(60))
	assert.Equal(t, SetSent, h.userSet(50))
	assert.Equal(t, []int{50, 60, 50}, h.sent)
}

func TestUserSetResults(t *testing.T) {
	t.Run("rejected outside capability", func(t *testing.T) {
		h := newHarness(t, true)
		h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))

		assert.Equal(t, SetRejected, h.userSet(101))
		_, ok := h.s.Preset()
		assert.False(t, ok, "rejected value must not be persisted")
		assert.True(t, h.host.PresetStore().IsNew())
	})

	t.Run("transport refused", func(t *testing.T) {
		h := newHarness(t, true)
		h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))
		h.fail = true

		assert.Equal(t, SetNotSent, h.userSet(20))
		_, ok := h.s.Pending()
		assert.False(t, ok)
		p, _ := h.s.Preset()
		assert.Equal(t, 20, p, "preset is stored even when not sent")
	})

	t.Run("offline applies locally and persists", func(t *testing.T) {
		h := newHarness(t, true)
		assert.Equal(t, SetAppliedLocally, h.userSet(33))

		v, _ := h.s.Value()
		assert.Equal(t, 33, v)
		stored, err := store.ReadValue[int](h.host.PresetStore(), "bitrate")
		require.NoError(t, err)
		assert.Equal(t, 33, stored)

		got, _ := h.comp.Get(h.s.Field())
		assert.Equal(t, 33, got)
	})
}

func TestOnDeviceSettingChanged(t *testing.T) {
	h := newHarness(t, true)

	// Before DidConnect only the reported value is recorded.
	h.do(func(tx *model.Tx) {
		h.s.OnDeviceCapabilityChanged(tx, Range[int]{Min: 0, Max: 100})
		h.s.OnDeviceSettingChanged(tx, 30)
	})
	_, ok := h.s.Value()
	assert.False(t, ok)
	r, _ := h.s.Reported()
	assert.Equal(t, 30, r)

	h.host.connected = true
	h.deviceReports(31)
	v, _ := h.s.Value()
	assert.Equal(t, 31, v)

	var accepted bool
	h.do(func(tx *model.Tx) { accepted = h.s.OnDeviceSettingChanged(tx, 1000) })
	assert.False(t, accepted)
	v, _ = h.s.Value()
	assert.Equal(t, 31, v, "out of capability value is dropped")

	// Device values never reach the preset store.
	assert.True(t, h.host.PresetStore().IsNew())
}

func TestCapabilityChange(t *testing.T) {
	h := newHarness(t, true)
	h.connect(&Range[int]{Min: 0, Max: 100}, ptr(80))

	h.do(func(tx *model.Tx) { h.s.OnDeviceCapabilityChanged(tx, Range[int]{Min: 0, Max: 50}) })

	_, ok := h.s.Value()
	assert.False(t, ok, "live value outside the new capability is cleared")

	c, err := store.ReadValue[Range[int]](h.host.DeviceStore(), "bitrate"+capabilityKeySuffix)
	require.NoError(t, err)
	assert.Equal(t, Range[int]{Min: 0, Max: 50}, c)
}

func TestDisconnect(t *testing.T) {
	t.Run("with persistence", func(t *testing.T) {
		h := newHarness(t, true)
		h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))
		h.userSet(20)
		h.disconnect()

		_, ok := h.s.Value()
		assert.False(t, ok)
		_, ok = h.s.Pending()
		assert.False(t, ok)
		_, ok = h.s.Capability()
		assert.True(t, ok, "capability kept when a device store exists")
		p, _ := h.s.Preset()
		assert.Equal(t, 20, p)

		_, ok = h.comp.Get(h.s.Field())
		assert.False(t, ok)
		_, ok = h.comp.Get(h.s.CapabilityField())
		assert.True(t, ok)
	})

	t.Run("without persistence", func(t *testing.T) {
		h := newHarness(t, false)
		h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))
		h.disconnect()

		_, ok := h.s.Capability()
		assert.False(t, ok)
	})
}

func TestCapabilityRestoredBeforeFirstEvent(t *testing.T) {
	h := newHarness(t, true)
	h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))
	h.disconnect()

	// New process, same stores.
	s2 := New[int, Range[int]]("bitrate", h.host, func(int) bool { return true }, nil)
	comp := model.NewRegistry("drone-1").Add("network")
	tx := comp.Begin()
	s2.Load(tx)
	s2.WillConnect(tx)
	tx.Commit()

	c, ok := s2.Capability()
	require.True(t, ok)
	assert.Equal(t, Range[int]{Min: 0, Max: 100}, c)
	_, ok = s2.Value()
	assert.False(t, ok)
}

func TestForget(t *testing.T) {
	h := newHarness(t, true)
	h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))
	h.userSet(20)

	h.host.connected = false
	h.do(func(tx *model.Tx) { h.s.Forget(tx) })
	require.NoError(t, h.host.DeviceStore().Clear())

	_, ok := h.s.Capability()
	assert.False(t, ok)
	p, _ := h.s.Preset()
	assert.Equal(t, 20, p, "forget keeps user intent")

	s2 := New[int, Range[int]]("bitrate", h.host, func(int) bool { return true }, nil)
	tx := h.comp.Begin()
	s2.Load(tx)
	tx.Commit()
	_, ok = s2.Capability()
	assert.False(t, ok, "capability absent until re-announced")
}

func TestPresetDidChange(t *testing.T) {
	h := newHarness(t, true)
	h.userSet(40)

	h.host.profile = "outdoor"
	h.do(func(tx *model.Tx) { h.s.PresetDidChange(tx) })
	_, ok := h.s.Preset()
	assert.False(t, ok)
	h.userSet(70)

	h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))
	assert.Equal(t, []int{70}, h.sent)

	h.host.profile = "default"
	h.do(func(tx *model.Tx) { h.s.PresetDidChange(tx) })
	assert.Equal(t, []int{70, 40}, h.sent)
}

func TestUserSetSingleNotification(t *testing.T) {
	h := newHarness(t, true)
	h.connect(&Range[int]{Min: 0, Max: 100}, ptr(10))

	var changes []model.Change
	h.comp.Subscribe(model.ObserverFunc(func(_ *model.Component, ch model.Change) {
		changes = append(changes, ch)
	}))

	h.userSet(50)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Has(h.s.PendingField()))
	assert.True(t, changes[0].Has(h.s.PresetField()))
}

func TestCapabilities(t *testing.T) {
	set := NewEnumSet(3, 1, 2, 3)
	assert.Equal(t, []int{1, 2, 3}, set.Values)
	assert.True(t, set.Contains(2))
	assert.False(t, set.Contains(4))
	assert.Equal(t, 3, set.Len())

	r := Range[float32]{Min: -1, Max: 1}
	assert.True(t, r.Contains(1))
	assert.False(t, r.Contains(1.5))
	assert.Equal(t, float32(1), r.Clamp(2))
	assert.Equal(t, float32(-1), r.Clamp(-2))
	assert.True(t, r.Valid())
	assert.False(t, Range[int]{Min: 2, Max: 1}.Valid())

	assert.True(t, Any[string]{}.Contains("x"))

	assert.Equal(t, "APPLIED_LOCALLY", SetAppliedLocally.String())
	assert.Equal(t, "UNKNOWN", SetResult(42).String())
}
