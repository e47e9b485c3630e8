package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// mockLogger records events for testing
type mockLogger struct {
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.events = append(m.events, event)
}

func TestRecorderStampsEvents(t *testing.T) {
	mock := &mockLogger{}
	rec := &Recorder{Logger: mock, SessionID: "sess-1", DeviceID: "drone-1"}

	rec.Command(&wire.NetworkSetRoutingPolicy{Policy: 1})
	rec.NoAck(&wire.PilotingCommand{Roll: 10})
	rec.DeviceEvent(&wire.AllStatesChanged{})
	rec.State(StateEntityDevice, "", "CONNECTING", "CONNECTED", "")
	rec.Error(LayerTransport, errors.New("boom"), "send")

	if len(mock.events) != 5 {
		t.Fatalf("got %d events, want 5", len(mock.events))
	}

	wantCat := []Category{CategoryCommand, CategoryNoAck, CategoryEvent, CategoryState, CategoryError}
	for i, ev := range mock.events {
		if ev.SessionID != "sess-1" || ev.DeviceID != "drone-1" {
			t.Errorf("event %d: identity not stamped: %+v", i, ev)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d: zero timestamp", i)
		}
		if ev.Category != wantCat[i] {
			t.Errorf("event %d: category %s, want %s", i, ev.Category, wantCat[i])
		}
	}

	if got := mock.events[0].Message.Name; got != "NetworkSetRoutingPolicy" {
		t.Errorf("message name: got %q", got)
	}
	if mock.events[2].Direction != DirectionIn {
		t.Error("device event must be incoming")
	}
	if mock.events[4].Error.Message != "boom" {
		t.Errorf("error message: got %q", mock.events[4].Error.Message)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.Command(&wire.GetAllStates{})

	empty := &Recorder{}
	empty.Frame(DirectionOut, []byte{1})
}

func TestNewFrameEventTruncates(t *testing.T) {
	small := NewFrameEvent([]byte{1, 2, 3})
	if small.Size != 3 || small.Truncated || len(small.Data) != 3 {
		t.Errorf("small frame: %+v", small)
	}

	big := NewFrameEvent(make([]byte, MaxFrameData+10))
	if big.Size != MaxFrameData+10 || !big.Truncated || len(big.Data) != MaxFrameData {
		t.Errorf("big frame: size=%d truncated=%v len=%d", big.Size, big.Truncated, len(big.Data))
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	rec := &mockLogger{}
	r := &Recorder{Logger: rec, SessionID: "s"}
	r.NoAck(&wire.GimbalSetTarget{Yaw: 1.5})

	data, err := EncodeEvent(rec.events[0])
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Message == nil {
		t.Fatal("Message is nil")
	}
	if decoded.Message.Feature != uint8(wire.FeatureGimbal) || decoded.Message.Name != "GimbalSetTarget" {
		t.Errorf("message: %+v", decoded.Message)
	}
	if decoded.Message.Payload == nil {
		t.Error("payload lost")
	}
}

func TestMultiLoggerCallsAll(t *testing.T) {
	mock1 := &mockLogger{}
	mock2 := &mockLogger{}

	multi := NewMultiLogger(mock1, nil, mock2)
	multi.Log(Event{Timestamp: time.Now(), SessionID: "sess-123"})

	for i, mock := range []*mockLogger{mock1, mock2} {
		if len(mock.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(mock.events))
		}
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		Timestamp: time.Now(),
		SessionID: "0123456789abcdef",
		DeviceID:  "drone-1",
		Layer:     LayerComponent,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntitySetting,
			Name:     "network.routing",
			OldState: "AUTOMATIC",
			NewState: "CELLULAR",
		},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	want := map[string]any{
		"level":     "DEBUG",
		"msg":       "SETTING AUTOMATIC -> CELLULAR",
		"component": "protocol",
		"session":   "01234567",
		"category":  "STATE",
		"name":      "network.routing",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterWarnsOnErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{
		Timestamp: time.Now(),
		Layer:     LayerTransport,
		Category:  CategoryError,
		Error:     &ErrorEventData{Layer: LayerTransport, Message: "frame too large", Context: "read"},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["level"] != "WARN" || entry["msg"] != "frame too large" || entry["context"] != "read" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{Timestamp: time.Now(), Frame: &FrameEvent{Size: 12}})

	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestEnumStrings(t *testing.T) {
	if CategoryNoAck.String() != "NOACK" {
		t.Errorf("got %q", CategoryNoAck.String())
	}
	if Category(99).String() != "UNKNOWN" {
		t.Error("unknown category")
	}
	if StateEntityActivation.String() != "ACTIVATION" {
		t.Errorf("got %q", StateEntityActivation.String())
	}
	if Layer(9).String() != "UNKNOWN" || Direction(9).String() != "UNKNOWN" {
		t.Error("unknown layer or direction")
	}
}
