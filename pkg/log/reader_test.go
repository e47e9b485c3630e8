package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, ev)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gimbal := uint8(0x11)

	events := []Event{
		{Timestamp: base, SessionID: "s1", DeviceID: "drone-1", Direction: DirectionOut, Layer: LayerWire, Category: CategoryNoAck,
			Message: &MessageEvent{Feature: 0x11, Message: 0x01, Name: "GimbalSetTarget"}},
		{Timestamp: base.Add(time.Second), SessionID: "s1", DeviceID: "drone-1", Direction: DirectionIn, Layer: LayerWire, Category: CategoryEvent,
			Message: &MessageEvent{Feature: 0x10, Message: 0x80, Name: "NetworkState"}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "s2", DeviceID: "drone-2", Direction: DirectionIn, Layer: LayerComponent, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityDevice, NewState: "CONNECTED"}},
	}
	path := createTestLogFile(t, events)

	dirIn := DirectionIn
	layerWire := LayerWire
	catState := CategoryState
	end := base.Add(2 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"session", Filter{SessionID: "s1"}, 2},
		{"device", Filter{DeviceID: "drone-2"}, 1},
		{"direction", Filter{Direction: &dirIn}, 2},
		{"layer", Filter{Layer: &layerWire}, 2},
		{"category", Filter{Category: &catState}, 1},
		{"feature", Filter{Feature: &gimbal}, 1},
		{"time window", Filter{TimeStart: &base, TimeEnd: &end}, 2},
		{"no match", Filter{SessionID: "nope"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()

			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), SessionID: "s1"},
		{Timestamp: time.Now(), SessionID: "s2"},
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	got := readAll(t, r)
	if len(got) != 1 || got[0].SessionID != "s1" {
		t.Errorf("got %+v, want only s1", got)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.plog")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStreamReader(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), SessionID: "s1", Category: CategoryEvent},
		{Timestamp: time.Now(), SessionID: "s1", Category: CategoryError},
	})
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	cat := CategoryError
	r := NewStreamReader(f, Filter{Category: &cat})
	got := readAll(t, r)
	if len(got) != 1 || got[0].Category != CategoryError {
		t.Errorf("got %+v, want the error event", got)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := f.Close(); err == nil {
		t.Error("Close did not close the source")
	}
}
