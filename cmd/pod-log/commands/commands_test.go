package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

var ts = time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)

func testEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: ts,
			SessionID: "1111aaaa-session",
			DeviceID:  "drone-1",
			Direction: log.DirectionOut,
			Layer:     log.LayerTransport,
			Category:  log.CategoryCommand,
			Frame:     &log.FrameEvent{Size: 12, Data: []byte{0xa1, 0x01}},
		},
		{
			Timestamp: ts.Add(10 * time.Millisecond),
			SessionID: "1111aaaa-session",
			DeviceID:  "drone-1",
			Direction: log.DirectionOut,
			Layer:     log.LayerWire,
			Category:  log.CategoryNoAck,
			Message:   log.NewMessageEvent(&wire.GimbalSetTarget{Yaw: 1}),
		},
		{
			Timestamp: ts.Add(20 * time.Millisecond),
			SessionID: "1111aaaa-session",
			DeviceID:  "drone-1",
			Direction: log.DirectionIn,
			Layer:     log.LayerWire,
			Category:  log.CategoryEvent,
			Message:   log.NewMessageEvent(&wire.AllStatesChanged{}),
		},
		{
			Timestamp: ts.Add(2 * time.Second),
			SessionID: "2222bbbb-session",
			DeviceID:  "drone-1",
			Layer:     log.LayerComponent,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityActivation,
				Name:     "follow_me",
				OldState: "IDLE",
				NewState: "ACTIVE",
				Reason:   "activation requested",
			},
		},
		{
			Timestamp: ts.Add(3 * time.Second),
			SessionID: "2222bbbb-session",
			Layer:     log.LayerTransport,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Layer: log.LayerTransport, Message: "frame too large", Context: "read"},
		},
	}
}

func TestShowFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, testEvents())

	var buf bytes.Buffer
	if err := RunShow(path, FilterOptions{}, &buf); err != nil {
		t.Fatalf("RunShow failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-03-12T09:30:00.000000Z [sess:1111aaaa] OUT TRANSPORT Frame",
		"Size: 12 bytes",
		"Data: a101",
		"GimbalSetTarget",
		"Feature: Gimbal",
		"Payload:",
		"AllStatesChanged",
		"Entity: ACTIVATION follow_me",
		"IDLE -> ACTIVE",
		"Reason: activation requested",
		"Message: frame too large",
		"Context: read",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestShowFilters(t *testing.T) {
	path := createTestLogFile(t, testEvents())

	var buf bytes.Buffer
	opts := FilterOptions{Layer: "wire", Feature: "gimbal"}
	if err := RunShow(path, opts, &buf); err != nil {
		t.Fatalf("RunShow failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "GimbalSetTarget") {
		t.Error("expected the gimbal message")
	}
	if strings.Contains(out, "AllStatesChanged") || strings.Contains(out, "Frame") {
		t.Errorf("unexpected events in output:\n%s", out)
	}
}

func TestFilterOptionsRejectInvalid(t *testing.T) {
	cases := []FilterOptions{
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "message"},
		{Feature: "camera"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	}
	for _, opts := range cases {
		if _, err := opts.Build(); err == nil {
			t.Errorf("Build(%+v) expected error", opts)
		}
	}
}

func TestFilterOptionsBuild(t *testing.T) {
	opts := FilterOptions{
		SessionID: "abc",
		Layer:     "COMPONENT",
		Direction: "in",
		Category:  "noack",
		Feature:   "FollowMe",
		TimeStart: "2026-03-12T09:30:00Z",
	}
	f, err := opts.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if f.SessionID != "abc" {
		t.Errorf("SessionID = %q", f.SessionID)
	}
	if f.Layer == nil || *f.Layer != log.LayerComponent {
		t.Errorf("Layer = %v", f.Layer)
	}
	if f.Direction == nil || *f.Direction != log.DirectionIn {
		t.Errorf("Direction = %v", f.Direction)
	}
	if f.Category == nil || *f.Category != log.CategoryNoAck {
		t.Errorf("Category = %v", f.Category)
	}
	if f.Feature == nil || *f.Feature != uint8(wire.FeatureFollowMe) {
		t.Errorf("Feature = %v", f.Feature)
	}
	if f.TimeStart == nil || !f.TimeStart.Equal(ts) {
		t.Errorf("TimeStart = %v", f.TimeStart)
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, testEvents())

	var buf bytes.Buffer
	if err := RunStats(path, FilterOptions{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total Events: 5",
		"TRANSPORT:",
		"WIRE:",
		"COMPONENT:",
		"NOACK:",
		"GimbalSetTarget:",
		"Sessions: 2",
		"[1111aaaa] 3 events",
		"Device: drone-1",
		"Frames: 12 bytes",
		"Continuous commands: 1",
		"Errors: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestStatsWithFilter(t *testing.T) {
	path := createTestLogFile(t, testEvents())

	var buf bytes.Buffer
	if err := RunStats(path, FilterOptions{SessionID: "2222bbbb-session"}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Total Events: 2") {
		t.Errorf("expected 2 events:\n%s", out)
	}
	if !strings.Contains(out, "Sessions: 1") {
		t.Errorf("expected 1 session:\n%s", out)
	}
}

func TestStatsEmpty(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, FilterOptions{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Error("expected zero events")
	}
}

func TestFilterWritesCapture(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	output := filepath.Join(t.TempDir(), "out.cbor")

	var buf bytes.Buffer
	if err := RunFilter(path, output, FilterOptions{Direction: "out"}, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected summary: %s", buf.String())
	}

	reader, err := log.NewReader(output)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	count := 0
	if err := forEach(reader, func(e log.Event) error {
		if e.Direction != log.DirectionOut {
			t.Errorf("unexpected direction %s", e.Direction)
		}
		count++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("read %d events, want 2", count)
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	output := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", output, FilterOptions{Layer: "wire"}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := map[string]any{
		"session_id": "1111aaaa-session",
		"layer":      "WIRE",
		"category":   "NOACK",
		"name":       "GimbalSetTarget",
		"feature":    "Gimbal",
	}
	for k, v := range want {
		if ev[k] != v {
			t.Errorf("%s = %v, want %v", k, ev[k], v)
		}
	}
	if _, ok := ev["payload"].(map[string]any); !ok {
		t.Errorf("payload = %T, want an object", ev["payload"])
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	output := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", output, FilterOptions{}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want header + 5", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][8] != "12" {
		t.Errorf("frame size = %q", records[1][8])
	}
	if records[2][6] != "GimbalSetTarget" || records[2][7] != "17" {
		t.Errorf("message row = %v", records[2])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out"), FilterOptions{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestJSONSafe(t *testing.T) {
	v := jsonSafe(map[any]any{uint64(1): []any{map[any]any{"a": 1}}})
	if _, err := json.Marshal(v); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
}
