package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// record is the flat export form of an event: enums as names, one level of
// nesting at most.
type record struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	Direction string    `json:"direction"`
	Layer     string    `json:"layer"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`

	Feature   string `json:"feature,omitempty"`
	featureID int
	Name      string `json:"name,omitempty"`
	Size      int    `json:"size,omitempty"`
	Payload   any    `json:"payload,omitempty"`

	Entity   string `json:"entity,omitempty"`
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Error   string `json:"error,omitempty"`
	Context string `json:"context,omitempty"`
}

func newRecord(event log.Event) record {
	r := record{
		Time:      event.Timestamp.UTC(),
		SessionID: event.SessionID,
		DeviceID:  event.DeviceID,
		Direction: event.Direction.String(),
		Layer:     event.Layer.String(),
		Category:  event.Category.String(),
		Type:      typeLabel(event),
		featureID: -1,
	}
	switch {
	case event.Frame != nil:
		r.Size = event.Frame.Size
	case event.Message != nil:
		m := event.Message
		r.Feature = wire.FeatureID(m.Feature).String()
		r.featureID = int(m.Feature)
		r.Name = m.Name
		r.Payload = jsonSafe(m.Payload)
	case event.StateChange != nil:
		sc := event.StateChange
		r.Entity = sc.Entity.String()
		r.Name = sc.Name
		r.OldState, r.NewState, r.Reason = sc.OldState, sc.NewState, sc.Reason
	case event.Error != nil:
		r.Error = event.Error.Message
		r.Context = event.Error.Context
	}
	return r
}

// RunExport writes the events matching opts as JSON lines or CSV, to
// output or stdout.
func RunExport(path, format, output string, opts FilterOptions) (err error) {
	write, ok := exporters[format]
	if !ok {
		return fmt.Errorf("unknown format %q (supported: jsonl, csv)", format)
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	reader, err := openCapture(path, filter)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer reader.Close()

	w := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return write(reader, w)
}

var exporters = map[string]func(*log.Reader, io.Writer) error{
	"jsonl": exportJSONL,
	"csv":   exportCSV,
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	return forEach(reader, func(event log.Event) error {
		return enc.Encode(newRecord(event))
	})
}

var csvHeader = []string{"timestamp", "session_id", "direction", "layer", "category", "device_id", "type", "feature", "size"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	err := forEach(reader, func(event log.Event) error {
		r := newRecord(event)
		var feature, size string
		if r.featureID >= 0 {
			feature = strconv.Itoa(r.featureID)
		}
		if event.Frame != nil {
			size = strconv.Itoa(r.Size)
		}
		return cw.Write([]string{
			r.Time.Format(timeLayout), r.SessionID, r.Direction, r.Layer,
			r.Category, r.DeviceID, r.Type, feature, size,
		})
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
