package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// FilterOptions holds the filter flags shared by all commands.
type FilterOptions struct {
	SessionID string
	DeviceID  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Feature   string
}

// Build turns the flag values into a log filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		SessionID: o.SessionID,
		DeviceID:  o.DeviceID,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := parseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if o.Feature != "" {
		f, err := parseFeature(o.Feature)
		if err != nil {
			return log.Filter{}, err
		}
		id := uint8(f)
		filter.Feature = &id
	}
	return filter, nil
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "component":
		return log.LayerComponent, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or component)", s)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

var categories = []log.Category{
	log.CategoryCommand,
	log.CategoryEvent,
	log.CategoryNoAck,
	log.CategoryState,
	log.CategoryError,
}

func parseCategory(s string) (log.Category, error) {
	for _, c := range categories {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid category: %s (must be command, event, noack, state, or error)", s)
}

var features = []wire.FeatureID{
	wire.FeatureCommon,
	wire.FeatureNetwork,
	wire.FeatureGimbal,
	wire.FeatureRecorder,
	wire.FeatureStereo,
	wire.FeatureFollowMe,
	wire.FeaturePiloting,
}

func parseFeature(s string) (wire.FeatureID, error) {
	for _, f := range features {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("invalid feature: %s", s)
}

// RunFilter copies the events matching opts into a new capture file.
func RunFilter(path, output string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	reader, err := openCapture(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	err = forEach(reader, func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	if cerr := logger.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}

// forEach calls fn for every event until EOF.
func forEach(reader *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// openCapture opens the capture at path, or stdin when path is "-".
func openCapture(path string, filter log.Filter) (*log.Reader, error) {
	if path == "-" {
		return log.NewStreamReader(io.NopCloser(os.Stdin), filter), nil
	}
	return log.NewFilteredReader(path, filter)
}
