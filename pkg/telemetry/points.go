package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/peripheral"
)

// Measurements written by the sink.
const (
	MeasurementGimbalAttitude = "gimbal_attitude"
	MeasurementNetworkLink    = "network_link"
	MeasurementComponentState = "component_state"
)

// Points builds the points of one committed batch. It reads the values from
// c, so it must run from the change notification of that batch.
func Points(c *model.Component, ch model.Change, now time.Time) []*write.Point {
	tags := map[string]string{
		"device":    c.DeviceUID(),
		"component": string(c.Kind()),
	}

	var points []*write.Point
	if ch.PublicationChanged {
		points = append(points, write.NewPoint(MeasurementComponentState, tags,
			map[string]any{"published": ch.Published}, now))
	}

	switch c.Kind() {
	case peripheral.KindGimbal:
		for _, f := range []peripheral.Frame{peripheral.FrameRelative, peripheral.FrameAbsolute} {
			field := attitudeField(f)
			if !ch.Has(field) {
				continue
			}
			att, ok := model.Value[peripheral.AxisValues](c, field)
			if !ok {
				continue
			}
			points = append(points, write.NewPoint(MeasurementGimbalAttitude,
				withTag(tags, "frame", f.String()), attitudeFields(att), now))
		}
	case peripheral.KindNetwork:
		if !ch.Has(peripheral.FieldLinkQuality) && !ch.Has(peripheral.FieldCurrentLink) {
			break
		}
		fields := map[string]any{}
		if q, ok := model.Value[int](c, peripheral.FieldLinkQuality); ok {
			fields["quality"] = q
		}
		if len(fields) == 0 {
			break
		}
		lt := withTag(tags, "link", "none")
		if l, ok := model.Value[peripheral.LinkType](c, peripheral.FieldCurrentLink); ok {
			lt["link"] = l.String()
		}
		points = append(points, write.NewPoint(MeasurementNetworkLink, lt, fields, now))
	}
	return points
}

func attitudeField(f peripheral.Frame) model.Field {
	if f == peripheral.FrameAbsolute {
		return peripheral.FieldAbsoluteAttitude
	}
	return peripheral.FieldRelativeAttitude
}

func attitudeFields(v peripheral.AxisValues) map[string]any {
	fields := make(map[string]any, len(peripheral.Axes))
	for _, a := range peripheral.Axes {
		fields[a.String()] = v[a]
	}
	return fields
}

func withTag(tags map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for tk, tv := range tags {
		out[tk] = tv
	}
	out[k] = v
	return out
}
