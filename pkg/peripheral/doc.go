// Package peripheral implements the device components built on the setting
// layer: network control, flight camera recorder, gimbal and stereo vision
// sensor.
//
// Each component embeds device.Base, owns one model.Component and handles
// the events of its protocol feature. Settings follow the three-tier
// resolution of package setting. Values that exist only while connected
// (link status, attitude, calibration progress) are plain model fields
// cleared on disconnect.
//
// User calls are safe from any goroutine: they run on the controller
// schedule.
package peripheral

import "github.com/Pix4D/pod-arsdkengine/pkg/model"

// Component kinds.
const (
	KindNetwork  model.Kind = "network"
	KindRecorder model.Kind = "recorder"
	KindGimbal   model.Kind = "gimbal"
	KindStereo   model.Kind = "stereo_vision"
)
