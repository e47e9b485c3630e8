// Package log provides structured protocol capture for device sessions.
//
// It is separate from operational logging (slog): protocol capture records a
// machine-readable trace of every frame, decoded message and state transition
// of a device, which the pod-log tool can replay and filter.
//
// # Basic Usage
//
//	// During development: log to console via slog
//	ctrl := device.NewController(uid, device.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// In the field: write to a binary file
//	fl, _ := log.NewFileLogger("/var/log/pod/drone.plog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded commands and events (MessageEvent)
//   - Component: device, component, setting and activation transitions
//     (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .plog extension.
package log
