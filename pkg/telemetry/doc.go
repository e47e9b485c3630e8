// Package telemetry exports device state to InfluxDB.
//
// A Sink observes the model registry of a device and turns committed batches
// into points: gimbal attitude per frame, network link quality and component
// publication changes. Point building is pure; see Points.
package telemetry
