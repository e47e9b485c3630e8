// Package transport carries commands to a device and events back.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   CBOR Envelope (pkg/wire)     │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   TCP, pipe or MQTT topic      │
//	└────────────────────────────────┘
//
// A Backend has two outgoing paths:
//
//   - Send enqueues one acknowledged command. It only reports local enqueue
//     success; the device answers with events.
//   - Registered non-acknowledged encoders are polled once per transmit tick
//     (default 25ms). Each registration holds exactly one encoder.
//
// Events are handed to an EventHandler one at a time, in arrival order,
// from a single goroutine.
//
// Dial and Listen open the TCP streams a Link runs over; Listen is the
// device end, used by the simulator. The mqtt subpackage provides the same
// Backend over an MQTT broker.
package transport
