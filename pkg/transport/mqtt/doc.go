// Package mqtt implements transport.Backend over an MQTT broker.
//
// Frames are the same CBOR envelopes the stream link carries, one per MQTT
// message, on two topics per device:
//
//	<prefix>/<uid>/cmd   host -> device (acknowledged commands at the
//	                     configured QoS, continuous commands at QoS 0)
//	<prefix>/<uid>/evt   device -> host
//
// The client does not reconnect on its own: a lost broker connection ends
// the backend and the connection manager dials a new one.
package mqtt
