// Package wire defines the CBOR wire format for commands and events exchanged
// with a connected device.
//
// Every frame is an Envelope carrying a feature id, a message id and the
// CBOR-encoded payload of one typed message. Message ids below 0x80 are
// commands (host to device), ids from 0x80 are events (device to host).
//
// # Message Families
//
// Events are grouped by feature. Each family has its own sealed interface
// (NetworkEvent, GimbalEvent, RecorderEvent, StereoEvent, FollowMeEvent) so a
// controller can match every variant of its family exhaustively. A frame whose
// feature or message id is not known decodes to *UnknownEvent, which callers
// handle as a distinct case.
//
// # Enumerants
//
// Enumerated values travel as raw integers. Mapping them to domain types is
// the job of the peripheral controllers, which is where values unknown to this
// host version get dropped.
//
// # CBOR Integer Keys
//
// All payload maps use integer keys for compactness.
package wire
