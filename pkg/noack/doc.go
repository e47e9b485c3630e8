// Package noack encodes continuous, non-acknowledged commands.
//
// Motion-style controls (gimbal targets, piloting inputs) are not confirmed
// by the device. Instead of sending once and waiting, the transport polls an
// Encoder at a fixed cadence and the encoder decides whether to transmit:
//
//   - a new desired state is transmitted on the next poll and repeated up to
//     the repeat budget (default 10 transmissions)
//   - a sustained state (for example a nonzero velocity) is repeated for as
//     long as it stays desired
//   - once the budget is exhausted the encoder stays silent until the desired
//     state changes
//
// Producers update the desired state from the model-update schedule; Encode
// runs on the transmit schedule. The two only share a mutex held to copy
// values.
package noack
