// Package setting implements three-tier value resolution for device settings.
//
// Each setting combines:
//   - Capability: what the device supports, reported by the device and cached
//     in the device-scoped store
//   - Preset: what the user wants, stored in the preset-scoped store
//     regardless of connection state
//   - Live: what the device confirmed during the current session
//
// plus a pending change between a user request and its confirmation.
//
// On connect, ApplyPreset converges the device to the preset with at most one
// command. While connected, UserSet sends a command only when the value
// differs from the device target, so repeated requests are idempotent. While
// disconnected, UserSet applies the value locally and keeps it as preset for
// the next connection.
//
// Settings do not retry: a lost command is corrected by the next user request
// or by the next connection.
package setting
