// Package config loads the host configuration from a YAML file.
//
// Load starts from Default, overlays the file, applies POD_* environment
// overrides and validates the result. Command-line flags are applied by the
// binaries on top of the loaded Config.
package config
