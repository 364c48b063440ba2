// Package config provides the rewind configuration.
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation
//   - sanitize.go: Masking for display
//   - load.go: Layered loading through internal/infra/confloader
//   - keys.go: Cipher construction from the configured key file
package config
