// Package buildinfo reports the version of the rewind binary.
//
// Release builds inject values via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/rewind-go/internal/infra/buildinfo.Version=v0.3.0"
//
// Development builds fall back to the VCS stamp the Go toolchain embeds.
package buildinfo
