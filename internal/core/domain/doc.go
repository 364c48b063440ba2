// Package domain defines the core domain models for Rewind.
//
// Domain models are pure values without any IO dependencies. This package
// contains:
//
//   - Entry: the closed set of journal entry variants and their kinds
//   - Process: descriptors, streams, threads and the durable process image
//   - Errors: domain error codes shared by every layer
//
// Adding or renumbering an entry kind is a format change; FormatVersion
// must be bumped with it.
package domain
