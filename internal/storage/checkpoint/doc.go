// Package checkpoint persists durable process images taken at segment
// boundaries so a restore can resume a journal from the middle.
//
// File format:
//
//	ckpt-<ulid>.ckpt
//	[magic:8 "RWNDCKPT"]
//	[header length:4][header JSON]
//	[image length:8][image JSON, sealed when the header says so]
//	[checksum:32 SHA-256 of all bytes above]
//
// A sealed image uses the header JSON as additional data, so the header
// cannot be swapped between files. Files are written to a temporary name and
// renamed into place.
package checkpoint
