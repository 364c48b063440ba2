// Package journalfile reads and writes journals as append-only files.
//
// Format:
//
//	[magic:8 "RWNDJRNL"][version:1][flags:1]
//	[Frame]*
//
// Frame wire format:
//
//	[Length:4][CRC32:4][Kind:2][Payload:Length-2]
//
// Where:
//   - Length = Kind + Payload (big-endian uint32)
//   - CRC32 covers Kind+Payload as stored (IEEE)
//   - Payload is the protobuf-wire encoding from package codec, sealed with
//     an adaptive.Cipher when flags bit 0 is set; the kind bytes are the
//     additional data
//
// A recorder that crashes mid-append leaves a partial frame at the end of the
// file. Readers report it as a decode error unless torn tails are allowed;
// writers reopening the file truncate it.
package journalfile
