// Package codec encodes journal entry payloads in the protobuf wire format.
//
// The entry kind is never part of the payload: storage layers frame it
// separately and hand it back to Unmarshal, which validates the kind before
// looking at the payload. Unknown fields inside a known kind are skipped.
package codec

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Marshal encodes the payload of e.
func Marshal(e domain.Entry) ([]byte, error) {
	return AppendPayload(nil, e)
}

// AppendPayload appends the encoded payload of e to b.
func AppendPayload(b []byte, e domain.Entry) ([]byte, error) {
	switch e := e.(type) {
	case domain.InitModule:
		b = appendBytes(b, 1, e.ModuleHash)
		b = appendVarint(b, 2, e.MemorySize)
	case domain.ClearEthereal:
	case domain.UpdateMemoryRegion:
		b = appendVarint(b, 1, e.Offset)
		b = appendBytes(b, 2, e.Data)
	case domain.ProcessExit:
		b = appendVarint(b, 1, uint64(e.ExitCode))
	case domain.SetThread:
		b = appendVarint(b, 1, uint64(e.ID))
		b = appendBytes(b, 2, e.State.CallStack)
		b = appendBytes(b, 3, e.State.MemoryStack)
		b = appendBytes(b, 4, e.State.StoreData)
		b = appendVarint(b, 5, protowire.EncodeBool(e.State.Is64Bit))
	case domain.CloseThread:
		b = appendVarint(b, 1, uint64(e.ID))
		b = appendVarint(b, 2, uint64(e.ExitCode))
	case domain.OpenFileDescriptor:
		b = appendVarint(b, 1, uint64(e.FD))
		b = appendVarint(b, 2, uint64(e.Descriptor.Type))
		b = appendBytes(b, 3, []byte(e.Descriptor.Path))
		b = appendVarint(b, 4, uint64(e.Descriptor.Flags))
	case domain.CloseFileDescriptor:
		b = appendVarint(b, 1, uint64(e.FD))
	case domain.RenumberFileDescriptor:
		b = appendVarint(b, 1, uint64(e.From))
		b = appendVarint(b, 2, uint64(e.To))
	case domain.DuplicateFileDescriptor:
		b = appendVarint(b, 1, uint64(e.Original))
		b = appendVarint(b, 2, uint64(e.Copied))
	case domain.FileDescriptorSeek:
		b = appendVarint(b, 1, uint64(e.FD))
		b = appendVarint(b, 2, protowire.EncodeZigZag(e.Offset))
		b = appendVarint(b, 3, uint64(e.Whence))
	case domain.FileDescriptorWrite:
		b = appendVarint(b, 1, uint64(e.FD))
		b = appendVarint(b, 2, e.Offset)
		b = appendBytes(b, 3, e.Data)
	case domain.MarkStandardStream:
		b = appendVarint(b, 1, uint64(e.FD))
		b = appendVarint(b, 2, uint64(e.Stream))
	case domain.UnmarkStandardStream:
		b = appendVarint(b, 1, uint64(e.FD))
	case domain.Snapshot:
		b = appendVarint(b, 1, protowire.EncodeZigZag(e.Timestamp))
		b = appendVarint(b, 2, uint64(e.Trigger))
	default:
		return nil, domain.ErrUnknownEntryKind.WithDetailsf("cannot encode %T", e)
	}
	return b, nil
}

// Unmarshal decodes a payload of the given kind and validates the result.
func Unmarshal(kind domain.Kind, payload []byte) (domain.Entry, error) {
	if !kind.Known() {
		return nil, domain.ErrUnknownEntryKind.WithDetailsf("tag %d", uint16(kind))
	}
	f, err := parseFields(payload)
	if err != nil {
		return nil, err
	}

	var e domain.Entry
	switch kind {
	case domain.KindInitModule:
		e = domain.InitModule{ModuleHash: f.bytes(1), MemorySize: f.varint(2)}
	case domain.KindClearEthereal:
		e = domain.ClearEthereal{}
	case domain.KindUpdateMemoryRegion:
		e = domain.UpdateMemoryRegion{Offset: f.varint(1), Data: f.bytes(2)}
	case domain.KindProcessExit:
		e = domain.ProcessExit{ExitCode: f.u32(1)}
	case domain.KindSetThread:
		e = domain.SetThread{
			ID: domain.ThreadID(f.u32(1)),
			State: domain.ThreadState{
				CallStack:   f.bytes(2),
				MemoryStack: f.bytes(3),
				StoreData:   f.bytes(4),
				Is64Bit:     protowire.DecodeBool(f.varint(5)),
			},
		}
	case domain.KindCloseThread:
		e = domain.CloseThread{ID: domain.ThreadID(f.u32(1)), ExitCode: f.u32(2)}
	case domain.KindOpenFileDescriptor:
		e = domain.OpenFileDescriptor{
			FD: domain.FD(f.u32(1)),
			Descriptor: domain.Descriptor{
				Type:  domain.DescriptorType(f.u8(2)),
				Path:  string(f.bytes(3)),
				Flags: f.u32(4),
			},
		}
	case domain.KindCloseFileDescriptor:
		e = domain.CloseFileDescriptor{FD: domain.FD(f.u32(1))}
	case domain.KindRenumberFileDescriptor:
		e = domain.RenumberFileDescriptor{From: domain.FD(f.u32(1)), To: domain.FD(f.u32(2))}
	case domain.KindDuplicateFileDescriptor:
		e = domain.DuplicateFileDescriptor{Original: domain.FD(f.u32(1)), Copied: domain.FD(f.u32(2))}
	case domain.KindFileDescriptorSeek:
		e = domain.FileDescriptorSeek{
			FD:     domain.FD(f.u32(1)),
			Offset: protowire.DecodeZigZag(f.varint(2)),
			Whence: domain.Whence(f.u8(3)),
		}
	case domain.KindFileDescriptorWrite:
		e = domain.FileDescriptorWrite{FD: domain.FD(f.u32(1)), Offset: f.varint(2), Data: f.bytes(3)}
	case domain.KindMarkStandardStream:
		e = domain.MarkStandardStream{FD: domain.FD(f.u32(1)), Stream: domain.Stream(f.u8(2))}
	case domain.KindUnmarkStandardStream:
		e = domain.UnmarkStandardStream{FD: domain.FD(f.u32(1))}
	case domain.KindSnapshot:
		e = domain.Snapshot{Timestamp: protowire.DecodeZigZag(f.varint(1)), Trigger: domain.SnapshotTrigger(f.u8(2))}
	}

	if f.err != nil {
		return nil, f.err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordHeaderSize is the size of the kind prefix written by EncodeRecord.
const RecordHeaderSize = 2

// EncodeRecord returns [kind:2 big-endian][payload].
func EncodeRecord(e domain.Entry) ([]byte, error) {
	b := binary.BigEndian.AppendUint16(make([]byte, 0, 64), uint16(e.Kind()))
	return AppendPayload(b, e)
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(b []byte) (domain.Entry, error) {
	if len(b) < RecordHeaderSize {
		return nil, domain.ErrDecode.WithDetailsf("record of %d bytes has no kind", len(b))
	}
	kind, err := domain.ParseKind(binary.BigEndian.Uint16(b))
	if err != nil {
		return nil, err
	}
	return Unmarshal(kind, b[RecordHeaderSize:])
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// fields holds the scalar and length-delimited fields of one payload.
// Field accessors record the first range error in err.
type fields struct {
	varints map[protowire.Number]uint64
	blobs   map[protowire.Number][]byte
	err     error
}

func parseFields(b []byte) (*fields, error) {
	f := &fields{
		varints: make(map[protowire.Number]uint64),
		blobs:   make(map[protowire.Number][]byte),
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeError(n)
			}
			f.varints[num] = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeError(n)
			}
			f.blobs[num] = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeError(n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

func decodeError(n int) error {
	return domain.ErrDecode.WithCause(protowire.ParseError(n))
}

func (f *fields) varint(num protowire.Number) uint64 { return f.varints[num] }

func (f *fields) bytes(num protowire.Number) []byte { return f.blobs[num] }

func (f *fields) u32(num protowire.Number) uint32 {
	v := f.varints[num]
	if v > math.MaxUint32 && f.err == nil {
		f.err = domain.ErrDecode.WithDetailsf("field %d: %d overflows uint32", num, v)
	}
	return uint32(v)
}

func (f *fields) u8(num protowire.Number) uint8 {
	v := f.varints[num]
	if v > math.MaxUint8 && f.err == nil {
		f.err = domain.ErrDecode.WithDetailsf("field %d: %d overflows uint8", num, v)
	}
	return uint8(v)
}
