package domain

import "strconv"

// FormatVersion is the version of the entry model. Adding, removing or
// renumbering a Kind is a breaking change and must bump this value.
const FormatVersion = 1

// Kind identifies the variant of a journal entry. The numeric values are
// wire tags and never change once released.
type Kind uint16

const (
	KindUnspecified             Kind = 0
	KindInitModule              Kind = 1
	KindClearEthereal           Kind = 2
	KindUpdateMemoryRegion      Kind = 3
	KindProcessExit             Kind = 4
	KindSetThread               Kind = 5
	KindCloseThread             Kind = 6
	KindOpenFileDescriptor      Kind = 7
	KindCloseFileDescriptor     Kind = 8
	KindRenumberFileDescriptor  Kind = 9
	KindDuplicateFileDescriptor Kind = 10
	KindFileDescriptorSeek      Kind = 11
	KindFileDescriptorWrite     Kind = 12
	KindMarkStandardStream      Kind = 13
	KindUnmarkStandardStream    Kind = 14
	KindSnapshot                Kind = 15
)

var kindNames = map[Kind]string{
	KindInitModule:              "init-module",
	KindClearEthereal:           "clear-ethereal",
	KindUpdateMemoryRegion:      "update-memory-region",
	KindProcessExit:             "process-exit",
	KindSetThread:               "set-thread",
	KindCloseThread:             "close-thread",
	KindOpenFileDescriptor:      "open-fd",
	KindCloseFileDescriptor:     "close-fd",
	KindRenumberFileDescriptor:  "renumber-fd",
	KindDuplicateFileDescriptor: "duplicate-fd",
	KindFileDescriptorSeek:      "fd-seek",
	KindFileDescriptorWrite:     "fd-write",
	KindMarkStandardStream:      "mark-standard-stream",
	KindUnmarkStandardStream:    "unmark-standard-stream",
	KindSnapshot:                "snapshot",
}

// String returns the stable name of the kind, or "kind(<n>)" when unknown.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Known reports whether k is part of the closed set of this FormatVersion.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind validates a wire tag. Unknown tags fail with ErrUnknownEntryKind;
// they are never skipped.
func ParseKind(tag uint16) (Kind, error) {
	k := Kind(tag)
	if !k.Known() {
		return KindUnspecified, ErrUnknownEntryKind.WithDetailsf("tag %d (format version %d)", tag, FormatVersion)
	}
	return k, nil
}

// Kinds returns every known kind in tag order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindInitModule; k <= KindSnapshot; k++ {
		out = append(out, k)
	}
	return out
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
