package domain

// Entry is one immutable journal record. The set of implementations is
// closed: the unexported marker keeps other packages from adding variants,
// so a type switch over the types in entries.go is exhaustive.
//
// Entries own their payloads. Callers that keep an entry past the call that
// processed it must not mutate its byte slices.
type Entry interface {
	// Kind returns the wire tag of the variant.
	Kind() Kind
	// Validate checks the payload for structural errors and returns an
	// ErrDecode DomainError when it is malformed.
	Validate() error

	entry()
}

// IsEthereal reports whether an entry's effect lands on execution-local
// bookkeeping rather than (only) durable state. fd-write is ethereal when it
// targets a standard stream, which depends on replay state; callers pass
// routed=true in that case.
func IsEthereal(e Entry, routed bool) bool {
	switch e.Kind() {
	case KindSetThread, KindCloseThread,
		KindMarkStandardStream, KindUnmarkStandardStream,
		KindUpdateMemoryRegion:
		return true
	case KindFileDescriptorWrite:
		return routed
	default:
		return false
	}
}
