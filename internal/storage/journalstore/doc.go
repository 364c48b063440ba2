// Package journalstore keeps journals in a Badger database so many logs can
// be imported once and replayed from any sequence number.
//
// Key layout:
//
//	j/<log>/<seq:8 big-endian> -> [kind:2][payload]
//
// Sequence numbers start at 0 and equal the entry's log position, so a
// replay that resumes from a checkpoint reads from the stored position.
package journalstore
