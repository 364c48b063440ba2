package ethereal

import (
	"slices"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Roster is the set of threads known to be alive in the current segment,
// each with the latest durable context its set-thread entry carried.
type Roster struct {
	threads map[domain.ThreadID]domain.ThreadState
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{threads: make(map[domain.ThreadID]domain.ThreadState)}
}

// RecordSpawn adds id, or replaces its state when already present.
// The state is copied.
func (r *Roster) RecordSpawn(id domain.ThreadID, state domain.ThreadState) {
	r.threads[id] = state.Clone()
}

// RecordExit removes id and reports whether it was present. An exit for an
// unknown thread is not an error; the caller decides how to surface it.
func (r *Roster) RecordExit(id domain.ThreadID) bool {
	if _, ok := r.threads[id]; !ok {
		return false
	}
	delete(r.threads, id)
	return true
}

// Has reports whether id is in the roster.
func (r *Roster) Has(id domain.ThreadID) bool {
	_, ok := r.threads[id]
	return ok
}

// Reset empties the roster.
func (r *Roster) Reset() {
	clear(r.threads)
}

// Len returns the number of threads.
func (r *Roster) Len() int { return len(r.threads) }

// IDs returns the thread ids in ascending order.
func (r *Roster) IDs() []domain.ThreadID {
	ids := make([]domain.ThreadID, 0, len(r.threads))
	for id := range r.threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Threads returns copies of every thread, sorted by id.
func (r *Roster) Threads() []domain.Thread {
	ids := r.IDs()
	out := make([]domain.Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Thread{ID: id, State: r.threads[id].Clone()})
	}
	return out
}
