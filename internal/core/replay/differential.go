package replay

import "github.com/yndnr/rewind-go/internal/core/domain"

// Differential receives the ethereal-affecting entries of the current
// segment as they are applied. It is cleared whenever a clear-ethereal
// entry is processed, so its contents never span a segment boundary.
type Differential interface {
	Record(e domain.Entry)
	Clear()
}

// Collector is a Differential that keeps the entries in a slice.
type Collector struct {
	entries []domain.Entry
}

// Record appends e.
func (c *Collector) Record(e domain.Entry) { c.entries = append(c.entries, e) }

// Clear drops every recorded entry.
func (c *Collector) Clear() { c.entries = nil }

// Entries returns the recorded entries in application order.
func (c *Collector) Entries() []domain.Entry { return c.entries }

// Len returns the number of recorded entries.
func (c *Collector) Len() int { return len(c.entries) }
