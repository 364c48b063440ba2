package cmap

import "iter"

// All returns an iterator over every key-value pair. Each shard is read
// locked while its items are yielded, so the loop body must not write to
// the map.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, s := range m.shards {
			s.mu.RLock()
			for k, v := range s.items {
				if !yield(k, v) {
					s.mu.RUnlock()
					return
				}
			}
			s.mu.RUnlock()
		}
	}
}

// Keys returns all keys.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// Values returns all values.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	for _, v := range m.All() {
		values = append(values, v)
	}
	return values
}

// DeleteFunc removes every entry for which del returns true and reports
// how many were removed.
func (m *Map[K, V]) DeleteFunc(del func(K, V) bool) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if del(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// ShardStats reports the size of one shard.
type ShardStats struct {
	Index int
	Count int
}

// Stats returns the size of every shard.
func (m *Map[K, V]) Stats() []ShardStats {
	stats := make([]ShardStats, len(m.shards))
	for i, s := range m.shards {
		s.mu.RLock()
		stats[i] = ShardStats{Index: i, Count: len(s.items)}
		s.mu.RUnlock()
	}
	return stats
}
