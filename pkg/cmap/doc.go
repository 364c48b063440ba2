// Package cmap provides a sharded concurrent map.
//
// Keys are spread over a power-of-two number of shards, each guarded by its
// own RWMutex, so unrelated keys rarely contend.
//
// Usage:
//
//	m := cmap.New[string, *replay.Session]()
//	m.Set(id, s)
//	for id, s := range m.All() {
//		...
//	}
//
// All operations are safe for concurrent use. Iteration locks one shard at
// a time, so it does not observe a consistent snapshot of the whole map.
package cmap
