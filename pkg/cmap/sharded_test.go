package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d", tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}

	m.Delete("a")
	m.Delete("missing")
	if m.Has("a") || m.Count() != 1 {
		t.Errorf("after Delete: Has(a) = %v, Count() = %d", m.Has("a"), m.Count())
	}
}

func TestSetIfAbsentAndPop(t *testing.T) {
	m := New[int, string]()
	if !m.SetIfAbsent(1, "x") {
		t.Fatal("SetIfAbsent on empty map = false")
	}
	if m.SetIfAbsent(1, "y") {
		t.Error("SetIfAbsent on existing key = true")
	}
	if v, ok := m.Pop(1); !ok || v != "x" {
		t.Errorf("Pop(1) = (%q, %v)", v, ok)
	}
	if _, ok := m.Pop(1); ok {
		t.Error("second Pop(1) reported present")
	}
}

func TestUpdate(t *testing.T) {
	m := New[string, int]()
	inc := func(v int, _ bool) int { return v + 1 }
	m.Update("n", inc)
	if got := m.Update("n", inc); got != 2 {
		t.Errorf("Update() = %d, want 2", got)
	}
}

func TestAllAndDeleteFunc(t *testing.T) {
	m := NewWithShards[int, int](4)
	for i := 0; i < 100; i++ {
		m.Set(i, i*i)
	}

	keys := m.Keys()
	sort.Ints(keys)
	if len(keys) != 100 || keys[0] != 0 || keys[99] != 99 {
		t.Fatalf("Keys() = %d keys", len(keys))
	}

	seen := 0
	for k, v := range m.All() {
		if v != k*k {
			t.Errorf("All() yielded %d -> %d", k, v)
		}
		seen++
		if seen == 10 {
			break
		}
	}
	if seen != 10 {
		t.Errorf("early break yielded %d items, want 10", seen)
	}

	removed := m.DeleteFunc(func(k, _ int) bool { return k%2 == 0 })
	if removed != 50 || m.Count() != 50 {
		t.Errorf("DeleteFunc() removed %d, Count() = %d", removed, m.Count())
	}

	total := 0
	for _, s := range m.Stats() {
		total += s.Count
	}
	if total != 50 {
		t.Errorf("Stats() total = %d, want 50", total)
	}

	m.Clear()
	if m.Count() != 0 || len(m.Values()) != 0 {
		t.Error("Clear() left items behind")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := g*1000 + i
				m.Set(key, i)
				m.Get(key)
				if i%3 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	// 500 keys per goroutine, every third one deleted (167 of them).
	if got, want := m.Count(), 8*(500-167); got != want {
		t.Errorf("Count() = %d, want %d", got, want)
	}
}
