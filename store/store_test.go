package store

import "testing"

func key(n int) Key { return Key{Type: TypeObject, Num: n} }

func fill(t *testing.T, s *Store, n int, size int64) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if !s.Put(key(i), i, size) {
			t.Fatalf("put %d rejected", i)
		}
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(Config{MaxBytes: 30, Policy: LRU})
	fill(t, s, 3, 10)
	s.Get(key(1))
	s.Put(key(4), 4, 10)
	if _, ok := s.Get(key(2)); ok {
		t.Fatalf("expected 2 to be evicted")
	}
	if _, ok := s.Get(key(1)); !ok {
		t.Fatalf("recently used 1 was evicted")
	}
	if s.Bytes() != 30 || s.Stats().Evictions != 1 {
		t.Fatalf("unexpected stats %+v", s.Stats())
	}
}

func TestFIFOIgnoresAccess(t *testing.T) {
	s := New(Config{MaxBytes: 30, Policy: FIFO})
	fill(t, s, 3, 10)
	s.Get(key(1))
	s.Put(key(4), 4, 10)
	if _, ok := s.Get(key(1)); ok {
		t.Fatalf("expected oldest item to be evicted")
	}
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	s := New(Config{MaxBytes: 30, Policy: LFU})
	fill(t, s, 3, 10)
	s.Get(key(1))
	s.Get(key(1))
	s.Get(key(2))
	s.Put(key(4), 4, 10)
	if _, ok := s.Get(key(3)); ok {
		t.Fatalf("expected unused item to be evicted")
	}
}

func TestRandomStaysWithinBudget(t *testing.T) {
	s := New(Config{MaxBytes: 50, Policy: Random, Seed: 7})
	fill(t, s, 20, 10)
	if s.Len() != 5 || s.Bytes() != 50 {
		t.Fatalf("len=%d bytes=%d", s.Len(), s.Bytes())
	}
}

func TestTypeCeilings(t *testing.T) {
	var evicted []Key
	s := New(Config{
		MaxBytes:     1000,
		TypeCeilings: map[ItemType]int64{TypeStream: 20},
		OnEvict:      func(k Key, _ int64) { evicted = append(evicted, k) },
	})
	s.Put(key(1), "obj", 100)
	s.Put(Key{Type: TypeStream, Num: 1}, "a", 10)
	s.Put(Key{Type: TypeStream, Num: 2}, "b", 10)
	s.Put(Key{Type: TypeStream, Num: 3}, "c", 10)
	if s.TypeBytes(TypeStream) != 20 {
		t.Fatalf("stream bytes = %d", s.TypeBytes(TypeStream))
	}
	if len(evicted) != 1 || evicted[0] != (Key{Type: TypeStream, Num: 1}) {
		t.Fatalf("unexpected evictions %v", evicted)
	}
	if _, ok := s.Get(key(1)); !ok {
		t.Fatalf("object evicted by a stream ceiling")
	}
	if s.Put(Key{Type: TypeStream, Num: 9}, "big", 21) {
		t.Fatalf("item above its ceiling was stored")
	}
}

func TestReplaceAndFlush(t *testing.T) {
	s := New(Config{})
	s.Put(key(1), "a", 5)
	s.Put(key(1), "b", 7)
	if v, _ := s.Get(key(1)); v != "b" || s.Bytes() != 7 {
		t.Fatalf("replace failed: %v %d", v, s.Bytes())
	}
	s.Flush()
	if s.Len() != 0 || s.Bytes() != 0 {
		t.Fatalf("flush left items")
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{LRU, LFU, FIFO, Random} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Fatalf("parse %v: %v %v", p, got, err)
		}
	}
	if _, err := ParsePolicy("mru"); err == nil {
		t.Fatalf("expected error")
	}
}
