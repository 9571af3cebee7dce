// Package store is a bounded cache with a byte budget, per-type ceilings
// and pluggable eviction.
package store

import (
	"container/list"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// Policy selects the eviction victim.
type Policy int

const (
	LRU Policy = iota
	LFU
	FIFO
	Random
)

func (p Policy) String() string {
	switch p {
	case LFU:
		return "lfu"
	case FIFO:
		return "fifo"
	case Random:
		return "random"
	}
	return "lru"
}

// ParsePolicy accepts the names returned by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "lru":
		return LRU, nil
	case "lfu":
		return LFU, nil
	case "fifo":
		return FIFO, nil
	case "random":
		return Random, nil
	}
	return LRU, fmt.Errorf("unknown eviction policy %q", s)
}

// ItemType classifies cached items for per-type ceilings.
type ItemType int

const (
	TypeObject ItemType = iota
	TypeStream
	TypePage
	TypeResource
)

func (t ItemType) String() string {
	switch t {
	case TypeStream:
		return "stream"
	case TypePage:
		return "page"
	case TypeResource:
		return "resource"
	}
	return "object"
}

// Key identifies a cached item.
type Key struct {
	Type ItemType
	Num  int
	Gen  int
}

// Config configures a Store. A zero MaxBytes means unbounded.
type Config struct {
	MaxBytes     int64
	Policy       Policy
	TypeCeilings map[ItemType]int64
	// OnEvict is called, with the store unlocked, for every evicted item.
	OnEvict func(k Key, size int64)
	// Seed makes Random eviction reproducible.
	Seed uint64
}

// Stats provides statistics about store usage.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Bytes     int64
	Entries   int64
}

type item struct {
	key   Key
	value any
	size  int64
	uses  int64
	elem  *list.Element
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	cfg    Config
	items  map[Key]*item
	order  *list.List
	byType map[ItemType]int64
	rng    *rand.Rand
	stats  Stats
}

// New returns an empty store.
func New(cfg Config) *Store {
	return &Store{
		cfg:    cfg,
		items:  make(map[Key]*item),
		order:  list.New(),
		byType: make(map[ItemType]int64),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Policy returns the eviction policy.
func (s *Store) Policy() Policy { return s.cfg.Policy }

// Get returns the item for k.
func (s *Store) Get(k Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[k]
	if !ok {
		s.stats.Misses++
		return nil, false
	}
	s.stats.Hits++
	it.uses++
	if s.cfg.Policy == LRU {
		s.order.MoveToBack(it.elem)
	}
	return it.value, true
}

// Put stores v under k, evicting as needed. Items larger than the budget
// or their type ceiling are not stored and Put returns false.
func (s *Store) Put(k Key, v any, size int64) bool {
	if size < 0 {
		size = 0
	}
	s.mu.Lock()
	if s.cfg.MaxBytes > 0 && size > s.cfg.MaxBytes {
		s.mu.Unlock()
		return false
	}
	ceiling := s.cfg.TypeCeilings[k.Type]
	if ceiling > 0 && size > ceiling {
		s.mu.Unlock()
		return false
	}
	if old, ok := s.items[k]; ok {
		s.removeLocked(old)
	}
	var evicted []*item
	for ceiling > 0 && s.byType[k.Type]+size > ceiling {
		victim := s.victim(func(it *item) bool { return it.key.Type == k.Type })
		if victim == nil {
			break
		}
		s.removeLocked(victim)
		evicted = append(evicted, victim)
	}
	for s.cfg.MaxBytes > 0 && s.stats.Bytes+size > s.cfg.MaxBytes {
		victim := s.victim(nil)
		if victim == nil {
			break
		}
		s.removeLocked(victim)
		evicted = append(evicted, victim)
	}
	it := &item{key: k, value: v, size: size}
	it.elem = s.order.PushBack(it)
	s.items[k] = it
	s.byType[k.Type] += size
	s.stats.Bytes += size
	s.stats.Entries = int64(len(s.items))
	s.stats.Evictions += int64(len(evicted))
	onEvict := s.cfg.OnEvict
	s.mu.Unlock()

	if onEvict != nil {
		for _, e := range evicted {
			onEvict(e.key, e.size)
		}
	}
	return true
}

func (s *Store) victim(match func(*item) bool) *item {
	switch s.cfg.Policy {
	case LFU:
		var best *item
		for e := s.order.Front(); e != nil; e = e.Next() {
			it := e.Value.(*item)
			if match != nil && !match(it) {
				continue
			}
			if best == nil || it.uses < best.uses {
				best = it
			}
		}
		return best
	case Random:
		var cands []*item
		for e := s.order.Front(); e != nil; e = e.Next() {
			if it := e.Value.(*item); match == nil || match(it) {
				cands = append(cands, it)
			}
		}
		if len(cands) == 0 {
			return nil
		}
		return cands[s.rng.IntN(len(cands))]
	default:
		for e := s.order.Front(); e != nil; e = e.Next() {
			if it := e.Value.(*item); match == nil || match(it) {
				return it
			}
		}
		return nil
	}
}

func (s *Store) removeLocked(it *item) {
	s.order.Remove(it.elem)
	delete(s.items, it.key)
	s.byType[it.key.Type] -= it.size
	s.stats.Bytes -= it.size
	s.stats.Entries = int64(len(s.items))
}

// Remove drops k if present.
func (s *Store) Remove(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[k]; ok {
		s.removeLocked(it)
	}
}

// RemoveType drops every item of type t.
func (s *Store) RemoveType(t ItemType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.key.Type == t {
			s.removeLocked(it)
		}
	}
}

// Flush empties the store. Statistics other than size are kept.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[Key]*item)
	s.order.Init()
	s.byType = make(map[ItemType]int64)
	s.stats.Bytes = 0
	s.stats.Entries = 0
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Bytes returns the bytes in use.
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Bytes
}

// TypeBytes returns the bytes in use by items of type t.
func (s *Store) TypeBytes(t ItemType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byType[t]
}

// Stats returns a snapshot of the counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
