// Package codestore holds learned pulse sequences by name and moves them to
// and from JSON files.
package codestore

import (
	"sort"
	"sync"

	"rf433-go/errcode"
	"rf433-go/x/mathx"
)

// MaxCodeLen bounds a single stored sequence.
const MaxCodeLen = 1024

// Code is one learned remote-control code: alternating mark/space durations
// in microseconds, starting with a mark and ending with the inter-frame gap.
type Code []uint32

// Total is the on-air time of one copy of the code in microseconds.
func (c Code) Total() uint64 { return mathx.Sum(c) }

// Validate checks c is usable for playback.
func (c Code) Validate() error {
	if len(c) == 0 {
		return errcode.New(errcode.InvalidCode, "validate", "empty code")
	}
	if len(c) > MaxCodeLen {
		return errcode.New(errcode.InvalidCode, "validate", "code too long")
	}
	for _, d := range c {
		if d == 0 {
			return errcode.New(errcode.InvalidCode, "validate", "zero duration")
		}
	}
	return nil
}

// Store maps user keys to codes. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	codes map[string]Code
}

func New() *Store { return &Store{codes: make(map[string]Code)} }

// Get returns a copy of the code stored under key.
func (s *Store) Get(key string) (Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[key]
	if !ok {
		return nil, errcode.UnknownKey
	}
	return append(Code(nil), c...), nil
}

// Put stores a copy of c under key, replacing any previous entry.
func (s *Store) Put(key string, c Code) error {
	if key == "" {
		return errcode.InvalidParams
	}
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.codes[key] = append(Code(nil), c...)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[key]; !ok {
		return errcode.UnknownKey
	}
	delete(s.codes, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.codes))
	for k := range s.codes {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

// Snapshot returns a deep copy of the whole mapping.
func (s *Store) Snapshot() map[string]Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Code, len(s.codes))
	for k, c := range s.codes {
		out[k] = append(Code(nil), c...)
	}
	return out
}

// MaxLen is the length of the longest stored code.
func (s *Store) MaxLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.codes {
		n = mathx.Max(n, len(c))
	}
	return n
}

// MaxTotal is the largest on-air time of any stored code, in microseconds.
func (s *Store) MaxTotal() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var m uint64
	for _, c := range s.codes {
		m = mathx.Max(m, c.Total())
	}
	return m
}

// merge replaces keys present in m. Callers validate m first.
func (s *Store) merge(m map[string]Code) {
	s.mu.Lock()
	for k, c := range m {
		s.codes[k] = c
	}
	s.mu.Unlock()
}
