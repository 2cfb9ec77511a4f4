// Package memory provides an in-process Store implementation used by the
// bptree test suite. It is not a production OKV
// backend — no durability, no compaction — only an ordered map behind a
// mutex, kept simple on purpose so the tree's own tests exercise the real
// okv.Store contract instead of a mock.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/abrahamahn/bptree/pkg/okv"
)

// Store is a sorted, mutex-guarded, in-memory implementation of okv.Store.
// Keys are compared byte-lexicographically, the same bytes.Compare order
// the tree uses.
type Store struct {
	mutex   sync.RWMutex
	entries map[string][]byte
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// Get implements okv.Store.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	v, ok := s.entries[string(key)]
	if !ok {
		return nil, false, nil
	}
	// Return a copy: the tree must never observe mutation of a value it
	// has not itself written back.
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Write implements okv.Store. Sets apply first in listed order, then
// deletes, matching the ordering okv.Batch documents.
func (s *Store) Write(batch okv.Batch) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, p := range batch.Set {
		v := make([]byte, len(p.Value))
		copy(v, p.Value)
		s.entries[string(p.Key)] = v
	}
	for _, k := range batch.Delete {
		delete(s.entries, string(k))
	}
	return nil
}

// List implements okv.Store per the bounds semantics in §4.7: invalid
// bounds yield an empty, non-nil slice rather than an error; offset and
// reverse are applied after collection (and after limit), matching the
// policy pinned in SPEC_FULL.md.
func (s *Store) List(bounds okv.ListBounds) ([]okv.Pair, error) {
	if bounds.Invalid() {
		return []okv.Pair{}, nil
	}

	s.mutex.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]okv.Pair, 0, len(keys))
	for _, k := range keys {
		kb := []byte(k)
		if bounds.HasGt() && bytes.Compare(kb, bounds.Gt) <= 0 {
			continue
		}
		if bounds.HasGte() && bytes.Compare(kb, bounds.Gte) < 0 {
			continue
		}
		if bounds.HasLt() && bytes.Compare(kb, bounds.Lt) >= 0 {
			break
		}
		if bounds.HasLte() && bytes.Compare(kb, bounds.Lte) > 0 {
			break
		}
		v := s.entries[k]
		vc := make([]byte, len(v))
		copy(vc, v)
		out = append(out, okv.Pair{Key: kb, Value: vc})
		if bounds.Limit > 0 && len(out) >= bounds.Limit {
			break
		}
	}
	s.mutex.RUnlock()

	if bounds.Offset > 0 {
		if bounds.Offset >= len(out) {
			out = out[:0]
		} else {
			out = out[bounds.Offset:]
		}
	}
	if bounds.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// Size returns the number of live keys, for test assertions.
func (s *Store) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entries)
}
