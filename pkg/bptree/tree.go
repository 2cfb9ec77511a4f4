// Package bptree implements a persistent B+ tree index over a pluggable
// ordered key-value store (pkg/okv). The tree stores its own nodes as
// records in the backing store, so it never keeps node state in memory
// between public calls: each Get, Set, Delete, Write, or List descends
// the tree fresh from the root.
package bptree

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/abrahamahn/bptree/pkg/config"
	"github.com/abrahamahn/bptree/pkg/okv"
)

// Tree is a B+ tree index backed by an okv.Store. A Tree is itself an
// okv.Store, so trees compose recursively: a Tree can be layered over
// another Tree.
type Tree struct {
	store okv.Store
	cfg   *config.TreeConfig
}

var _ okv.Store = (*Tree)(nil)

// treeMetadata is the small JSON record tracked under metadataKey that
// lets the tree find its current root without walking the backing store.
type treeMetadata struct {
	RootID []byte `json:"root_id"`
	Height int    `json:"height"`
}

// NewTree opens a Tree over store. cfg may be nil, in which case
// config.DefaultConfig() is used. The backing store is initialized with
// an empty root leaf on first use if it has no metadata record yet.
func NewTree(store okv.Store, cfg *config.TreeConfig) *Tree {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()
	return &Tree{store: store, cfg: cfg}
}

// ensureInit loads the tree's metadata record, creating a fresh empty
// root leaf and writing the initial metadata if none exists yet.
func (t *Tree) ensureInit() (*treeMetadata, error) {
	raw, found, err := t.store.Get(metadataKey)
	if err != nil {
		return nil, fmt.Errorf("bptree: load metadata: %w", err)
	}
	if found {
		var meta treeMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("bptree: parse metadata: %w", err)
		}
		return &meta, nil
	}

	meta := &treeMetadata{RootID: rootLeafID(), Height: 0}
	if err := t.writeLeaf(meta.RootID, &leafNode{}); err != nil {
		return nil, fmt.Errorf("bptree: create root leaf: %w", err)
	}
	if err := t.saveMetadata(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (t *Tree) saveMetadata(meta *treeMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("bptree: marshal metadata: %w", err)
	}
	if err := t.store.Write(okv.Batch{Set: []okv.Pair{{Key: metadataKey, Value: raw}}}); err != nil {
		return fmt.Errorf("bptree: save metadata: %w", err)
	}
	return nil
}

// Get implements okv.Store: it returns the value associated with key, and
// false if key is absent.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	meta, err := t.ensureInit()
	if err != nil {
		return nil, false, err
	}

	leaf, _, _, err := t.descendToLeaf(meta.RootID, key)
	if err != nil {
		return nil, false, err
	}
	idx := findChildIndex(leaf.keys, key)
	if idx > 0 && bytes.Equal(leaf.keys[idx-1], key) {
		return leaf.values[idx-1], true, nil
	}
	return nil, false, nil
}

// Set inserts or overwrites the value for key. It is equivalent to
// Write(Batch{Set: []Pair{{key, value}}}).
func (t *Tree) Set(key, value []byte) error {
	return t.Write(okv.Batch{Set: []okv.Pair{{Key: key, Value: value}}})
}

// Delete removes key, if present. It is equivalent to
// Write(Batch{Delete: [][]byte{key}}).
func (t *Tree) Delete(key []byte) error {
	return t.Write(okv.Batch{Delete: [][]byte{key}})
}

// Write applies a batch of sets and deletes as a sequence of individual
// structural mutations: every Set is applied, in order, followed by every
// Delete, in order, matching the Pair/Delete ordering spec §4.5 specifies
// for non-overlapping batches. The tree holds no cross-key transactional
// atomicity; a failure partway through leaves prior mutations committed.
func (t *Tree) Write(batch okv.Batch) error {
	meta, err := t.ensureInit()
	if err != nil {
		return err
	}

	for _, pair := range batch.Set {
		if err := t.insert(meta, pair.Key, pair.Value); err != nil {
			return fmt.Errorf("bptree: set %q: %w", pair.Key, err)
		}
	}
	for _, key := range batch.Delete {
		if err := t.remove(meta, key); err != nil {
			return fmt.Errorf("bptree: delete %q: %w", key, err)
		}
	}
	return nil
}

// List returns the key-value pairs within bounds, in the order bounds
// requests. Invalid bounds are rejected: the tree logs a warning through
// its configured logger and returns an empty, non-nil slice.
func (t *Tree) List(bounds okv.ListBounds) ([]okv.Pair, error) {
	if bounds.Invalid() {
		t.cfg.Warnf("list: rejected invalid bounds %+v", bounds)
		return []okv.Pair{}, nil
	}

	meta, err := t.ensureInit()
	if err != nil {
		return nil, err
	}

	var collected []okv.Pair
	var startLeaf *leafNode
	if lo, ok := bounds.LowerKey(); ok {
		startLeaf, _, _, err = t.descendToLeaf(meta.RootID, lo)
	} else {
		startLeaf, _, _, err = t.descendToLeaf(meta.RootID, nil)
	}
	if err != nil {
		return nil, err
	}

	leaf := startLeaf
scan:
	for leaf != nil {
		for i, k := range leaf.keys {
			if !bounds.AboveLower(k) {
				continue
			}
			if !bounds.BelowUpper(k) {
				break scan
			}
			collected = append(collected, okv.Pair{Key: k, Value: leaf.values[i]})
			if bounds.HasLimit() && len(collected) >= bounds.Limit {
				break scan
			}
		}
		if leaf.next == nil {
			break
		}
		next, err := t.loadLeafByID(leaf.next)
		if err != nil {
			return nil, err
		}
		leaf = next
	}

	return finishList(collected, bounds), nil
}

// finishList applies Offset then Reverse to an already limit-bounded,
// ascending collection, matching the policy pinned for okv/memory.Store.
func finishList(collected []okv.Pair, bounds okv.ListBounds) []okv.Pair {
	if bounds.Offset > 0 {
		if bounds.Offset >= len(collected) {
			collected = nil
		} else {
			collected = collected[bounds.Offset:]
		}
	}
	if bounds.Reverse {
		for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
			collected[i], collected[j] = collected[j], collected[i]
		}
	}
	if collected == nil {
		collected = []okv.Pair{}
	}
	return collected
}

// loadNode reads and decodes the node record for id.
func (t *Tree) loadNode(id []byte) (*nodeBody, error) {
	raw, found, err := t.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("bptree: load node %q: %w", id, err)
	}
	if !found {
		if t.cfg.StrictCorruption {
			return nil, ErrCorruption
		}
		return &nodeBody{isLeaf: true, leaf: &leafNode{}}, nil
	}
	body, err := decodeNode(raw)
	if err != nil {
		if t.cfg.StrictCorruption {
			return nil, ErrCorruption
		}
		return &nodeBody{isLeaf: true, leaf: &leafNode{}}, nil
	}
	return body, nil
}

func (t *Tree) loadLeafByID(id []byte) (*leafNode, error) {
	body, err := t.loadNode(id)
	if err != nil {
		return nil, err
	}
	if !body.isLeaf {
		if t.cfg.StrictCorruption {
			return nil, ErrCorruption
		}
		return &leafNode{}, nil
	}
	return body.leaf, nil
}

func (t *Tree) loadInternalByID(id []byte) (*internalNode, error) {
	body, err := t.loadNode(id)
	if err != nil {
		return nil, err
	}
	if body.isLeaf {
		if t.cfg.StrictCorruption {
			return nil, ErrCorruption
		}
		return &internalNode{}, nil
	}
	return body.internal, nil
}

func (t *Tree) writeLeaf(id []byte, n *leafNode) error {
	return t.store.Write(okv.Batch{Set: []okv.Pair{{Key: id, Value: encodeLeaf(n)}}})
}

func (t *Tree) writeInternal(id []byte, n *internalNode) error {
	return t.store.Write(okv.Batch{Set: []okv.Pair{{Key: id, Value: encodeInternal(n)}}})
}

func (t *Tree) deleteNode(id []byte) error {
	return t.store.Write(okv.Batch{Delete: [][]byte{id}})
}

// ceilHalf returns ceil(n/2), the minimum occupancy threshold used for
// underflow detection relative to a maxSize fan-out bound.
func ceilHalf(n int) int {
	return (n + 1) / 2
}

// insertAt inserts v at index i in s, shifting later elements right.
func insertAt(s [][]byte, i int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// removeAt removes the element at index i from s, shifting later elements left.
func removeAt(s [][]byte, i int) [][]byte {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
