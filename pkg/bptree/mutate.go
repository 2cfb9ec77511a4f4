package bptree

import "bytes"

// insert applies a single key/value write, splitting nodes up the path to
// the root as needed.
func (t *Tree) insert(meta *treeMetadata, key, value []byte) error {
	leaf, leafID, path, err := t.descendToLeaf(meta.RootID, key)
	if err != nil {
		return err
	}

	idx := findChildIndex(leaf.keys, key)
	if idx > 0 && bytes.Equal(leaf.keys[idx-1], key) {
		leaf.values[idx-1] = value
		return t.writeLeaf(leafID, leaf)
	}

	leaf.keys = insertAt(leaf.keys, idx, key)
	leaf.values = insertAt(leaf.values, idx, value)

	if len(leaf.keys) <= t.cfg.MaxLeafSize {
		return t.writeLeaf(leafID, leaf)
	}
	return t.splitLeafAndPromote(meta, leafID, leaf, path)
}

// remove applies a single key deletion, repairing underflow up the path to
// the root as needed. Deleting an absent key is a no-op.
func (t *Tree) remove(meta *treeMetadata, key []byte) error {
	leaf, leafID, path, err := t.descendToLeaf(meta.RootID, key)
	if err != nil {
		return err
	}

	idx := findChildIndex(leaf.keys, key)
	if idx == 0 || !bytes.Equal(leaf.keys[idx-1], key) {
		return nil
	}
	idx--
	leaf.keys = removeAt(leaf.keys, idx)
	leaf.values = removeAt(leaf.values, idx)

	// The leaf's smallest key changed: refresh the separator naming it,
	// held by the deepest ancestor the path does not enter via child 0.
	if idx == 0 && len(leaf.keys) > 0 {
		for i := len(path) - 1; i >= 0; i-- {
			if step := path[i]; step.childIdx > 0 {
				step.node.keys[step.childIdx-1] = leaf.keys[0]
				if err := t.writeInternal(step.id, step.node); err != nil {
					return err
				}
				break
			}
		}
	}

	if len(path) == 0 {
		// Leaf is the root: no minimum occupancy applies.
		return t.writeLeaf(leafID, leaf)
	}

	minLeafKeys := ceilHalf(t.cfg.MaxLeafSize)
	if len(leaf.keys) >= minLeafKeys {
		return t.writeLeaf(leafID, leaf)
	}
	return t.repairLeafUnderflow(meta, leafID, leaf, path)
}
