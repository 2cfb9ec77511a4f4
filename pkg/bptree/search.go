package bptree

import "bytes"

// findChildIndex returns the first index i such that bytes.Compare(key,
// keys[i]) < 0, or len(keys) if key is greater than or equal to every
// entry. In a leaf this is the slot key would be inserted at, so a key
// already present sits at index i-1; in an internal node's key list it is
// the index of the child subtree
// that must hold key, grounded on the teacher's linear-scan descent rule.
func findChildIndex(keys [][]byte, key []byte) int {
	for i, k := range keys {
		if bytes.Compare(key, k) < 0 {
			return i
		}
	}
	return len(keys)
}

// pathStep records one level of the descent: the identifier and decoded
// body of the internal node visited at that level, and the index of the
// child followed to reach the next level down.
type pathStep struct {
	id       []byte
	node     *internalNode
	childIdx int
}

// descendToLeaf walks from rootID down to the leaf that holds (or would
// hold) key, returning the leaf, its own identifier, and the path of
// internal nodes visited to reach it. path[0] is the root; path is empty
// when the root is itself the leaf (height 0).
func (t *Tree) descendToLeaf(rootID []byte, key []byte) (*leafNode, []byte, []pathStep, error) {
	body, err := t.loadNode(rootID)
	if err != nil {
		return nil, nil, nil, err
	}

	var path []pathStep
	id := rootID
	for !body.isLeaf {
		in := body.internal
		idx := findChildIndex(in.keys, key)
		path = append(path, pathStep{id: id, node: in, childIdx: idx})

		childID := in.children[idx]
		next, err := t.loadNode(childID)
		if err != nil {
			return nil, nil, nil, err
		}
		id = childID
		body = next
	}

	return body.leaf, id, path, nil
}
