package bptree

// splitLeafAndPromote splits an overfull leaf into two and promotes the
// new right leaf's first key as a separator into the parent, recursing
// up the path as necessary.
func (t *Tree) splitLeafAndPromote(meta *treeMetadata, leftID []byte, leaf *leafNode, path []pathStep) error {
	// Left gets the smaller half, right the larger: for an odd overflow
	// count this leaves the promoted separator (right's first key) as
	// the middle element, matching spec.md §8 scenario 2 exactly.
	mid := len(leaf.keys) / 2

	rightKeys := append([][]byte{}, leaf.keys[mid:]...)
	rightValues := append([][]byte{}, leaf.values[mid:]...)
	leftKeys := leaf.keys[:mid]
	leftValues := leaf.values[:mid]

	rightID := newLeafID()
	right := &leafNode{keys: rightKeys, values: rightValues, next: leaf.next}
	left := &leafNode{keys: leftKeys, values: leftValues, next: rightID}

	if err := t.writeLeaf(rightID, right); err != nil {
		return err
	}
	if err := t.writeLeaf(leftID, left); err != nil {
		return err
	}

	sep := rightKeys[0]
	return t.promote(meta, path, sep, leftID, rightID)
}

// promote inserts sep as a new separator key between leftID and rightID
// into the parent named by the last step of path, splitting that parent
// (and recursing further up path) if it overflows. An empty path means
// the split reached the root: a new root is created and the tree's
// height increases by one.
func (t *Tree) promote(meta *treeMetadata, path []pathStep, sep, leftID, rightID []byte) error {
	if len(path) == 0 {
		newRootID := newInternalID()
		root := &internalNode{keys: [][]byte{sep}, children: [][]byte{leftID, rightID}}
		if err := t.writeInternal(newRootID, root); err != nil {
			return err
		}
		meta.RootID = newRootID
		meta.Height++
		return t.saveMetadata(meta)
	}

	last := path[len(path)-1]
	parent := last.node
	idx := last.childIdx

	parent.keys = insertAt(parent.keys, idx, sep)
	parent.children = insertAt(parent.children, idx+1, rightID)

	if len(parent.keys) <= t.cfg.MaxInternalSize {
		return t.writeInternal(last.id, parent)
	}
	return t.splitInternalAndPromote(meta, last.id, parent, path[:len(path)-1])
}

// splitInternalAndPromote splits an overfull internal node, pushing its
// middle key up to the parent rather than duplicating it (internal keys
// are not repeated across siblings, unlike leaf separators).
func (t *Tree) splitInternalAndPromote(meta *treeMetadata, leftID []byte, node *internalNode, path []pathStep) error {
	mid := len(node.keys) / 2
	sep := node.keys[mid]

	leftKeys := node.keys[:mid]
	leftChildren := node.children[:mid+1]
	rightKeys := append([][]byte{}, node.keys[mid+1:]...)
	rightChildren := append([][]byte{}, node.children[mid+1:]...)

	rightID := newInternalID()
	left := &internalNode{keys: leftKeys, children: leftChildren}
	right := &internalNode{keys: rightKeys, children: rightChildren}

	if err := t.writeInternal(rightID, right); err != nil {
		return err
	}
	if err := t.writeInternal(leftID, left); err != nil {
		return err
	}

	return t.promote(meta, path, sep, leftID, rightID)
}

// repairLeafUnderflow restores minimum occupancy for leaf, which has
// fallen below the minimum after a delete, by borrowing a key from an
// adjacent sibling or merging with one. ancestors is the path to leaf's
// parent, with ancestors[len(ancestors)-1].childIdx naming leaf's own
// position among its siblings.
func (t *Tree) repairLeafUnderflow(meta *treeMetadata, leafID []byte, leaf *leafNode, ancestors []pathStep) error {
	parentStep := ancestors[len(ancestors)-1]
	parent := parentStep.node
	idx := parentStep.childIdx
	minLeafKeys := ceilHalf(t.cfg.MaxLeafSize)

	if idx > 0 {
		leftID := parent.children[idx-1]
		left, err := t.loadLeafByID(leftID)
		if err != nil {
			return err
		}
		if len(left.keys) > minLeafKeys {
			n := len(left.keys)
			borrowedKey, borrowedVal := left.keys[n-1], left.values[n-1]
			left.keys = left.keys[:n-1]
			left.values = left.values[:n-1]
			leaf.keys = insertAt(leaf.keys, 0, borrowedKey)
			leaf.values = insertAt(leaf.values, 0, borrowedVal)
			parent.keys[idx-1] = leaf.keys[0]

			if err := t.writeLeaf(leftID, left); err != nil {
				return err
			}
			if err := t.writeLeaf(leafID, leaf); err != nil {
				return err
			}
			return t.writeInternal(parentStep.id, parent)
		}
	}

	if idx < len(parent.children)-1 {
		rightID := parent.children[idx+1]
		right, err := t.loadLeafByID(rightID)
		if err != nil {
			return err
		}
		if len(right.keys) > minLeafKeys {
			borrowedKey, borrowedVal := right.keys[0], right.values[0]
			right.keys = right.keys[1:]
			right.values = right.values[1:]
			leaf.keys = append(leaf.keys, borrowedKey)
			leaf.values = append(leaf.values, borrowedVal)
			parent.keys[idx] = right.keys[0]

			if err := t.writeLeaf(rightID, right); err != nil {
				return err
			}
			if err := t.writeLeaf(leafID, leaf); err != nil {
				return err
			}
			return t.writeInternal(parentStep.id, parent)
		}
	}

	if idx > 0 {
		leftID := parent.children[idx-1]
		left, err := t.loadLeafByID(leftID)
		if err != nil {
			return err
		}
		left.keys = append(left.keys, leaf.keys...)
		left.values = append(left.values, leaf.values...)
		left.next = leaf.next
		if err := t.writeLeaf(leftID, left); err != nil {
			return err
		}
		if err := t.deleteNode(leafID); err != nil {
			return err
		}
		parent.keys = removeAt(parent.keys, idx-1)
		parent.children = removeAt(parent.children, idx)
		return t.repairInternalAfterChange(meta, parentStep.id, parent, ancestors[:len(ancestors)-1])
	}

	rightID := parent.children[idx+1]
	right, err := t.loadLeafByID(rightID)
	if err != nil {
		return err
	}
	leaf.keys = append(leaf.keys, right.keys...)
	leaf.values = append(leaf.values, right.values...)
	leaf.next = right.next
	if err := t.writeLeaf(leafID, leaf); err != nil {
		return err
	}
	if err := t.deleteNode(rightID); err != nil {
		return err
	}
	parent.keys = removeAt(parent.keys, idx)
	parent.children = removeAt(parent.children, idx+1)
	return t.repairInternalAfterChange(meta, parentStep.id, parent, ancestors[:len(ancestors)-1])
}

// repairInternalAfterChange checks node, whose child count just dropped
// by one (a child merge completed), for underflow and repairs it. A
// shrunk root is demoted when it has lost its last key.
func (t *Tree) repairInternalAfterChange(meta *treeMetadata, nodeID []byte, node *internalNode, ancestors []pathStep) error {
	if len(ancestors) == 0 {
		if len(node.keys) == 0 {
			newRootID := node.children[0]
			meta.RootID = newRootID
			meta.Height--
			if err := t.deleteNode(nodeID); err != nil {
				return err
			}
			return t.saveMetadata(meta)
		}
		return t.writeInternal(nodeID, node)
	}

	minInternalKeys := ceilHalf(t.cfg.MaxInternalSize)
	if len(node.keys) >= minInternalKeys {
		return t.writeInternal(nodeID, node)
	}
	return t.repairInternalUnderflow(meta, nodeID, node, ancestors)
}

// repairInternalUnderflow restores minimum occupancy for an internal node
// by rotating a key through its parent from a sibling, or merging with
// one. ancestors is the path to node's parent. This is the internal-node
// counterpart of repairLeafUnderflow: it uses MaxInternalSize, not
// MaxLeafSize, for its occupancy threshold.
func (t *Tree) repairInternalUnderflow(meta *treeMetadata, nodeID []byte, node *internalNode, ancestors []pathStep) error {
	parentStep := ancestors[len(ancestors)-1]
	parent := parentStep.node
	idx := parentStep.childIdx
	minInternalKeys := ceilHalf(t.cfg.MaxInternalSize)

	if idx > 0 {
		leftID := parent.children[idx-1]
		left, err := t.loadInternalByID(leftID)
		if err != nil {
			return err
		}
		if len(left.keys) > minInternalKeys {
			borrowedChild := left.children[len(left.children)-1]
			borrowedKey := left.keys[len(left.keys)-1]
			left.children = left.children[:len(left.children)-1]
			left.keys = left.keys[:len(left.keys)-1]

			node.keys = insertAt(node.keys, 0, parent.keys[idx-1])
			node.children = insertAt(node.children, 0, borrowedChild)
			parent.keys[idx-1] = borrowedKey

			if err := t.writeInternal(leftID, left); err != nil {
				return err
			}
			if err := t.writeInternal(nodeID, node); err != nil {
				return err
			}
			return t.writeInternal(parentStep.id, parent)
		}
	}

	if idx < len(parent.children)-1 {
		rightID := parent.children[idx+1]
		right, err := t.loadInternalByID(rightID)
		if err != nil {
			return err
		}
		if len(right.keys) > minInternalKeys {
			borrowedChild := right.children[0]
			borrowedKey := right.keys[0]
			right.children = right.children[1:]
			right.keys = right.keys[1:]

			node.keys = append(node.keys, parent.keys[idx])
			node.children = append(node.children, borrowedChild)
			parent.keys[idx] = borrowedKey

			if err := t.writeInternal(rightID, right); err != nil {
				return err
			}
			if err := t.writeInternal(nodeID, node); err != nil {
				return err
			}
			return t.writeInternal(parentStep.id, parent)
		}
	}

	if idx > 0 {
		leftID := parent.children[idx-1]
		left, err := t.loadInternalByID(leftID)
		if err != nil {
			return err
		}
		sep := parent.keys[idx-1]
		left.keys = append(left.keys, sep)
		left.keys = append(left.keys, node.keys...)
		left.children = append(left.children, node.children...)

		if err := t.writeInternal(leftID, left); err != nil {
			return err
		}
		if err := t.deleteNode(nodeID); err != nil {
			return err
		}
		parent.keys = removeAt(parent.keys, idx-1)
		parent.children = removeAt(parent.children, idx)
		return t.repairInternalAfterChange(meta, parentStep.id, parent, ancestors[:len(ancestors)-1])
	}

	rightID := parent.children[idx+1]
	right, err := t.loadInternalByID(rightID)
	if err != nil {
		return err
	}
	sep := parent.keys[idx]
	node.keys = append(node.keys, sep)
	node.keys = append(node.keys, right.keys...)
	node.children = append(node.children, right.children...)

	if err := t.writeInternal(nodeID, node); err != nil {
		return err
	}
	if err := t.deleteNode(rightID); err != nil {
		return err
	}
	parent.keys = removeAt(parent.keys, idx)
	parent.children = removeAt(parent.children, idx+1)
	return t.repairInternalAfterChange(meta, parentStep.id, parent, ancestors[:len(ancestors)-1])
}
