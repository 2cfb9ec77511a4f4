package bptree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire tags identifying a node body's role. The depth-prefixed identifier
// is advisory; this tag is the authoritative discriminant (spec §3).
const (
	leafTag     uint8 = 1
	internalTag uint8 = 2
)

// leafNode is the in-memory decoding of a leaf's OKV value.
type leafNode struct {
	keys   [][]byte
	values [][]byte
	next   []byte // nil when this is the rightmost leaf
}

// internalNode is the in-memory decoding of an internal node's OKV value.
type internalNode struct {
	keys     [][]byte
	children [][]byte
}

// nodeBody is the tagged sum a decoded node record resolves to.
type nodeBody struct {
	isLeaf   bool
	leaf     *leafNode
	internal *internalNode
}

// encodeLeaf serializes a leaf body to its OKV value. Format:
// [tag(1)][count(4)]{[keyLen(4)][key][valLen(4)][val]}*[nextLen(4)][next]
func encodeLeaf(n *leafNode) []byte {
	var buf bytes.Buffer
	buf.WriteByte(leafTag)
	writeUint32(&buf, uint32(len(n.keys)))
	for i, k := range n.keys {
		writeField(&buf, k)
		writeField(&buf, n.values[i])
	}
	writeField(&buf, n.next)
	return buf.Bytes()
}

// encodeInternal serializes an internal body to its OKV value. Format:
// [tag(1)][keyCount(4)]{[keyLen(4)][key]}*[childCount(4)]{[idLen(4)][id]}*
func encodeInternal(n *internalNode) []byte {
	var buf bytes.Buffer
	buf.WriteByte(internalTag)
	writeUint32(&buf, uint32(len(n.keys)))
	for _, k := range n.keys {
		writeField(&buf, k)
	}
	writeUint32(&buf, uint32(len(n.children)))
	for _, c := range n.children {
		writeField(&buf, c)
	}
	return buf.Bytes()
}

// decodeNode dispatches on the wire tag and returns the tagged body. A
// missing/empty value decodes to a zero-entry leaf to tolerate cold start
// (spec §4.2).
func decodeNode(data []byte) (*nodeBody, error) {
	if len(data) == 0 {
		return &nodeBody{isLeaf: true, leaf: &leafNode{}}, nil
	}

	r := bytes.NewReader(data)
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("bptree: decode node: %w", err)
	}

	switch tag {
	case leafTag:
		l, err := decodeLeafBody(r)
		if err != nil {
			return nil, fmt.Errorf("bptree: decode leaf: %w", err)
		}
		return &nodeBody{isLeaf: true, leaf: l}, nil
	case internalTag:
		in, err := decodeInternalBody(r)
		if err != nil {
			return nil, fmt.Errorf("bptree: decode internal node: %w", err)
		}
		return &nodeBody{isLeaf: false, internal: in}, nil
	default:
		return nil, fmt.Errorf("bptree: decode node: unknown tag %d", tag)
	}
}

func decodeLeafBody(r *bytes.Reader) (*leafNode, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, count)
	values := make([][]byte, count)
	for i := uint32(0); i < count; i++ {
		if keys[i], err = readField(r); err != nil {
			return nil, err
		}
		if values[i], err = readField(r); err != nil {
			return nil, err
		}
	}
	next, err := readField(r)
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		next = nil
	}
	return &leafNode{keys: keys, values: values, next: next}, nil
}

func decodeInternalBody(r *bytes.Reader) (*internalNode, error) {
	keyCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, keyCount)
	for i := uint32(0); i < keyCount; i++ {
		if keys[i], err = readField(r); err != nil {
			return nil, err
		}
	}
	childCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	children := make([][]byte, childCount)
	for i := uint32(0); i < childCount; i++ {
		if children[i], err = readField(r); err != nil {
			return nil, err
		}
	}
	return &internalNode{keys: keys, children: children}, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeField(buf *bytes.Buffer, v []byte) {
	writeUint32(buf, uint32(len(v)))
	buf.Write(v)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func readField(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	v := make([]byte, n)
	if _, err := io.ReadFull(r, v); err != nil {
		return nil, err
	}
	return v, nil
}
