package bptree

import "github.com/segmentio/ksuid"

// Depth prefixes on node identifiers (spec §3). Advisory only — the
// authoritative role of a node is whatever its decoded body says it is.
const (
	leafPrefix     = "lf"
	internalPrefix = "in"
)

// metadataKey is the reserved OKV key holding the tree's root identifier
// and height.
var metadataKey = []byte("__bptree.metadata__")

// rootLeafID is the well-known identifier of the initial empty root leaf,
// written once at cold start (spec §4.4, §6.3).
func rootLeafID() []byte {
	return []byte(leafPrefix + "root")
}

// newLeafID allocates a fresh, process-locally-unique leaf identifier.
// A KSUID concatenates a timestamp with random bits, matching the
// "time-plus-random" scheme spec §4.10 calls out as acceptable, with the
// side benefit that identifiers minted close together sort close together.
func newLeafID() []byte {
	return []byte(leafPrefix + ksuid.New().String())
}

// newInternalID allocates a fresh internal node identifier.
func newInternalID() []byte {
	return []byte(internalPrefix + ksuid.New().String())
}
