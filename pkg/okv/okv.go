// Package okv defines the ordered key-value contract the B+ tree engine
// consumes from its backing store. It names no concrete backend: the tree
// only ever talks to a Store, never to a file, a table, or a socket.
package okv

import "bytes"

// Pair is a single key/value pair returned from a range scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// Batch groups a set of writes and a set of deletes that should be applied
// as a single call to Store.Write. Within a batch, all Set entries apply
// first in listed order, then all Delete entries in listed order; there is
// no deduplication and no cross-call atomicity guarantee beyond whatever
// the backing store itself provides.
type Batch struct {
	Set    []Pair
	Delete [][]byte
}

// ListBounds describes a range scan. Gt and Gte are mutually exclusive, as
// are Lt and Lte; supplying both sides of the same bound is a caller error
// and List implementations must reject it rather than guess which one wins.
type ListBounds struct {
	Gt      []byte
	Gte     []byte
	Lt      []byte
	Lte     []byte
	Limit   int
	Offset  int
	Reverse bool

	hasGt, hasGte, hasLt, hasLte bool
}

// WithGt returns bounds with a strict lower bound set.
func (b ListBounds) WithGt(k []byte) ListBounds { b.Gt, b.hasGt = k, true; return b }

// WithGte returns bounds with an inclusive lower bound set.
func (b ListBounds) WithGte(k []byte) ListBounds { b.Gte, b.hasGte = k, true; return b }

// WithLt returns bounds with a strict upper bound set.
func (b ListBounds) WithLt(k []byte) ListBounds { b.Lt, b.hasLt = k, true; return b }

// WithLte returns bounds with an inclusive upper bound set.
func (b ListBounds) WithLte(k []byte) ListBounds { b.Lte, b.hasLte = k, true; return b }

// HasGt reports whether a strict lower bound was supplied.
func (b ListBounds) HasGt() bool { return b.hasGt }

// HasGte reports whether an inclusive lower bound was supplied.
func (b ListBounds) HasGte() bool { return b.hasGte }

// HasLt reports whether a strict upper bound was supplied.
func (b ListBounds) HasLt() bool { return b.hasLt }

// HasLte reports whether an inclusive upper bound was supplied.
func (b ListBounds) HasLte() bool { return b.hasLte }

// Invalid reports whether the bounds are self-contradictory: both sides of
// the same bound supplied, the range runs backwards (start > end), or it
// is a degenerate point with either side open (e.g. Gte == Lt, which can
// never match anything under a strict order). A closed-closed range with
// equal bounds (Gte == Lte) is a valid single-key range, not degenerate.
func (b ListBounds) Invalid() bool {
	if b.hasGt && b.hasGte {
		return true
	}
	if b.hasLt && b.hasLte {
		return true
	}
	lo, hasLo := b.lowerKey()
	hi, hasHi := b.upperKey()
	if hasLo && hasHi {
		switch cmp := bytes.Compare(lo, hi); {
		case cmp > 0:
			return true
		case cmp == 0:
			return b.hasGt || b.hasLt
		}
	}
	return false
}

func (b ListBounds) lowerKey() ([]byte, bool) {
	switch {
	case b.hasGt:
		return b.Gt, true
	case b.hasGte:
		return b.Gte, true
	default:
		return nil, false
	}
}

func (b ListBounds) upperKey() ([]byte, bool) {
	switch {
	case b.hasLt:
		return b.Lt, true
	case b.hasLte:
		return b.Lte, true
	default:
		return nil, false
	}
}

// LowerKey returns the key named by whichever lower bound (Gt or Gte) was
// supplied, and whether one was supplied at all. A Store that can seek
// directly to a starting position uses this to avoid scanning from the
// beginning of the keyspace.
func (b ListBounds) LowerKey() ([]byte, bool) { return b.lowerKey() }

// UpperKey returns the key named by whichever upper bound (Lt or Lte) was
// supplied, and whether one was supplied at all.
func (b ListBounds) UpperKey() ([]byte, bool) { return b.upperKey() }

// HasLimit reports whether a positive Limit was supplied.
func (b ListBounds) HasLimit() bool { return b.Limit > 0 }

// AboveLower reports whether k satisfies the lower bound, if any.
func (b ListBounds) AboveLower(k []byte) bool {
	switch {
	case b.hasGt:
		return bytes.Compare(k, b.Gt) > 0
	case b.hasGte:
		return bytes.Compare(k, b.Gte) >= 0
	default:
		return true
	}
}

// BelowUpper reports whether k satisfies the upper bound, if any.
func (b ListBounds) BelowUpper(k []byte) bool {
	switch {
	case b.hasLt:
		return bytes.Compare(k, b.Lt) < 0
	case b.hasLte:
		return bytes.Compare(k, b.Lte) <= 0
	default:
		return true
	}
}

// Store is the ordered key-value contract consumed by the B+ tree. A Store
// preserves written bytes exactly and may hold arbitrary byte strings as
// values, including the tree's own serialized node bodies.
type Store interface {
	// Get performs an exact-key point lookup. The second return value is
	// false when the key is absent; Get never returns an error for a
	// missing key.
	Get(key []byte) ([]byte, bool, error)

	// Write applies a batch of sets and deletes. See Batch for ordering.
	Write(batch Batch) error

	// List performs an ordered range scan per ListBounds. Implementations
	// must return an empty, non-nil slice (not an error) for bounds that
	// fail Invalid(); the tree itself never calls List on its backing
	// store, only Get and Write.
	List(bounds ListBounds) ([]Pair, error)
}
