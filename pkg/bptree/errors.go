package bptree

import "errors"

// ErrCorruption is returned in place of the silent empty-leaf fallback
// when TreeConfig.StrictCorruption is set and a node record is missing
// or unreadable. By default the tree tolerates this (spec §4.2, §7) and
// never returns this error.
var ErrCorruption = errors.New("bptree: node record missing or corrupt")
