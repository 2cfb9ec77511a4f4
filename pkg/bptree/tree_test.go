package bptree

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahamahn/bptree/pkg/config"
	"github.com/abrahamahn/bptree/pkg/okv"
	"github.com/abrahamahn/bptree/pkg/okv/memory"
)

func smallFanoutTree() *Tree {
	cfg := &config.TreeConfig{MaxLeafSize: 3, MaxInternalSize: 3}
	return NewTree(memory.New(), cfg)
}

func TestGetMissingKeyOnFreshTree(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	v, ok, err := tr.Get([]byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestSetThenGet(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	require.NoError(t, tr.Set([]byte("a"), []byte("1")))

	v, ok, err := tr.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestSetOverwritesExistingKey(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	require.NoError(t, tr.Set([]byte("a"), []byte("1")))
	require.NoError(t, tr.Set([]byte("a"), []byte("2")))

	v, ok, err := tr.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	require.NoError(t, tr.Delete([]byte("never-there")))
}

func TestDeleteRemovesKey(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	require.NoError(t, tr.Set([]byte("a"), []byte("1")))
	require.NoError(t, tr.Delete([]byte("a")))

	_, ok, err := tr.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteBatchAppliesSetsThenDeletes(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	err := tr.Write(okv.Batch{
		Set:    []okv.Pair{{Key: []byte("a"), Value: []byte("1")}},
		Delete: [][]byte{[]byte("a")},
	})
	require.NoError(t, err)

	_, ok, err := tr.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestSplitGrowsHeightAndPreservesOrder forces leaf splits under a small
// fan-out and checks every key remains reachable, in order, by List.
func TestSplitGrowsHeightAndPreservesOrder(t *testing.T) {
	tr := smallFanoutTree()

	keys := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, k := range keys {
		require.NoError(t, tr.Set([]byte(k), []byte(k)))
	}

	meta, err := tr.ensureInit()
	require.NoError(t, err)
	assert.Greater(t, meta.Height, 0, "inserting 7 keys at MaxLeafSize=3 must have split at least once")

	for _, k := range keys {
		v, ok, err := tr.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q should be present after splits", k)
		assert.Equal(t, []byte(k), v)
	}

	pairs, err := tr.List(okv.ListBounds{})
	require.NoError(t, err)
	require.Len(t, pairs, len(keys))
	for i, k := range keys {
		assert.Equal(t, k, string(pairs[i].Key))
	}
}

func TestListRangeAcrossSplitLeaves(t *testing.T) {
	tr := smallFanoutTree()
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, k := range keys {
		require.NoError(t, tr.Set([]byte(k), []byte(k)))
	}

	pairs, err := tr.List(okv.ListBounds{}.WithGte([]byte("c")).WithLte([]byte("f")))
	require.NoError(t, err)
	require.Len(t, pairs, 4)
	assert.Equal(t, []string{"c", "d", "e", "f"}, pairKeys(pairs))
}

func TestListReverseWithLimit(t *testing.T) {
	tr := smallFanoutTree()
	keys := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, k := range keys {
		require.NoError(t, tr.Set([]byte(k), []byte(k)))
	}

	pairs, err := tr.List(okv.ListBounds{Limit: 3, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, pairKeys(pairs))
}

func TestListClosedClosedSinglePoint(t *testing.T) {
	tr := smallFanoutTree()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, tr.Set([]byte(k), []byte(k)))
	}

	pairs, err := tr.List(okv.ListBounds{}.WithGte([]byte("c")).WithLte([]byte("c")))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, pairKeys(pairs))
}

func TestListInvalidBoundsReturnsEmpty(t *testing.T) {
	tr := NewTree(memory.New(), nil)
	require.NoError(t, tr.Set([]byte("a"), []byte("1")))

	pairs, err := tr.List(okv.ListBounds{}.WithGt([]byte("a")).WithGte([]byte("a")))
	require.NoError(t, err)
	assert.NotNil(t, pairs)
	assert.Empty(t, pairs)
}

// TestDeleteUnderflowMergesWithoutLosingKeys inserts then deletes most keys
// under a small fan-out, checking the tree merges back down without
// losing any remaining key.
func TestDeleteUnderflowMergesWithoutLosingKeys(t *testing.T) {
	tr := smallFanoutTree()

	var keys []string
	for i := 0; i < 100; i++ {
		keys = append(keys, fmt.Sprintf("k%03d", i))
	}
	for _, k := range keys {
		require.NoError(t, tr.Set([]byte(k), []byte(k)))
	}

	for _, k := range keys[:95] {
		require.NoError(t, tr.Delete([]byte(k)))
	}

	for _, k := range keys[:95] {
		_, ok, err := tr.Get([]byte(k))
		require.NoError(t, err)
		assert.False(t, ok, "key %q should have been deleted", k)
	}
	for _, k := range keys[95:] {
		v, ok, err := tr.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q should survive", k)
		assert.Equal(t, []byte(k), v)
	}

	pairs, err := tr.List(okv.ListBounds{})
	require.NoError(t, err)
	assert.Equal(t, keys[95:], pairKeys(pairs))
}

func TestDeleteAllKeysLeavesEmptyTree(t *testing.T) {
	tr := smallFanoutTree()
	var keys []string
	for i := 0; i < 50; i++ {
		keys = append(keys, fmt.Sprintf("k%02d", i))
	}
	for _, k := range keys {
		require.NoError(t, tr.Set([]byte(k), []byte(k)))
	}
	for _, k := range keys {
		require.NoError(t, tr.Delete([]byte(k)))
	}

	meta, err := tr.ensureInit()
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Height, "deleting every key must demote the tree back to a single root leaf")

	pairs, err := tr.List(okv.ListBounds{})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

// TestRandomizedAgainstOracle drives both the tree and a plain map through
// the same random sequence of sets and deletes, checking Get for the
// touched key every 97th round and the full List output against a sorted
// oracle at the end.
func TestRandomizedAgainstOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := smallFanoutTree()
	oracle := map[string]string{}

	universe := make([]string, 40)
	for i := range universe {
		universe[i] = fmt.Sprintf("key-%02d", i)
	}

	for round := 0; round < 1000; round++ {
		k := universe[rng.Intn(len(universe))]
		if rng.Intn(3) == 0 {
			delete(oracle, k)
			require.NoError(t, tr.Delete([]byte(k)))
		} else {
			v := fmt.Sprintf("v%d", round)
			oracle[k] = v
			require.NoError(t, tr.Set([]byte(k), []byte(v)))
		}

		if round%97 != 0 {
			continue
		}

		v, ok, err := tr.Get([]byte(k))
		require.NoError(t, err)
		want, wantOK := oracle[k]
		require.Equal(t, wantOK, ok)
		if wantOK {
			assert.Equal(t, want, string(v))
		}
	}

	pairs, err := tr.List(okv.ListBounds{})
	require.NoError(t, err)

	var wantKeys []string
	for k := range oracle {
		wantKeys = append(wantKeys, k)
	}
	sort.Strings(wantKeys)

	require.Equal(t, wantKeys, pairKeys(pairs))
	for _, p := range pairs {
		assert.Equal(t, oracle[string(p.Key)], string(p.Value))
	}
}

func TestTreeComposesOverAnotherTree(t *testing.T) {
	inner := NewTree(memory.New(), &config.TreeConfig{MaxLeafSize: 3, MaxInternalSize: 3})
	outer := NewTree(inner, &config.TreeConfig{MaxLeafSize: 3, MaxInternalSize: 3})

	require.NoError(t, outer.Set([]byte("a"), []byte("1")))
	require.NoError(t, outer.Set([]byte("b"), []byte("2")))

	v, ok, err := outer.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	pairs, err := outer.List(okv.ListBounds{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, pairKeys(pairs))
}

// The metadata literals below name root "lfmissing"; []byte fields are
// base64 in JSON, so root_id holds its base64 form.
func TestStrictCorruptionReturnsError(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Write(okv.Batch{Set: []okv.Pair{{Key: metadataKey, Value: []byte(`{"root_id":"bGZtaXNzaW5n","height":0}`)}}}))

	tr := NewTree(store, &config.TreeConfig{StrictCorruption: true})
	_, _, err := tr.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrCorruption)
}

func TestNonStrictCorruptionToleratesMissingNode(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Write(okv.Batch{Set: []okv.Pair{{Key: metadataKey, Value: []byte(`{"root_id":"bGZtaXNzaW5n","height":0}`)}}}))

	tr := NewTree(store, &config.TreeConfig{})
	v, ok, err := tr.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func pairKeys(pairs []okv.Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = string(p.Key)
	}
	return out
}
