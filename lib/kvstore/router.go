package kvstore

import (
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

// Pair is a single key/value unit of work produced by Normalize
type Pair struct {
	Key   db.Key
	Value tensor.Value
}

// Normalize expands the keys and values of a batched call into independent pairs.
//
//   - one key, one value: one pair
//   - one key, N values: N pairs sharing the key (only if allowFanOut)
//   - M keys, M values: M pairs
//   - everything else: RetCArityMismatch
//
// Negative keys and nil values are rejected with RetCArityMismatch as well.
func Normalize(keys []db.Key, values []tensor.Value, allowFanOut bool) ([]Pair, error) {
	var pairs []Pair

	switch {
	case len(keys) == 0:
		return nil, store.NewError(store.RetCArityMismatch, "no keys given")

	case len(keys) == 1 && len(values) > 1:
		if !allowFanOut {
			return nil, store.Errorf(store.RetCArityMismatch, "key %d can not be paired with %d values", keys[0], len(values))
		}
		pairs = make([]Pair, len(values))
		for i, v := range values {
			pairs[i] = Pair{Key: keys[0], Value: v}
		}

	case len(keys) == len(values):
		pairs = make([]Pair, len(keys))
		for i := range keys {
			pairs[i] = Pair{Key: keys[i], Value: values[i]}
		}

	default:
		return nil, store.Errorf(store.RetCArityMismatch, "%d keys can not be paired with %d values", len(keys), len(values))
	}

	for _, p := range pairs {
		if p.Key < 0 {
			return nil, store.Errorf(store.RetCArityMismatch, "invalid key %d", p.Key)
		}
		if p.Value == nil {
			return nil, store.Errorf(store.RetCArityMismatch, "nil value for key %d", p.Key)
		}
	}
	return pairs, nil
}

// keyGroup holds all outputs requested for one key in a pull
type keyGroup struct {
	key  db.Key
	outs []tensor.Value
}

// groupByKey groups pairs by key in order of first appearance
func groupByKey(pairs []Pair) []keyGroup {
	index := make(map[db.Key]int, len(pairs))
	groups := make([]keyGroup, 0, len(pairs))
	for _, p := range pairs {
		i, ok := index[p.Key]
		if !ok {
			i = len(groups)
			index[p.Key] = i
			groups = append(groups, keyGroup{key: p.Key})
		}
		groups[i].outs = append(groups[i].outs, p.Value)
	}
	return groups
}
