package streaming

import (
	"cmp"
	"iter"
	"slices"

	"github.com/nemanja-m/mrchain/pkg/core"
)

// GroupKeys calls onKey once for every maximal run of consecutive records
// with equal keys. Grouping is by adjacency only: equal keys separated by a
// different key form separate groups, which is what a merge-sorted shuffle
// delivers.
//
// The values sequence is forward-only and can be ranged over once. Values
// left unconsumed by onKey are skipped before the next group starts.
func GroupKeys(r Reader, onKey func(key string, values iter.Seq[string]) error) error {
	hasRow := r.Next()
	for hasRow {
		key := r.Record().Key
		used := false

		values := func(yield func(string) bool) {
			if used {
				return
			}
			used = true
			for hasRow && r.Record().Key == key {
				value := r.Record().Value
				hasRow = r.Next()
				if !yield(value) {
					return
				}
			}
		}

		if err := onKey(key, values); err != nil {
			return err
		}

		for hasRow && r.Record().Key == key {
			hasRow = r.Next()
		}
	}
	return r.Err()
}

// SortRecords orders records by key, then by value. The order is total, so
// the result does not depend on the order records were emitted in.
func SortRecords(records []core.KeyValue) {
	slices.SortFunc(records, func(left, right core.KeyValue) int {
		if c := cmp.Compare(left.Key, right.Key); c != 0 {
			return c
		}
		return cmp.Compare(left.Value, right.Value)
	})
}
