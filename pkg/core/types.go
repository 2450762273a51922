package core

import "iter"

// MapFunc turns one input record into zero or more output records. On the
// streaming map path the key is always empty and value is the raw line.
type MapFunc func(key, value string) iter.Seq[KeyValue]

// ReduceFunc aggregates one group of values sharing a key. The values
// sequence is single-pass: it can be ranged over once, front to back.
type ReduceFunc func(key string, values iter.Seq[string]) iter.Seq[KeyValue]

// HookFunc is a stage lifecycle hook (setup, post-map, post-reduce).
type HookFunc func() error

type KeyValue struct {
	Key   string
	Value string
}

// Emit is a convenience for map and reduce functions that produce a fixed
// list of records.
func Emit(kvs ...KeyValue) iter.Seq[KeyValue] {
	return func(yield func(KeyValue) bool) {
		for _, kv := range kvs {
			if !yield(kv) {
				return
			}
		}
	}
}

// Codec converts records to and from the lines of the streaming protocol.
type Codec interface {
	Encode(kv KeyValue) string
	Decode(line string) (KeyValue, error)
}
