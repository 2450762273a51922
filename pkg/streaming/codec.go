package streaming

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nemanja-m/mrchain/pkg/core"
)

const Separator = "\t"

var ErrMalformedRecord = errors.New("malformed record")

// TabCodec is the default line format: key and value joined by one tab.
// Decoding splits at the first tab only, so values may contain tabs.
//
// A line without a tab is rejected with ErrMalformedRecord unless KeyOnly
// is set, in which case the whole line becomes the key and the value is
// empty.
type TabCodec struct {
	KeyOnly bool
}

func (c TabCodec) Encode(kv core.KeyValue) string {
	return kv.Key + Separator + kv.Value
}

func (c TabCodec) Decode(line string) (core.KeyValue, error) {
	key, value, found := strings.Cut(line, Separator)
	if !found {
		if c.KeyOnly {
			return core.KeyValue{Key: line}, nil
		}
		return core.KeyValue{}, fmt.Errorf("%w: no tab separator in %q", ErrMalformedRecord, truncate(line, 64))
	}
	return core.KeyValue{Key: key, Value: value}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
