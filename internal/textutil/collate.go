package textutil

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NaturalOrder compares names so that "ch2" sorts before "ch10". It is safe
// for concurrent use.
type NaturalOrder struct {
	mu sync.Mutex
	c  *collate.Collator
}

// NewNaturalOrder returns a case-insensitive, numeric-aware comparer.
func NewNaturalOrder() *NaturalOrder {
	return &NaturalOrder{c: collate.New(language.Und, collate.Numeric, collate.IgnoreCase)}
}

// Compare returns -1, 0 or 1. Names that collate equally fall back to a byte
// comparison so the order is total.
func (o *NaturalOrder) Compare(a, b string) int {
	o.mu.Lock()
	r := o.c.CompareString(a, b)
	o.mu.Unlock()
	if r != 0 {
		return r
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
