// Package ordering assigns sparse position keys to members of ordered
// collections. Inserting between two items only needs one new value;
// renumbering a whole container is a maintenance operation.
//
// The allocator is a pure function of its inputs and holds no state.
// Serialization of concurrent moves is delegated to the persistence
// layer's per-key write.
package ordering

import (
	"sort"

	"collab-lab/domain"
	"collab-lab/errors"
)

// Step seeds newly appended positions. Multiples of 1000 leave enough
// headroom for roughly ten successive midpoint inserts between any two
// neighbours before a reindex becomes necessary.
const Step int64 = 1000

// Allocate returns a position strictly between after and before.
// A nil neighbour means the corresponding end of the container.
// When no integer remains between the two neighbours it returns
// ErrOrderPrecisionExhausted; the caller must reindex and retry.
func Allocate(after, before *int64) (int64, error) {
	switch {
	case after == nil && before == nil:
		return Step, nil
	case before == nil:
		return *after + Step, nil
	case after == nil:
		return *before - Step, nil
	}

	if *before-*after < 2 {
		return 0, errors.ErrOrderPrecisionExhausted
	}
	return *after + (*before-*after)/2, nil
}

// Reindex rewrites the container's positions to canonical multiples of
// Step, preserving the current order. Applying it twice yields the same
// result as applying it once.
func Reindex(items []domain.OrderedItem) []domain.OrderedItem {
	out := make([]domain.OrderedItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	for i := range out {
		out[i].Position = Step * int64(i+1)
	}
	return out
}
