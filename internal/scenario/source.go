package scenario

import (
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Iterator yields scenarios one at a time. ok is false once the sequence is exhausted;
// logically infinite sequences never report exhaustion.
type Iterator interface {
	Next() (s Scenario, ok bool, err error)
}

// Source produces restartable scenario sequences. Every call to Scenarios starts over.
type Source interface {
	Scenarios() Iterator
}

// Finite is a source with a known number of scenarios
type Finite interface {
	Source
	Len() int
}

// Take reads at most n scenarios from it. n must be positive: callers bound every sequence.
func Take(it Iterator, n int) ([]Scenario, error) {
	if n <= 0 {
		return nil, errors.InvalidArgument("scenario count must be positive")
	}
	out := make([]Scenario, 0, min(n, 4096))
	for len(out) < n {
		s, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

// Bound returns the number of scenarios a consumer should draw from src given a
// requested count. Zero means "all" and is only valid for finite sources.
func Bound(src Source, count int) (int, error) {
	if f, ok := src.(Finite); ok {
		if count <= 0 || count > f.Len() {
			return f.Len(), nil
		}
		return count, nil
	}
	if count <= 0 {
		return 0, errors.InvalidArgument("an infinite scenario source needs a positive scenario count")
	}
	return count, nil
}

// Slice is a finite source over an in-memory list of scenarios
type Slice []Scenario

// Scenarios implements Source
func (s Slice) Scenarios() Iterator {
	return &sliceIterator{items: s}
}

// Len implements Finite
func (s Slice) Len() int {
	return len(s)
}

type sliceIterator struct {
	items []Scenario
	pos   int
}

func (it *sliceIterator) Next() (Scenario, bool, error) {
	if it.pos >= len(it.items) {
		return Scenario{}, false, nil
	}
	s := it.items[it.pos]
	it.pos++
	return s, true, nil
}
