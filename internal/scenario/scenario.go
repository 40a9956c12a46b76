// Package scenario holds market snapshots and the sources that produce them.
package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// DayKey is the risk factor holding the day index of a snapshot
const DayKey = "DAY"

// Scenario is an immutable snapshot of risk factor values.
// Seq is the ordinal of the snapshot within the sequence that produced it.
type Scenario struct {
	Seq    int
	values map[string]float64
}

// New creates a scenario from a copy of values
func New(seq int, values map[string]float64) Scenario {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Scenario{Seq: seq, values: cp}
}

// Get returns the value of key or a MissingRiskFactor error
func (s Scenario) Get(key string) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, errors.MissingRiskFactor(key)
	}
	return v, nil
}

// Lookup returns the value of key and whether it is present
func (s Scenario) Lookup(key string) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Day returns the day index of the snapshot
func (s Scenario) Day() (float64, error) {
	return s.Get(DayKey)
}

// Len returns the number of risk factors
func (s Scenario) Len() int {
	return len(s.values)
}

// Keys returns the risk factor identifiers in sorted order
func (s Scenario) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the risk factor values
func (s Scenario) Values() map[string]float64 {
	cp := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// With returns a new scenario with key set to value
func (s Scenario) With(key string, value float64) Scenario {
	next := New(s.Seq, s.values)
	next.values[key] = value
	return next
}

// Merge returns a new scenario with every entry of overrides applied
func (s Scenario) Merge(overrides map[string]float64) Scenario {
	next := New(s.Seq, s.values)
	for k, v := range overrides {
		next.values[k] = v
	}
	return next
}

// Equal reports whether both snapshots hold the same risk factors and values
func (s Scenario) Equal(other Scenario) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for k, v := range s.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (s Scenario) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("#%d{", s.Seq))
	for i, k := range s.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%s: %g", k, s.values[k]))
	}
	b.WriteString("}")
	return b.String()
}
