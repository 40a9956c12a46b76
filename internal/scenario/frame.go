package scenario

import (
	"fmt"
	"sort"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

type column struct {
	values  []float64
	present []bool
}

func (c *column) clone() *column {
	return &column{
		values:  append([]float64(nil), c.values...),
		present: append([]bool(nil), c.present...),
	}
}

// Frame is a columnar batch of scenarios. Row i corresponds to the i-th scenario
// it was built from. Frames are mutated only through Set; shocks work on clones.
type Frame struct {
	seqs    []int
	columns map[string]*column
}

// FromScenarios materializes scenarios into a frame
func FromScenarios(scenarios []Scenario) *Frame {
	n := len(scenarios)
	f := &Frame{
		seqs:    make([]int, n),
		columns: make(map[string]*column),
	}
	for i, s := range scenarios {
		f.seqs[i] = s.Seq
		for k, v := range s.values {
			col, ok := f.columns[k]
			if !ok {
				col = &column{values: make([]float64, n), present: make([]bool, n)}
				f.columns[k] = col
			}
			col.values[i] = v
			col.present[i] = true
		}
	}
	return f
}

// Rows returns the number of scenarios in the frame
func (f *Frame) Rows() int {
	return len(f.seqs)
}

// Seqs returns the sequence numbers of the rows
func (f *Frame) Seqs() []int {
	return append([]int(nil), f.seqs...)
}

// Keys returns every risk factor present in at least one row, sorted
func (f *Frame) Keys() []string {
	keys := make([]string, 0, len(f.columns))
	for k := range f.columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present in at least one row
func (f *Frame) Has(key string) bool {
	_, ok := f.columns[key]
	return ok
}

// Column returns a copy of the values of key. Every row must carry the key.
func (f *Frame) Column(key string) ([]float64, error) {
	col, ok := f.columns[key]
	if !ok {
		if f.Rows() == 0 {
			return []float64{}, nil
		}
		return nil, errors.MissingRiskFactor(key)
	}
	for i, p := range col.present {
		if !p {
			return nil, errors.Wrapf(errors.MissingRiskFactor(key), "scenario %d", f.seqs[i])
		}
	}
	return append([]float64(nil), col.values...), nil
}

// ColumnOr returns the values of key, using def for rows that lack it
func (f *Frame) ColumnOr(key string, def float64) []float64 {
	out := make([]float64, f.Rows())
	col, ok := f.columns[key]
	for i := range out {
		if ok && col.present[i] {
			out[i] = col.values[i]
		} else {
			out[i] = def
		}
	}
	return out
}

// Set overwrites key in every row
func (f *Frame) Set(key string, values []float64) error {
	if len(values) != f.Rows() {
		return errors.InvalidArgument(fmt.Sprintf("column %q has %d values, frame has %d rows", key, len(values), f.Rows()))
	}
	present := make([]bool, len(values))
	for i := range present {
		present[i] = true
	}
	f.columns[key] = &column{values: append([]float64(nil), values...), present: present}
	return nil
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	cp := &Frame{
		seqs:    append([]int(nil), f.seqs...),
		columns: make(map[string]*column, len(f.columns)),
	}
	for k, c := range f.columns {
		cp.columns[k] = c.clone()
	}
	return cp
}

// Row rebuilds the i-th scenario
func (f *Frame) Row(i int) Scenario {
	values := make(map[string]float64, len(f.columns))
	for k, c := range f.columns {
		if c.present[i] {
			values[k] = c.values[i]
		}
	}
	return Scenario{Seq: f.seqs[i], values: values}
}

// Scenarios rebuilds every row
func (f *Frame) Scenarios() []Scenario {
	out := make([]Scenario, f.Rows())
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Blend returns a frame over the keys of f where each value is
// f + factor*(shocked - f). shocked must carry every value f carries.
func (f *Frame) Blend(shocked *Frame, factor float64) (*Frame, error) {
	if shocked.Rows() != f.Rows() {
		return nil, errors.InvalidArgument(fmt.Sprintf("cannot blend frames of %d and %d rows", f.Rows(), shocked.Rows()))
	}
	out := f.Clone()
	for k, col := range out.columns {
		other, ok := shocked.columns[k]
		for i, p := range col.present {
			if !p {
				continue
			}
			if !ok || !other.present[i] {
				return nil, errors.Wrapf(errors.MissingRiskFactor(k), "shocked scenario %d", f.seqs[i])
			}
			col.values[i] += factor * (other.values[i] - col.values[i])
		}
	}
	return out, nil
}
