// Package shock implements deterministic transformations of market snapshots.
// Shocks never mutate their input; combinators build new shocks from existing ones.
package shock

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Shock transforms a snapshot into a perturbed snapshot.
// ApplyFrame must give, row by row, the same result as Apply.
type Shock interface {
	Apply(s scenario.Scenario) (scenario.Scenario, error)
	ApplyFrame(f *scenario.Frame) (*scenario.Frame, error)
	String() string
}

type identity struct{}

// Identity returns the shock that leaves snapshots unchanged
func Identity() Shock { return identity{} }

func (identity) Apply(s scenario.Scenario) (scenario.Scenario, error) { return s, nil }

func (identity) ApplyFrame(f *scenario.Frame) (*scenario.Frame, error) { return f, nil }

func (identity) String() string { return "identity" }

type absolute struct {
	key   string
	value float64
}

// Absolute overrides one risk factor with a fixed value
func Absolute(key string, value float64) Shock {
	return absolute{key: key, value: value}
}

func (a absolute) Apply(s scenario.Scenario) (scenario.Scenario, error) {
	return s.With(a.key, a.value), nil
}

func (a absolute) ApplyFrame(f *scenario.Frame) (*scenario.Frame, error) {
	out := f.Clone()
	col := make([]float64, f.Rows())
	for i := range col {
		col[i] = a.value
	}
	if err := out.Set(a.key, col); err != nil {
		return nil, err
	}
	return out, nil
}

func (a absolute) String() string { return fmt.Sprintf("%s=%g", a.key, a.value) }

type relative struct {
	key    string
	factor float64
}

// Relative multiplies one risk factor by factor. The factor must exist in the snapshot.
func Relative(key string, factor float64) Shock {
	return relative{key: key, factor: factor}
}

func (r relative) Apply(s scenario.Scenario) (scenario.Scenario, error) {
	v, err := s.Get(r.key)
	if err != nil {
		return scenario.Scenario{}, err
	}
	return s.With(r.key, v*r.factor), nil
}

func (r relative) ApplyFrame(f *scenario.Frame) (*scenario.Frame, error) {
	col, err := f.Column(r.key)
	if err != nil {
		return nil, err
	}
	for i := range col {
		col[i] *= r.factor
	}
	out := f.Clone()
	if err := out.Set(r.key, col); err != nil {
		return nil, err
	}
	return out, nil
}

func (r relative) String() string { return fmt.Sprintf("%s*=%g", r.key, r.factor) }

type replace struct {
	values map[string]float64
}

// Replace merges a table of overrides into the snapshot
func Replace(values map[string]float64) Shock {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return replace{values: cp}
}

func (r replace) Apply(s scenario.Scenario) (scenario.Scenario, error) {
	return s.Merge(r.values), nil
}

func (r replace) ApplyFrame(f *scenario.Frame) (*scenario.Frame, error) {
	out := f.Clone()
	for k, v := range r.values {
		col := make([]float64, f.Rows())
		for i := range col {
			col[i] = v
		}
		if err := out.Set(k, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r replace) String() string {
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, r.values[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type combined struct {
	shocks []Shock
}

// Combine applies shocks in order; each shock sees the output of the previous one
func Combine(shocks ...Shock) Shock {
	flat := make([]Shock, 0, len(shocks))
	for _, s := range shocks {
		switch v := s.(type) {
		case nil, identity:
		case combined:
			flat = append(flat, v.shocks...)
		default:
			flat = append(flat, s)
		}
	}
	switch len(flat) {
	case 0:
		return Identity()
	case 1:
		return flat[0]
	}
	return combined{shocks: flat}
}

func (c combined) Apply(s scenario.Scenario) (scenario.Scenario, error) {
	var err error
	for _, sh := range c.shocks {
		if s, err = sh.Apply(s); err != nil {
			return scenario.Scenario{}, err
		}
	}
	return s, nil
}

func (c combined) ApplyFrame(f *scenario.Frame) (*scenario.Frame, error) {
	var err error
	for _, sh := range c.shocks {
		if f, err = sh.ApplyFrame(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (c combined) String() string {
	parts := make([]string, len(c.shocks))
	for i, sh := range c.shocks {
		parts[i] = sh.String()
	}
	return strings.Join(parts, " + ")
}

type scaled struct {
	factor float64
	shock  Shock
}

// Scale blends between the identity and s: result = original + factor*(shocked - original)
// over the keys of the original snapshot. factor 0 is the identity, 1 is s itself.
func Scale(factor float64, s Shock) Shock {
	if s == nil {
		s = Identity()
	}
	return scaled{factor: factor, shock: s}
}

func (sc scaled) Apply(s scenario.Scenario) (scenario.Scenario, error) {
	shocked, err := sc.shock.Apply(s)
	if err != nil {
		return scenario.Scenario{}, err
	}
	values := s.Values()
	for k, orig := range values {
		v, err := shocked.Get(k)
		if err != nil {
			return scenario.Scenario{}, err
		}
		values[k] = orig + sc.factor*(v-orig)
	}
	return scenario.New(s.Seq, values), nil
}

func (sc scaled) ApplyFrame(f *scenario.Frame) (*scenario.Frame, error) {
	shocked, err := sc.shock.ApplyFrame(f)
	if err != nil {
		return nil, err
	}
	return f.Blend(shocked, sc.factor)
}

func (sc scaled) String() string {
	return fmt.Sprintf("%g*(%s)", sc.factor, sc.shock)
}

type funcShock struct {
	name string
	fn   func(scenario.Scenario) (scenario.Scenario, error)
}

// Func adapts a plain function. Frames are shocked row by row.
func Func(name string, fn func(scenario.Scenario) (scenario.Scenario, error)) Shock {
	return funcShock{name: name, fn: fn}
}

func (f funcShock) Apply(s scenario.Scenario) (scenario.Scenario, error) {
	return f.fn(s)
}

func (f funcShock) ApplyFrame(frame *scenario.Frame) (*scenario.Frame, error) {
	rows := frame.Scenarios()
	for i, s := range rows {
		shocked, err := f.fn(s)
		if err != nil {
			return nil, errors.Wrapf(err, "shock %s on scenario %d", f.name, s.Seq)
		}
		shocked.Seq = s.Seq
		rows[i] = shocked
	}
	return scenario.FromScenarios(rows), nil
}

func (f funcShock) String() string { return f.name }
