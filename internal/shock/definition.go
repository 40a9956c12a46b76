package shock

import (
	"fmt"
	"strings"

	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Definition is the declarative form of a shock used by configuration files and the API
type Definition struct {
	Type   string             `json:"type" yaml:"type" mapstructure:"type"`
	Key    string             `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`
	Value  float64            `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Values map[string]float64 `json:"values,omitempty" yaml:"values,omitempty" mapstructure:"values"`
	Shocks []Definition       `json:"shocks,omitempty" yaml:"shocks,omitempty" mapstructure:"shocks"`
}

// Build turns the definition into a shock. For "scale" Value is the blend factor
// and Shocks the combined inner shock.
func (d Definition) Build() (Shock, error) {
	switch strings.ToLower(d.Type) {
	case "", "identity", "none":
		return Identity(), nil
	case "absolute":
		if d.Key == "" {
			return nil, errors.InvalidArgument("absolute shock needs a key")
		}
		return Absolute(d.Key, d.Value), nil
	case "relative":
		if d.Key == "" {
			return nil, errors.InvalidArgument("relative shock needs a key")
		}
		return Relative(d.Key, d.Value), nil
	case "replace":
		return Replace(d.Values), nil
	case "combine":
		return BuildAll(d.Shocks)
	case "scale":
		inner, err := BuildAll(d.Shocks)
		if err != nil {
			return nil, err
		}
		return Scale(d.Value, inner), nil
	case "named":
		return Named(d.Key)
	default:
		return nil, errors.InvalidArgument(fmt.Sprintf("unknown shock type %q", d.Type))
	}
}

// BuildAll combines the definitions in order
func BuildAll(defs []Definition) (Shock, error) {
	shocks := make([]Shock, 0, len(defs))
	for i, d := range defs {
		s, err := d.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "shock %d", i)
		}
		shocks = append(shocks, s)
	}
	return Combine(shocks...), nil
}

var presets = map[string]func() Shock{
	"none":             Identity,
	"danske-100":       func() Shock { return Absolute(scenario.DanskeTicker, 100.0) },
	"banks-minus-1pct": func() Shock { return Relative(scenario.NordeaTicker, 0.99) },
}

// Named returns a preset stress shock
func Named(name string) (Shock, error) {
	build, ok := presets[name]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("unknown shock preset %q", name))
	}
	return build(), nil
}
