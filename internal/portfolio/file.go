package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// MarshalYAML encodes an asset tree as YAML
func MarshalYAML(a Asset) ([]byte, error) {
	return yaml.Marshal(Encode(a))
}

// UnmarshalYAML decodes an asset tree from YAML
func UnmarshalYAML(data []byte) (Asset, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "failed to parse portfolio YAML: %v", err)
	}
	return Decode(m)
}

// MarshalJSON encodes an asset tree as indented JSON
func MarshalJSON(a Asset) ([]byte, error) {
	return json.MarshalIndent(Encode(a), "", "  ")
}

// UnmarshalJSON decodes an asset tree from JSON
func UnmarshalJSON(data []byte) (Asset, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "failed to parse portfolio JSON: %v", err)
	}
	return Decode(m)
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	}
	return "", errors.InvalidArgument(fmt.Sprintf("unsupported portfolio file %q: expected .yaml, .yml or .json", path))
}

// LoadFile reads a portfolio file. The format follows the extension.
func LoadFile(path string) (Asset, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read portfolio %s", path)
	}
	if format == "json" {
		return UnmarshalJSON(data)
	}
	return UnmarshalYAML(data)
}

// SaveFile writes a portfolio file. The format follows the extension.
func SaveFile(path string, a Asset) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	if format == "json" {
		data, err = MarshalJSON(a)
	} else {
		data, err = MarshalYAML(a)
	}
	if err != nil {
		return errors.Wrap(err, "failed to encode portfolio")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write portfolio %s", path)
	}
	return nil
}
