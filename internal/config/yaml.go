package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// The daemon accepts its config as YAML (config.yaml, the documented
// default) or JSON. Rather than maintaining two strict decoders, YAML
// input is coerced to JSON bytes and both formats run through the one
// json.Decoder with DisallowUnknownFields, so a typoed section name is
// rejected identically in either format.

// coerceToJSONBytes returns (jsonBytes, format, err) where format is
// "json" or "yaml", chosen by file extension.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	if !isYAMLPath(path) {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	j, err := json.Marshal(stringifyKeys(v))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// stringifyKeys rewrites every map key to a string so the YAML value
// tree can be JSON-marshaled (YAML allows non-string keys).
func stringifyKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringifyKeys(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = stringifyKeys(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = stringifyKeys(x[i])
		}
		return x
	default:
		return in
	}
}
