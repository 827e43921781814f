package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// detectFormat picks the decoder by extension. Other extensions (tgrelay.conf,
// a pipe) are JSON when the first non-blank byte opens an object, YAML otherwise.
func detectFormat(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '{' {
		return formatJSON
	}
	return formatYAML
}

// toJSON turns a config document into JSON so both formats go through the
// strict decoder in Decode.
func toJSON(name string, data []byte) ([]byte, string, error) {
	format := detectFormat(name, data)
	if format == formatJSON {
		return data, format, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, format, fmt.Errorf("yaml: %w", err)
	}
	if v == nil {
		// Empty document means all defaults.
		return []byte("{}"), format, nil
	}
	j, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, format, fmt.Errorf("yaml to json: %w", err)
	}
	return j, format, nil
}

// stringKeys rewrites non-string map keys (yaml allows `1: x`) so json.Marshal accepts them.
func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return in
	}
}
