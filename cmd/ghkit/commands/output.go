package commands

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// writeStructured encodes v for the json and yaml output formats. It
// reports false for any other format so the caller can render a table.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		return true, writeJSON(w, v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return true, encoder.Encode(v)
	default:
		return false, nil
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
