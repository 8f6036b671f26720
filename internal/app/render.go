package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	yaml "gopkg.in/yaml.v3"
)

// Render encodes results as a YAML or JSON list, or as flat name="value"
// lines with format "env".
func Render(results []Result, format string) ([]byte, error) {
	if results == nil {
		results = []Result{}
	}
	switch format {
	case "", "yaml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case "json":
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(b, '\n'), nil
	case "env":
		return renderEnv(results), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// renderEnv writes one block per result: a source comment followed by the
// record's fields in attribute order. Blocks are separated by a blank line.
func renderEnv(results []Result) []byte {
	var buf bytes.Buffer
	for i, r := range results {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "# %s (%s)\n", r.Source, r.Node)
		if r.Error != "" {
			fmt.Fprintf(&buf, "# error: %s\n", r.Error)
		}
		for _, f := range r.Record.Fields() {
			buf.WriteString(f.Name)
			buf.WriteByte('=')
			buf.WriteString(strconv.Quote(f.Value))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}
