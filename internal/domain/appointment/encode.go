package appointment

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by Encode.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode writes records to w in the given format. JSON output is an array
// indented by two spaces; a nil or empty slice is written as [].
func Encode(w io.Writer, records []Appointment, format string) error {
	if records == nil {
		records = []Appointment{}
	}

	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("appointment: encode json: %w", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("appointment: write output: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("appointment: encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("appointment: unsupported output format %q", format)
	}
}
