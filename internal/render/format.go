// Package render writes update reports and command progress for the CLI.
package render

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Format selects how a report is written.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatNone  Format = "none"
)

var _ pflag.Value = (*Format)(nil)

// Formats lists every accepted format in help order.
var Formats = []Format{FormatText, FormatTable, FormatJSON, FormatYAML, FormatNone}

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid output format %q", s)
}

// Structured reports whether the format is meant for machines, in which case
// nothing else may be written to stdout.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}

// String implements pflag.Value.
func (f *Format) String() string {
	return string(*f)
}

// Set implements pflag.Value.
func (f *Format) Set(s string) error {
	parsed, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Type implements pflag.Value.
func (f *Format) Type() string {
	names := make([]string, len(Formats))
	for i, known := range Formats {
		names[i] = string(known)
	}
	return strings.Join(names, "|")
}
