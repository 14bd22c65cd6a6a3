package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"plugup/internal/domain"
	"plugup/internal/selector"
)

const missing = "-"

var header = []string{"Plugin", "Name", "New Version", "New Release", "Maturity"}

// Record is one report line as written by the structured formats. Name is
// the component key; DisplayName is the human name shown in text rows.
type Record struct {
	Name        string          `json:"name"        yaml:"name"`
	DisplayName string          `json:"displayname" yaml:"displayname"`
	Component   string          `json:"component"   yaml:"component"`
	Version     domain.Version  `json:"version"     yaml:"version"`
	Release     string          `json:"release"     yaml:"release"`
	Maturity    domain.Maturity `json:"maturity"    yaml:"maturity"`
	URL         string          `json:"url"         yaml:"url"`
	Download    string          `json:"download"    yaml:"download"`
	DownloadMD5 string          `json:"downloadmd5" yaml:"downloadmd5"`
}

// Records turns a report into records in report order. displayName maps a
// component to its human name.
func Records(report selector.Report, displayName func(component string) string) []Record {
	entries := report.Entries()
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		name := e.Component
		if displayName != nil {
			name = displayName(e.Component)
		}
		records = append(records, Record{
			Name:        e.Component,
			DisplayName: name,
			Component:   e.Component,
			Version:     e.Update.Version,
			Release:     e.Update.Release,
			Maturity:    e.Update.Maturity,
			URL:         e.Update.URL,
			Download:    e.Update.Download,
			DownloadMD5: e.Update.DownloadMD5,
		})
	}
	return records
}

// WriteReport writes records to w in the given format. FormatNone writes
// nothing.
func WriteReport(w io.Writer, format Format, records []Record) error {
	switch format {
	case FormatText:
		return writeText(w, records)
	case FormatTable:
		return writeTable(w, records)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if records == nil {
			records = []Record{}
		}
		return encoder.Encode(records)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if records == nil {
			records = []Record{}
		}
		if err := encoder.Encode(records); err != nil {
			return err
		}
		return encoder.Close()
	case FormatNone:
		return nil
	default:
		return fmt.Errorf("invalid output format %q", string(format))
	}
}

func writeText(w io.Writer, records []Record) error {
	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", header[0], header[1], header[2], header[3], header[4]); err != nil {
		return err
	}
	for _, r := range records {
		row := cells(r)
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3], row[4]); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, records []Record) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{header[0], header[1], header[2], header[3], header[4]})
	for _, r := range records {
		row := cells(r)
		t.AppendRow(table.Row{row[0], row[1], row[2], row[3], row[4]})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
	return nil
}

func cells(r Record) [5]string {
	version := missing
	if !r.Version.IsZero() {
		version = r.Version.String()
	}
	release := missing
	if r.Release != "" {
		release = r.Release
	}
	name := r.DisplayName
	if name == "" {
		name = r.Component
	}
	return [5]string{r.Component, name, version, release, r.Maturity.String()}
}
