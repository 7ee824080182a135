// Package report renders sync summaries as tables, JSON or YAML.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
	"github.com/agentstation/assetsync/pkg/sync"
)

// Format types for output.
type Format string

const (
	// FormatTable renders human-readable tables.
	FormatTable Format = "table"
	// FormatJSON renders indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat converts s to a Format. An empty string is returned as is.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case FormatTable, FormatJSON, FormatYAML, "":
		return format, nil
	default:
		return "", errors.NewValidationError("format", s, "must be one of: table, json, yaml")
	}
}

// DetectFormat returns explicit when set, a table when w is a terminal and
// JSON otherwise.
func DetectFormat(explicit Format, w io.Writer) Format {
	if explicit != "" {
		return explicit
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return FormatTable
	}
	return FormatJSON
}

// Table is a header row plus data rows.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Align optionally sets per-column alignment.
	Align []tw.Align
}

// Options tunes table rendering.
type Options struct {
	// Devices adds one row per processed device.
	Devices bool
}

// Render writes s to w in the given format.
func Render(w io.Writer, format Format, s *sync.Summary, opts Options) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	case FormatTable, "":
		return renderSummaryTables(w, s, opts)
	default:
		return errors.NewValidationError("format", string(format), "unsupported")
	}
}

// RenderValue writes any value as JSON or YAML. Tables fall back to YAML.
func RenderValue(w io.Writer, format Format, v any) error {
	if format == FormatJSON {
		return writeJSON(w, v)
	}
	return writeYAML(w, v)
}

// WriteFile saves s to path. The format follows the extension and
// defaults to JSON.
func WriteFile(path string, s *sync.Summary) error {
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapResource("create", "directory", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return errors.WrapResource("create", "report", path, err)
	}
	if err := Render(f, format, s, Options{}); err != nil {
		_ = f.Close()
		return errors.WrapResource("write", "report", path, err)
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func renderSummaryTables(w io.Writer, s *sync.Summary, opts Options) error {
	title := "Sync summary"
	if s.DryRun {
		title += " (dry run)"
	}
	status := "completed"
	if s.Aborted {
		status = "aborted: " + s.AbortReason
	}
	tables := []Table{{
		Title:   fmt.Sprintf("%s %s, %s in %.2fs", title, s.RunID, status, s.Duration.Seconds()),
		Headers: []string{"Outcome", "Count"},
		Rows: [][]string{
			{string(sync.OutcomeCreated), strconv.Itoa(s.Created)},
			{string(sync.OutcomeUpdated), strconv.Itoa(s.Updated)},
			{string(sync.OutcomeSkipped), strconv.Itoa(s.Skipped)},
			{string(sync.OutcomeFailed), strconv.Itoa(s.Failed)},
			{"total", strconv.Itoa(s.Total)},
		},
		Align: []tw.Align{tw.AlignLeft, tw.AlignRight},
	}}

	if len(s.Failures) > 0 {
		t := Table{Title: "Failures", Headers: []string{"Serial", "Reason"}}
		for _, f := range s.Failures {
			t.Rows = append(t.Rows, []string{f.Serial, f.Reason})
		}
		tables = append(tables, t)
	}

	if len(s.Models) > 0 {
		t := Table{Title: "Models", Headers: []string{"Model", "ID", "Category", "Fieldset", "Planned"}}
		for _, m := range s.Models {
			t.Rows = append(t.Rows, []string{
				m.Name, idOrDash(m.ID), idOrDash(m.CategoryID),
				strconv.FormatBool(m.FieldsetAssigned), strconv.FormatBool(m.Planned),
			})
		}
		tables = append(tables, t)
	}

	if opts.Devices && len(s.Results) > 0 {
		t := Table{Title: "Devices", Headers: []string{"Serial", "Asset Tag", "Model", "Outcome", "Asset ID", "Reason"}}
		for _, r := range s.Results {
			reason := r.Reason
			if reason == "" && len(r.Warnings) > 0 {
				reason = strings.Join(r.Warnings, "; ")
			}
			t.Rows = append(t.Rows, []string{r.Serial, r.AssetTag, r.Model, string(r.Outcome), idOrDash(r.AssetID), reason})
		}
		tables = append(tables, t)
	}

	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := RenderTable(w, t); err != nil {
			return err
		}
	}
	return nil
}

// RenderTable writes t with tablewriter.
func RenderTable(w io.Writer, t Table) error {
	if t.Title != "" {
		if _, err := fmt.Fprintln(w, t.Title); err != nil {
			return err
		}
	}
	config := tablewriter.Config{}
	if len(t.Align) > 0 {
		config.Header.Alignment = tw.CellAlignment{PerColumn: t.Align}
		config.Row.Alignment = tw.CellAlignment{PerColumn: t.Align}
	}
	table := tablewriter.NewTable(w, tablewriter.WithConfig(config))

	if len(t.Headers) > 0 {
		headers := make([]any, len(t.Headers))
		for i, h := range t.Headers {
			headers[i] = h
		}
		table.Header(headers...)
	}
	for _, row := range t.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

func idOrDash(id int) string {
	if id == 0 {
		return "-"
	}
	return strconv.Itoa(id)
}
