package summarizer

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// Formatter converts a Summary to text.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc adapts a function to Formatter.
type FormatFunc func(summary *Summary) string

func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// JSONFormatter renders the summary as indented JSON, with the derived
// bitrate and speed included.
var JSONFormatter = FormatFunc(func(s *Summary) string {
	data, err := json.MarshalIndent(struct {
		*Summary
		Bitrate float64 `json:"bitrate"`
		Speed   float64 `json:"speed"`
	}{s, s.Bitrate(), s.Speed()}, "", "  ")
	if err != nil {
		return "{}\n"
	}
	return string(data) + "\n"
})

// ForPath picks a formatter from the file extension: JSON for .json,
// Markdown otherwise.
func ForPath(path string) Formatter {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSONFormatter
	}
	return NewMarkdownFormatter()
}
