// Package report renders analysis results as a text table, JSON or CycloneDX.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/CZERTAINLY/Sniffer/internal/model"
)

type Format string

const (
	FormatText      Format = "text"
	FormatJSON      Format = "json"
	FormatCycloneDX Format = "cyclonedx"
)

var Formats = []Format{FormatText, FormatJSON, FormatCycloneDX}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatJSON, FormatCycloneDX:
		return f, nil
	case "cdx":
		return FormatCycloneDX, nil
	}
	return "", fmt.Errorf("unsupported report format %q, use one of %v", s, Formats)
}

// File is the result of an analysis of one file.
type File struct {
	Name     string          `json:"file"`
	Strategy string          `json:"strategy"`
	Model    string          `json:"model,omitempty"`
	Findings []model.Finding `json:"findings"`
}

// Write renders files to w in the given format.
func Write(w io.Writer, format Format, files []File) error {
	switch format {
	case FormatText:
		return Text(w, files)
	case FormatJSON:
		return JSON(w, files)
	case FormatCycloneDX:
		return CycloneDX(w, files)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

func JSON(w io.Writer, files []File) error {
	out := make([]File, len(files))
	for i, f := range files {
		if f.Findings == nil {
			f.Findings = []model.Finding{}
		}
		out[i] = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
