package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/pipeline"
)

type jsonItem struct {
	File   string               `json:"file"`
	Scan   *pipeline.ScanResult `json:"scan,omitempty"`
	Output string               `json:"output,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(items []Item, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(items)
	case "csv":
		return formatCSV(items)
	default: // text
		return formatText(items)
	}
}

func formatJSON(items []Item) (string, error) {
	out := struct {
		Images []jsonItem `json:"images"`
	}{Images: make([]jsonItem, len(items))}

	for i, it := range items {
		out.Images[i] = jsonItem{File: it.Source, Scan: it.Result, Output: it.Output}
		if it.Err != nil {
			out.Images[i].Error = it.Err.Error()
		}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	return string(b), err
}

// formatCSV lists one row per successfully scanned input.
func formatCSV(items []Item) (string, error) {
	results := make([]*pipeline.ScanResult, 0, len(items))
	for _, it := range items {
		if it.Result != nil {
			results = append(results, it.Result)
		}
	}
	return pipeline.ToCSVResults(results)
}

func formatText(items []Item) (string, error) {
	var output strings.Builder
	for i, it := range items {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", it.Source)
		if it.Err != nil {
			fmt.Fprintf(&output, "error: %v\n", it.Err)
			continue
		}
		if it.Result == nil {
			continue
		}
		r := *it.Result
		r.Source = ""
		text, err := pipeline.ToPlainTextResult(&r)
		if err != nil {
			return "", err
		}
		output.WriteString(text)
		output.WriteString("\n")
		if it.Output != "" {
			fmt.Fprintf(&output, "  saved to %s\n", it.Output)
		}
	}
	return output.String(), nil
}
