package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNilResult = errors.New("nil result")

// ToJSONResult serializes a single ScanResult to pretty JSON.
func ToJSONResult(res *ScanResult) (string, error) {
	if res == nil {
		return "", errNilResult
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple ScanResult entries to pretty JSON.
func ToJSONResults(results []*ScanResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainTextResult renders one line per corner, or a "no document" line.
func ToPlainTextResult(res *ScanResult) (string, error) {
	if res == nil {
		return "", errNilResult
	}
	var sb strings.Builder
	if res.Source != "" {
		sb.WriteString(res.Source + ": ")
	}
	if !res.Found {
		sb.WriteString("no document found")
		return sb.String(), nil
	}
	fmt.Fprintf(&sb, "document %dx%d -> %dx%d", res.Width, res.Height, res.OutputW, res.OutputH)
	for i, name := range cornerNames {
		if i >= len(res.Normalized) || i >= len(res.Absolute) {
			break
		}
		n, a := res.Normalized[i], res.Absolute[i]
		fmt.Fprintf(&sb, "\n  %-12s %.4f,%.4f  (%.1f,%.1f)", name, n.X, n.Y, a.X, a.Y)
	}
	return sb.String(), nil
}

var cornerNames = [4]string{"top-left", "top-right", "bottom-right", "bottom-left"}

// ToCSVResults exports one row per image with its normalized corners.
func ToCSVResults(results []*ScanResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"source", "found"}
	for _, n := range cornerNames {
		header = append(header, n+"_x", n+"_y")
	}
	_ = w.Write(header)
	for _, r := range results {
		if r == nil {
			continue
		}
		row := []string{r.Source, strconv.FormatBool(r.Found)}
		for i := range cornerNames {
			if i < len(r.Normalized) {
				row = append(row, fmt.Sprintf("%.4f", r.Normalized[i].X), fmt.Sprintf("%.4f", r.Normalized[i].Y))
			} else {
				row = append(row, "", "")
			}
		}
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ValidateScanResult performs simple consistency checks.
func ValidateScanResult(res *ScanResult) error {
	if res == nil {
		return errNilResult
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	if !res.Found {
		return nil
	}
	if len(res.Normalized) != 4 || len(res.Absolute) != 4 {
		return fmt.Errorf("found result has %d/%d corners", len(res.Normalized), len(res.Absolute))
	}
	for i, p := range res.Normalized {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return fmt.Errorf("corner %d outside unit square", i)
		}
	}
	if res.OutputW <= 0 || res.OutputH <= 0 {
		return fmt.Errorf("invalid output size %dx%d", res.OutputW, res.OutputH)
	}
	return nil
}
