package rectify

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Named document aspect ratios (long side / short side).
const (
	// AspectDIN476 is the ISO 216 / DIN 476-2 ratio shared by A- and B-series paper.
	AspectDIN476 = 1.4142
	// AspectANSILetter is 11in / 8.5in.
	AspectANSILetter = 1.2941
)

// ErrInvalidAspect is returned for aspect ratios that are not finite and positive.
var ErrInvalidAspect = errors.New("invalid aspect ratio")

// AspectPreset identifies a named aspect ratio. The numeric ids are stable
// and used in stored preferences.
type AspectPreset int

const (
	PresetDIN476     AspectPreset = 1
	PresetANSILetter AspectPreset = 2
)

// Ratio returns the width/height ratio of the preset.
func (p AspectPreset) Ratio() (float64, error) {
	switch p {
	case PresetDIN476:
		return AspectDIN476, nil
	case PresetANSILetter:
		return AspectANSILetter, nil
	default:
		return 0, fmt.Errorf("%w: unknown preset id %d", ErrInvalidAspect, int(p))
	}
}

func (p AspectPreset) String() string {
	switch p {
	case PresetDIN476:
		return "din476"
	case PresetANSILetter:
		return "ansi_letter"
	default:
		return "preset(" + strconv.Itoa(int(p)) + ")"
	}
}

// ValidateAspect checks that r can be used as a target ratio.
func ValidateAspect(r float64) error {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAspect, r)
	}
	return nil
}

// ParseAspect accepts a preset name, "none" (or empty) for no constraint, or
// a positive number.
func ParseAspect(s string) (*float64, error) {
	var r float64
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off", "free":
		return nil, nil //nolint:nilnil // nil means unconstrained
	case "din476", "din_476_2", "din-476", "iso216", "a4":
		r = AspectDIN476
	case "ansi_letter", "ansi-letter", "letter", "us_letter":
		r = AspectANSILetter
	default:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAspect, s)
		}
		r = v
	}
	if err := ValidateAspect(r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FormatAspect renders an aspect ratio the way ParseAspect reads it back.
func FormatAspect(r *float64) string {
	switch {
	case r == nil:
		return "none"
	case *r == AspectDIN476:
		return "din476"
	case *r == AspectANSILetter:
		return "ansi_letter"
	default:
		return strconv.FormatFloat(*r, 'g', -1, 64)
	}
}
