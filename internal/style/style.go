// Package style maps feature property values to display colors.
package style

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/mohammed-shakir/obras-dashboard/internal/props"
)

type Kind string

const (
	Categorical Kind = "categorical"
	Status      Kind = "status"
	Numerical   Kind = "numerical"
)

func (k Kind) Valid() bool {
	switch k {
	case Categorical, Status, Numerical:
		return true
	}
	return false
}

// Range bounds are inclusive.
type Range struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Color string  `json:"color"`
	Label string  `json:"label,omitempty"`
}

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

type Rule struct {
	Property string            `json:"property"`
	Kind     Kind              `json:"kind"`
	Colors   map[string]string `json:"colors,omitempty"`
	Ranges   []Range           `json:"ranges,omitempty"`
	Palette  []string          `json:"palette,omitempty"`
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func ValidColor(s string) bool { return hexColor.MatchString(s) }

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Property) == "" {
		return errors.New("property is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	for v, c := range r.Colors {
		if !ValidColor(c) {
			return fmt.Errorf("color for %q: %q is not #RRGGBB", v, c)
		}
	}
	for i, rg := range r.Ranges {
		if rg.Min > rg.Max {
			return fmt.Errorf("range %d: min > max", i)
		}
		if !ValidColor(rg.Color) {
			return fmt.Errorf("range %d: %q is not #RRGGBB", i, rg.Color)
		}
	}
	return nil
}

// Color resolves the color for the feature properties p, falling back to def
// when the value is missing or has no mapping.
func (r Rule) Color(p map[string]any, def string) string {
	v, ok := p[r.Property]
	if !ok || v == nil {
		return def
	}
	return r.ColorFor(v, def)
}

// ColorFor resolves the color of a single property value.
func (r Rule) ColorFor(v any, def string) string {
	if v == nil {
		return def
	}
	switch r.Kind {
	case Status:
		return lookup(r.Colors, v, def)
	case Categorical:
		if len(r.Colors) > 0 {
			return lookup(r.Colors, v, def)
		}
		s := props.String(v)
		if s == "" {
			return def
		}
		pal := r.Palette
		if len(pal) == 0 {
			pal = CategoricalPalette
		}
		return pal[PaletteIndex(s, len(pal))]
	case Numerical:
		f, ok := props.Float(v)
		if !ok {
			return def
		}
		if len(r.Ranges) > 0 {
			for _, rg := range r.Ranges {
				if rg.contains(f) {
					return rg.Color
				}
			}
			return def
		}
		return Thermal(f)
	default:
		return def
	}
}

func lookup(table map[string]string, v any, def string) string {
	if c, ok := table[props.String(v)]; ok {
		return c
	}
	return def
}

// Hash is the 32-bit polynomial string hash h = h*31 + c over UTF-16 code
// units with wrapping arithmetic.
func Hash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}

// PaletteIndex reduces Hash(s) to [0, n).
func PaletteIndex(s string, n int) int {
	if n <= 0 {
		return 0
	}
	h := int64(Hash(s))
	if h < 0 {
		h = -h
	}
	return int(h % int64(n))
}

// Thermal maps v on a 0..100 scale into the thermal palette.
func Thermal(v float64) string {
	if math.IsNaN(v) {
		return ThermalPalette[0]
	}
	n := math.Min(math.Max(v/100, 0), 1)
	idx := int(math.Floor(n * float64(len(ThermalPalette)-1)))
	return ThermalPalette[idx]
}

type LegendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Legend lists entries for the rule. values are the distinct observed values
// used for hashed categorical rules.
func (r Rule) Legend(values []string, def string) []LegendEntry {
	var out []LegendEntry
	switch {
	case r.Kind == Numerical && len(r.Ranges) > 0:
		for _, rg := range r.Ranges {
			label := rg.Label
			if label == "" {
				label = fmt.Sprintf("%g – %g", rg.Min, rg.Max)
			}
			out = append(out, LegendEntry{Label: label, Color: rg.Color})
		}
	case r.Kind == Numerical:
		step := 100.0 / float64(len(ThermalPalette)-1)
		for i, c := range ThermalPalette {
			out = append(out, LegendEntry{Label: fmt.Sprintf("%.0f", float64(i)*step), Color: c})
		}
	case len(r.Colors) > 0:
		keys := make([]string, 0, len(r.Colors))
		for k := range r.Colors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, LegendEntry{Label: k, Color: r.Colors[k]})
		}
	default:
		vs := append([]string(nil), values...)
		sort.Strings(vs)
		for _, v := range vs {
			out = append(out, LegendEntry{Label: v, Color: r.ColorFor(v, def)})
		}
	}
	return out
}
