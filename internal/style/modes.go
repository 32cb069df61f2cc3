package style

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

var CategoricalPalette = []string{
	"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#EC4899",
	"#14B8A6", "#F97316", "#6366F1", "#84CC16", "#06B6D4", "#A855F7",
}

// ThermalPalette runs cold to hot in 11 steps.
var ThermalPalette = []string{
	"#313695", "#4575B4", "#74ADD1", "#ABD9E9", "#E0F3F8", "#FFFFBF",
	"#FEE090", "#FDAE61", "#F46D43", "#D73027", "#A50026",
}

const DefaultColor = "#6B7280"

// Canonical execution statuses of a project unit.
const (
	StatusEnEjecucion    = "En ejecución"
	StatusTerminado      = "Terminado"
	StatusEnAlistamiento = "En alistamiento"
	StatusSuspendido     = "Suspendido"
	StatusInaugurado     = "Inaugurado"
	StatusLiquidado      = "Liquidado"
)

var StatusColors = map[string]string{
	StatusEnEjecucion:    "#10B981",
	StatusTerminado:      "#3B82F6",
	StatusEnAlistamiento: "#F59E0B",
	StatusSuspendido:     "#EF4444",
	StatusInaugurado:     "#8B5CF6",
	StatusLiquidado:      "#6B7280",
}

// Mode selects which record property drives per-feature coloring.
type Mode string

const (
	ModeNone             Mode = "none"
	ModeEstado           Mode = "estado"
	ModeTipoIntervencion Mode = "tipo_intervencion"
	ModeClaseObra        Mode = "clase_obra"
	ModeCentroGestor     Mode = "centro_gestor"
	ModeComuna           Mode = "comuna"
	ModeAvanceObra       Mode = "avance_obra"
	ModePresupuesto      Mode = "presupuesto"
)

// budgetRanges are contiguous: each Max is the float just below the next Min.
var budgetRanges = []Range{
	{Min: 0, Max: below(500_000_000), Color: "#DBEAFE", Label: "< $500M"},
	{Min: 500_000_000, Max: below(2_000_000_000), Color: "#93C5FD", Label: "$500M – $2.000M"},
	{Min: 2_000_000_000, Max: below(10_000_000_000), Color: "#3B82F6", Label: "$2.000M – $10.000M"},
	{Min: 10_000_000_000, Max: math.MaxFloat64, Color: "#1E3A8A", Label: "≥ $10.000M"},
}

func below(x float64) float64 { return math.Nextafter(x, math.Inf(-1)) }

// Properties on styled features; the dataset package writes these keys.
const (
	PropStatus           = "estado"
	PropInterventionType = "tipo_intervencion"
	PropWorkClass        = "clase_obra"
	PropManagingCenter   = "nombre_centro_gestor"
	PropComuna           = "comuna_corregimiento"
	PropProgress         = "avance_obra"
	PropBudget           = "presupuesto_base"
)

var modeRules = map[Mode]Rule{
	ModeEstado:           {Property: PropStatus, Kind: Status, Colors: StatusColors},
	ModeTipoIntervencion: {Property: PropInterventionType, Kind: Categorical},
	ModeClaseObra:        {Property: PropWorkClass, Kind: Categorical},
	ModeCentroGestor:     {Property: PropManagingCenter, Kind: Categorical},
	ModeComuna:           {Property: PropComuna, Kind: Categorical},
	ModeAvanceObra:       {Property: PropProgress, Kind: Numerical},
	ModePresupuesto:      {Property: PropBudget, Kind: Numerical, Ranges: budgetRanges},
}

// ParseMode validates a mode name; "" means ModeNone.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeNone, nil
	}
	if m == ModeNone {
		return m, nil
	}
	if _, ok := modeRules[m]; !ok {
		return "", fmt.Errorf("unknown representation mode %q", s)
	}
	return m, nil
}

// RuleFor returns the rule behind m. ok is false for ModeNone.
func RuleFor(m Mode) (Rule, bool) {
	r, ok := modeRules[m]
	return r, ok
}

// Modes lists every mode, ModeNone first.
func Modes() []Mode {
	out := make([]Mode, 0, len(modeRules)+1)
	for m := range modeRules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return append([]Mode{ModeNone}, out...)
}

// Painter colors features of one layer.
type Painter struct {
	Mode Mode
	Base string
}

func (p Painter) Paint(props map[string]any) string {
	base := p.Base
	if base == "" {
		base = DefaultColor
	}
	r, ok := RuleFor(p.Mode)
	if !ok {
		return base
	}
	return r.Color(props, base)
}
