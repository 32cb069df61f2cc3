// Package query filters, sorts and pages project units for the table,
// map layers and statistics.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
)

// Filter is empty-matches-all. Multi-valued fields OR within a field and
// AND across fields. Text comparisons ignore case.
type Filter struct {
	Comunas           []string   `json:"comunas,omitempty"`
	Barrios           []string   `json:"barrios,omitempty"`
	Statuses          []string   `json:"estados,omitempty"`
	InterventionTypes []string   `json:"tipos_intervencion,omitempty"`
	WorkClasses       []string   `json:"clases_obra,omitempty"`
	ManagingCenters   []string   `json:"centros_gestores,omitempty"`
	Datasets          []string   `json:"datasets,omitempty"`
	Search            string     `json:"q,omitempty"`
	BudgetMin         *float64   `json:"presupuesto_min,omitempty"`
	BudgetMax         *float64   `json:"presupuesto_max,omitempty"`
	ProgressMin       *float64   `json:"avance_min,omitempty"`
	ProgressMax       *float64   `json:"avance_max,omitempty"`
	BBox              *orb.Bound `json:"bbox,omitempty"`
}

func (f Filter) Empty() bool {
	return len(f.Comunas) == 0 && len(f.Barrios) == 0 && len(f.Statuses) == 0 &&
		len(f.InterventionTypes) == 0 && len(f.WorkClasses) == 0 && len(f.ManagingCenters) == 0 &&
		len(f.Datasets) == 0 && strings.TrimSpace(f.Search) == "" &&
		f.BudgetMin == nil && f.BudgetMax == nil && f.ProgressMin == nil && f.ProgressMax == nil &&
		f.BBox == nil
}

func oneOf(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

// within treats a missing value as failing any bound.
func within(v, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	if v == nil {
		return false
	}
	if lo != nil && *v < *lo {
		return false
	}
	if hi != nil && *v > *hi {
		return false
	}
	return true
}

func (f Filter) Match(u model.ProjectUnit) bool {
	if !oneOf(f.Comunas, u.Comuna) || !oneOf(f.Barrios, u.Barrio) ||
		!oneOf(f.Statuses, u.Status) || !oneOf(f.InterventionTypes, u.InterventionType) ||
		!oneOf(f.WorkClasses, u.WorkClass) || !oneOf(f.ManagingCenters, u.ManagingCenter) ||
		!oneOf(f.Datasets, u.Dataset) {
		return false
	}
	if !within(u.Budget, f.BudgetMin, f.BudgetMax) || !within(u.Progress, f.ProgressMin, f.ProgressMax) {
		return false
	}
	if f.BBox != nil && (u.Location == nil || !f.BBox.Contains(*u.Location)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(strings.Join([]string{u.ID, u.BPIN, u.Name, u.Comuna, u.Barrio, u.ManagingCenter}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// Apply returns the matching units in input order.
func (f Filter) Apply(units []model.ProjectUnit) []model.ProjectUnit {
	if f.Empty() {
		return units
	}
	out := make([]model.ProjectUnit, 0, len(units))
	for _, u := range units {
		if f.Match(u) {
			out = append(out, u)
		}
	}
	return out
}

type SortField string

const (
	SortName      SortField = "nombre"
	SortStatus    SortField = "estado"
	SortBudget    SortField = "presupuesto"
	SortProgress  SortField = "avance"
	SortComuna    SortField = "comuna"
	SortStartDate SortField = "fecha_inicio"
)

func (s SortField) Valid() bool {
	switch s {
	case SortName, SortStatus, SortBudget, SortProgress, SortComuna, SortStartDate:
		return true
	}
	return false
}

type Sort struct {
	Field SortField
	Desc  bool
}

// Apply sorts a copy of units. Missing numbers and dates go last in both
// directions; ties keep input order.
func (s Sort) Apply(units []model.ProjectUnit) []model.ProjectUnit {
	out := slices.Clone(units)
	if s.Field == "" {
		return out
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	slices.SortStableFunc(out, func(a, b model.ProjectUnit) int {
		switch s.Field {
		case SortBudget:
			return cmpNullable(a.Budget, b.Budget, dir)
		case SortProgress:
			return cmpNullable(a.Progress, b.Progress, dir)
		case SortStartDate:
			var x, y *int64
			if a.StartDate != nil {
				v := a.StartDate.Unix()
				x = &v
			}
			if b.StartDate != nil {
				v := b.StartDate.Unix()
				y = &v
			}
			return cmpNullable(x, y, dir)
		case SortStatus:
			return dir * cmpFold(a.Status, b.Status)
		case SortComuna:
			return dir * cmpFold(a.Comuna, b.Comuna)
		default:
			return dir * cmpFold(a.Name, b.Name)
		}
	})
	return out
}

func cmpNullable[T cmp.Ordered](a, b *T, dir int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return dir * cmp.Compare(*a, *b)
	}
}

func cmpFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

type Result struct {
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
	Pages int                 `json:"pages"`
	Items []model.ProjectUnit `json:"items"`
}

func (p Page) Apply(units []model.ProjectUnit) Result {
	p = p.normalize()
	res := Result{Total: len(units), Page: p.Number, Size: p.Size}
	res.Pages = (len(units) + p.Size - 1) / p.Size
	if p.Number-1 >= res.Pages {
		res.Items = []model.ProjectUnit{}
		return res
	}
	start := (p.Number - 1) * p.Size
	if start >= len(units) {
		res.Items = []model.ProjectUnit{}
		return res
	}
	end := min(start+p.Size, len(units))
	res.Items = units[start:end]
	return res
}

// Request is a full table query.
type Request struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

func (r Request) Run(units []model.ProjectUnit) Result {
	return r.Page.Apply(r.Sort.Apply(r.Filter.Apply(units)))
}

// FilterOptions are the distinct values offered by the filter panel.
type FilterOptions struct {
	Comunas           []string   `json:"comunas"`
	Barrios           []string   `json:"barrios"`
	Statuses          []string   `json:"estados"`
	InterventionTypes []string   `json:"tipos_intervencion"`
	WorkClasses       []string   `json:"clases_obra"`
	ManagingCenters   []string   `json:"centros_gestores"`
	Datasets          []string   `json:"datasets"`
	BudgetRange       [2]float64 `json:"presupuesto_rango"`
}

// Options collects distinct, sorted, non-empty values per filterable field.
func Options(units []model.ProjectUnit) FilterOptions {
	sets := make([]map[string]struct{}, 7)
	for i := range sets {
		sets[i] = map[string]struct{}{}
	}
	var o FilterOptions
	first := true
	for _, u := range units {
		for i, v := range []string{u.Comuna, u.Barrio, u.Status, u.InterventionType, u.WorkClass, u.ManagingCenter, u.Dataset} {
			if v != "" {
				sets[i][v] = struct{}{}
			}
		}
		if u.Budget != nil {
			if first || *u.Budget < o.BudgetRange[0] {
				o.BudgetRange[0] = *u.Budget
			}
			if first || *u.Budget > o.BudgetRange[1] {
				o.BudgetRange[1] = *u.Budget
			}
			first = false
		}
	}
	sorted := func(m map[string]struct{}) []string {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		slices.Sort(out)
		return out
	}
	o.Comunas = sorted(sets[0])
	o.Barrios = sorted(sets[1])
	o.Statuses = sorted(sets[2])
	o.InterventionTypes = sorted(sets[3])
	o.WorkClasses = sorted(sets[4])
	o.ManagingCenters = sorted(sets[5])
	o.Datasets = sorted(sets[6])
	return o
}
