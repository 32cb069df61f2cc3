package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/obras-dashboard/internal/props"
)

const maxSearchLen = 200

// ParseFilter reads filter parameters. Multi-valued fields accept repeated
// keys and comma-separated values.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Comunas:           multi(q, "comuna"),
		Barrios:           multi(q, "barrio"),
		Statuses:          multi(q, "estado"),
		InterventionTypes: multi(q, "tipo_intervencion"),
		WorkClasses:       multi(q, "clase_obra"),
		ManagingCenters:   multi(q, "centro_gestor"),
		Datasets:          multi(q, "dataset"),
		Search:            strings.TrimSpace(q.Get("q")),
	}
	if len(f.Search) > maxSearchLen {
		return Filter{}, fmt.Errorf("q longer than %d characters", maxSearchLen)
	}

	var err error
	if f.BudgetMin, err = optFloat(q, "presupuesto_min"); err != nil {
		return Filter{}, err
	}
	if f.BudgetMax, err = optFloat(q, "presupuesto_max"); err != nil {
		return Filter{}, err
	}
	if f.ProgressMin, err = optFloat(q, "avance_min"); err != nil {
		return Filter{}, err
	}
	if f.ProgressMax, err = optFloat(q, "avance_max"); err != nil {
		return Filter{}, err
	}
	if f.BudgetMin != nil && f.BudgetMax != nil && *f.BudgetMin > *f.BudgetMax {
		return Filter{}, errors.New("presupuesto_min must not exceed presupuesto_max")
	}
	if f.ProgressMin != nil && f.ProgressMax != nil && *f.ProgressMin > *f.ProgressMax {
		return Filter{}, errors.New("avance_min must not exceed avance_max")
	}

	if raw := strings.TrimSpace(q.Get("bbox")); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid bbox: %w", err)
		}
		f.BBox = &b
	}
	return f, nil
}

// ParseRequest reads filter, sort and page parameters.
func ParseRequest(q url.Values) (Request, error) {
	f, err := ParseFilter(q)
	if err != nil {
		return Request{}, err
	}
	r := Request{Filter: f}

	if s := strings.ToLower(strings.TrimSpace(q.Get("sort"))); s != "" {
		r.Sort.Field = SortField(s)
		if !r.Sort.Field.Valid() {
			return Request{}, fmt.Errorf("unsupported sort field %q", s)
		}
	}
	switch o := strings.ToLower(strings.TrimSpace(q.Get("order"))); o {
	case "", "asc":
	case "desc":
		r.Sort.Desc = true
	default:
		return Request{}, fmt.Errorf("order must be asc or desc (got %q)", o)
	}

	if r.Page.Number, err = optInt(q, "page"); err != nil {
		return Request{}, err
	}
	if r.Page.Size, err = optInt(q, "size"); err != nil {
		return Request{}, err
	}
	return r, nil
}

func multi(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func optFloat(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	f, ok := props.Float(raw)
	if !ok {
		return nil, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return &f, nil
}

func optInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %q is not a non-negative integer", key, raw)
	}
	return n, nil
}

// parseBBox reads "minLng,minLat,maxLng,maxLat" with an optional trailing
// EPSG:4326.
func parseBBox(raw string) (orb.Bound, error) {
	parts := strings.Split(raw, ",")
	switch len(parts) {
	case 4:
	case 5:
		if srid := strings.ToUpper(strings.TrimSpace(parts[4])); srid != "EPSG:4326" {
			return orb.Bound{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
		}
	default:
		return orb.Bound{}, errors.New("expected minLng,minLat,maxLng,maxLat[,EPSG:4326]")
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		v[i] = f
	}
	if v[0] < -180 || v[0] > 180 || v[2] < -180 || v[2] > 180 {
		return orb.Bound{}, errors.New("longitude must be in [-180,180]")
	}
	if v[1] < -90 || v[1] > 90 || v[3] < -90 || v[3] > 90 {
		return orb.Bound{}, errors.New("latitude must be in [-90,90]")
	}
	if v[2] <= v[0] || v[3] <= v[1] {
		return orb.Bound{}, errors.New("coordinates must satisfy maxLng>minLng and maxLat>minLat")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
