package dataset

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
)

const DefaultGeomPrecision = 7

// MergeStats counts what MergeUnits dropped.
type MergeStats struct {
	In        int
	Out       int
	DedupByID int
	DedupByGH int
}

// MergeUnits concatenates unit collections in part order, dropping a unit
// whose ID was already seen, or, for units without ID, whose geometry hash
// was already seen.
func MergeUnits(parts ...[]model.ProjectUnit) ([]model.ProjectUnit, MergeStats) {
	var st MergeStats
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]model.ProjectUnit, 0, n)
	seenID := make(map[string]struct{}, n)
	seenGH := make(map[string]struct{})

	for _, p := range parts {
		for _, u := range p {
			st.In++
			if u.ID != "" {
				if _, ok := seenID[u.ID]; ok {
					st.DedupByID++
					continue
				}
				seenID[u.ID] = struct{}{}
			} else {
				gh := GeometryHash(u.Geometry, DefaultGeomPrecision)
				if _, ok := seenGH[gh]; ok {
					st.DedupByGH++
					continue
				}
				seenGH[gh] = struct{}{}
			}
			out = append(out, u)
		}
	}
	st.Out = len(out)
	return out, st
}

// GeometryHash identifies g independent of float noise past precision
// decimals and of ring winding.
func GeometryHash(g orb.Geometry, precision int) string {
	if g == nil {
		return "gh:null"
	}
	ng := normalizeGeometry(orb.Clone(g), math.Pow(10, float64(precision)))
	b, err := geojson.NewGeometry(ng).MarshalJSON()
	if err != nil {
		return "gh:err"
	}
	return fmt.Sprintf("gh:%016x", xxhash.Sum64(b))
}

func normalizeGeometry(g orb.Geometry, f float64) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		return roundPoint(t, f)
	case orb.MultiPoint:
		for i := range t {
			t[i] = roundPoint(t[i], f)
		}
		return t
	case orb.LineString:
		return orb.LineString(roundPoints(t, f))
	case orb.MultiLineString:
		for i := range t {
			t[i] = orb.LineString(roundPoints(t[i], f))
		}
		return t
	case orb.Polygon:
		return orientPolygon(t, f)
	case orb.MultiPolygon:
		for i := range t {
			t[i] = orientPolygon(t[i], f)
		}
		return t
	case orb.Collection:
		for i := range t {
			t[i] = normalizeGeometry(t[i], f)
		}
		return t
	default:
		return g
	}
}

func roundPoint(p orb.Point, f float64) orb.Point {
	return orb.Point{math.Round(p[0]*f) / f, math.Round(p[1]*f) / f}
}

func roundPoints(ps []orb.Point, f float64) []orb.Point {
	for i := range ps {
		ps[i] = roundPoint(ps[i], f)
	}
	return ps
}

// orientPolygon rounds the rings and winds the shell counter-clockwise and
// holes clockwise.
func orientPolygon(p orb.Polygon, f float64) orb.Polygon {
	for i := range p {
		r := orb.Ring(roundPoints(p[i], f))
		o := r.Orientation()
		if (i == 0 && o == orb.CW) || (i > 0 && o == orb.CCW) {
			r.Reverse()
		}
		p[i] = r
	}
	return p
}
