// Package coords decides whether a coordinate pair is in (lat, lng) or
// (lng, lat) order for one metropolitan area and rewrites geometries into
// GeoJSON (lng, lat) order.
//
// The decision is a range heuristic over a fixed bounding box. It is not a
// general geodetic solution: pairs outside the box are reported as invalid.
package coords

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type Outcome int

const (
	Unchanged Outcome = iota
	Swapped
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Swapped:
		return "swapped"
	default:
		return "invalid"
	}
}

// BBox bounds are inclusive.
type BBox struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
}

// Santiago de Cali.
var (
	CaliBBox   = BBox{LatMin: 3.0, LatMax: 4.5, LngMin: -77.0, LngMax: -76.0}
	CaliCenter = orb.Point{-76.5320, 3.4516}
)

func (b BBox) latOK(v float64) bool { return v >= b.LatMin && v <= b.LatMax }
func (b BBox) lngOK(v float64) bool { return v >= b.LngMin && v <= b.LngMax }

// Contains reports whether p, read as (lng, lat), lies in the box.
func (b BBox) Contains(p orb.Point) bool { return b.lngOK(p[0]) && b.latOK(p[1]) }

func (b BBox) Validate() error {
	if !(b.LatMin < b.LatMax && b.LngMin < b.LngMax) {
		return errors.New("bbox must satisfy latMin<latMax and lngMin<lngMax")
	}
	if b.LatMin < -90 || b.LatMax > 90 || b.LngMin < -180 || b.LngMax > 180 {
		return errors.New("bbox out of WGS84 range")
	}
	// an overlap between the bands would make the order undecidable
	if b.LatMin <= b.LngMax && b.LngMin <= b.LatMax {
		return errors.New("latitude and longitude bands overlap")
	}
	return nil
}

// ParseBBox parses "latMin,latMax,lngMin,lngMax".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, errors.New("expected 4 comma-separated values: latMin,latMax,lngMin,lngMax")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("value %d: %w", i, err)
		}
		v[i] = f
	}
	b := BBox{LatMin: v[0], LatMax: v[1], LngMin: v[2], LngMax: v[3]}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// ParsePoint parses "lng,lat".
func ParsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, errors.New("expected lng,lat")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("lng: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("lat: %w", err)
	}
	return orb.Point{lng, lat}, nil
}

type Corrector struct {
	Box      BBox
	Fallback orb.Point
	// SubstituteFallback replaces an invalid Point with Fallback instead of
	// dropping it.
	SubstituteFallback bool
}

func NewCali() *Corrector {
	return &Corrector{Box: CaliBBox, Fallback: CaliCenter, SubstituteFallback: true}
}

// Correct returns p in (lng, lat) order. Invalid pairs come back untouched.
func (c *Corrector) Correct(p orb.Point) (orb.Point, Outcome) {
	a, b := p[0], p[1]
	if !finite(a) || !finite(b) {
		return p, Invalid
	}
	switch {
	case c.Box.latOK(a) && c.Box.lngOK(b):
		return orb.Point{b, a}, Swapped
	case c.Box.lngOK(a) && c.Box.latOK(b):
		return p, Unchanged
	default:
		return p, Invalid
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Report counts vertex outcomes for one geometry.
type Report struct {
	Swapped   int
	Unchanged int
	Invalid   int
	// Fallback is set when an invalid Point was replaced by the city center.
	Fallback bool
	// InvalidPairs holds up to maxSamples offending raw pairs for logging.
	InvalidPairs []orb.Point
}

const maxSamples = 5

func (r *Report) add(o Outcome, raw orb.Point) {
	switch o {
	case Swapped:
		r.Swapped++
	case Unchanged:
		r.Unchanged++
	default:
		r.Invalid++
		if len(r.InvalidPairs) < maxSamples {
			r.InvalidPairs = append(r.InvalidPairs, raw)
		}
	}
}

func (r *Report) Merge(o Report) {
	r.Swapped += o.Swapped
	r.Unchanged += o.Unchanged
	r.Invalid += o.Invalid
	r.Fallback = r.Fallback || o.Fallback
	for _, p := range o.InvalidPairs {
		if len(r.InvalidPairs) >= maxSamples {
			break
		}
		r.InvalidPairs = append(r.InvalidPairs, p)
	}
}

// Status is the per-feature coordinate flag exposed to clients.
// Per-feature coordinate outcomes, worst first.
const (
	StatusFallback = "fallback"
	StatusInvalid  = "invalid"
	StatusSwapped  = "swapped"
	StatusOK       = "ok"
)

func (r Report) Status() string {
	switch {
	case r.Fallback:
		return StatusFallback
	case r.Invalid > 0:
		return StatusInvalid
	case r.Swapped > 0:
		return StatusSwapped
	default:
		return StatusOK
	}
}

// CorrectGeometry rewrites every vertex of g. Invalid vertices are removed
// from lines and rings; a nil geometry means nothing renderable is left.
func (c *Corrector) CorrectGeometry(g orb.Geometry) (orb.Geometry, Report) {
	var rep Report
	if g == nil {
		return nil, rep
	}
	switch t := g.(type) {
	case orb.Point:
		p, o := c.Correct(t)
		rep.add(o, t)
		if o == Invalid {
			if c.SubstituteFallback {
				rep.Fallback = true
				return c.Fallback, rep
			}
			return nil, rep
		}
		return p, rep
	case orb.MultiPoint:
		out := make(orb.MultiPoint, 0, len(t))
		for _, raw := range t {
			p, o := c.Correct(raw)
			rep.add(o, raw)
			if o != Invalid {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, rep
		}
		return out, rep
	case orb.LineString:
		ls := c.line(t, &rep)
		if len(ls) < 2 {
			return nil, rep
		}
		return ls, rep
	case orb.MultiLineString:
		out := make(orb.MultiLineString, 0, len(t))
		for _, l := range t {
			if ls := c.line(l, &rep); len(ls) >= 2 {
				out = append(out, ls)
			}
		}
		if len(out) == 0 {
			return nil, rep
		}
		return out, rep
	case orb.Polygon:
		poly := c.polygon(t, &rep)
		if poly == nil {
			return nil, rep
		}
		return poly, rep
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, p := range t {
			if poly := c.polygon(p, &rep); poly != nil {
				out = append(out, poly)
			}
		}
		if len(out) == 0 {
			return nil, rep
		}
		return out, rep
	case orb.Collection:
		out := make(orb.Collection, 0, len(t))
		for _, sub := range t {
			ng, r := c.CorrectGeometry(sub)
			rep.Merge(r)
			if ng != nil {
				out = append(out, ng)
			}
		}
		if len(out) == 0 {
			return nil, rep
		}
		return out, rep
	default:
		return g, rep
	}
}

func (c *Corrector) line(l orb.LineString, rep *Report) orb.LineString {
	out := make(orb.LineString, 0, len(l))
	for _, raw := range l {
		p, o := c.Correct(raw)
		rep.add(o, raw)
		if o != Invalid {
			out = append(out, p)
		}
	}
	return out
}

// polygon drops invalid vertices per ring; a shell that falls below 4
// vertices drops the polygon, a hole that does drops only the hole.
func (c *Corrector) polygon(p orb.Polygon, rep *Report) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for i, ring := range p {
		r := orb.Ring(c.line(orb.LineString(ring), rep))
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		if len(r) < 4 {
			if i == 0 {
				return nil
			}
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
