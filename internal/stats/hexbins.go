package stats

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/hexgrid"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

type Hexbin struct {
	Cell   string  `json:"cell"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
	// Intensity is Weight scaled to 0..100 of the heaviest bin.
	Intensity float64 `json:"intensity"`
	Color     string  `json:"color"`
}

// Hexbins aggregates incident weights into H3 cells at res. Points are
// indexed at the finest resolution and rolled up, so bins nest across
// resolutions. Points that cannot be indexed, and fallback points standing
// in for unusable coordinates, are counted in skipped.
func Hexbins(incidents []model.Incident, res int) (bins []Hexbin, skipped int, err error) {
	if err := hexgrid.ValidateRes(res); err != nil {
		return nil, 0, err
	}
	type acc struct {
		count  int
		weight float64
	}
	byCell := map[string]*acc{}
	for _, inc := range incidents {
		if inc.CoordStatus == coords.StatusFallback {
			skipped++
			continue
		}
		fine, err := hexgrid.Cell(inc.Point, hexgrid.MaxRes)
		if err != nil {
			skipped++
			continue
		}
		c, err := hexgrid.Parent(fine, res)
		if err != nil {
			skipped++
			continue
		}
		a := byCell[c.String()]
		if a == nil {
			a = &acc{}
			byCell[c.String()] = a
		}
		a.count++
		a.weight += inc.Weight
	}

	var maxW float64
	for _, a := range byCell {
		maxW = max(maxW, a.weight)
	}
	bins = make([]Hexbin, 0, len(byCell))
	for cell, a := range byCell {
		b := Hexbin{Cell: cell, Count: a.count, Weight: a.weight}
		if maxW > 0 {
			b.Intensity = a.weight / maxW * 100
		}
		b.Color = style.Thermal(b.Intensity)
		bins = append(bins, b)
	}
	slices.SortFunc(bins, func(a, b Hexbin) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Cell, b.Cell)
	})
	return bins, skipped, nil
}

// HexbinFeatures renders bins as Polygon features.
func HexbinFeatures(bins []Hexbin) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, b := range bins {
		c, err := hexgrid.Parse(b.Cell)
		if err != nil {
			return nil, err
		}
		poly, err := hexgrid.Polygon(c)
		if err != nil {
			return nil, err
		}
		f := geojson.NewFeature(poly)
		f.ID = b.Cell
		f.Properties["cell"] = b.Cell
		f.Properties["count"] = b.Count
		f.Properties["weight"] = b.Weight
		f.Properties["intensity"] = b.Intensity
		f.Properties["color"] = b.Color
		fc.Append(f)
	}
	return fc, nil
}
