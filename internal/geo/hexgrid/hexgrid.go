// Package hexgrid maps points to H3 cells and cells back to polygons.
package hexgrid

import (
	"fmt"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

const (
	MinRes = 5
	MaxRes = 10
)

func ValidateRes(res int) error {
	if res < MinRes || res > MaxRes {
		return fmt.Errorf("invalid H3 resolution %d (must be %d..%d)", res, MinRes, MaxRes)
	}
	return nil
}

// Cell returns the cell containing p (lng, lat) at res.
func Cell(p orb.Point, res int) (h3.Cell, error) {
	if err := ValidateRes(res); err != nil {
		return 0, err
	}
	// v4 returns (Cell, error)
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p[1], Lng: p[0]}, res)
	if err != nil {
		return 0, fmt.Errorf("h3 cell: %w", err)
	}
	return c, nil
}

// Parse reads a cell from its hex string form.
func Parse(s string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

// Parent walks c up to parentRes.
func Parent(c h3.Cell, parentRes int) (h3.Cell, error) {
	cur := c.Resolution()
	if parentRes > cur {
		return 0, fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, cur)
	}
	if parentRes == cur {
		return c, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return 0, fmt.Errorf("h3 parent: %w", err)
	}
	return p, nil
}

// Polygon is the closed cell outline in GeoJSON order.
func Polygon(c h3.Cell) (orb.Polygon, error) {
	b, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("h3 boundary: %w", err)
	}
	ring := make(orb.Ring, 0, len(b)+1)
	for _, ll := range b {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}
