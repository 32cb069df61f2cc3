package hexgrid

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var cali = orb.Point{-76.5320, 3.4516}

func TestCell_ResolutionBounds(t *testing.T) {
	for _, res := range []int{4, 11, -1} {
		if _, err := Cell(cali, res); err == nil {
			t.Fatalf("res %d: expected error", res)
		}
	}
	for res := MinRes; res <= MaxRes; res++ {
		c, err := Cell(cali, res)
		if err != nil {
			t.Fatalf("res %d: %v", res, err)
		}
		if c.Resolution() != res {
			t.Fatalf("resolution=%d want %d", c.Resolution(), res)
		}
	}
}

func TestPolygon_ContainsSourcePoint(t *testing.T) {
	c, err := Cell(cali, 8)
	if err != nil {
		t.Fatal(err)
	}
	poly, err := Polygon(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(poly) != 1 || len(poly[0]) < 7 || !poly[0].Closed() {
		t.Fatalf("polygon=%v", poly)
	}
	if !planar.PolygonContains(poly, cali) {
		t.Fatal("cell outline does not contain its point")
	}
}

func TestParseAndParent(t *testing.T) {
	c, _ := Cell(cali, 9)
	back, err := Parse(c.String())
	if err != nil || back != c {
		t.Fatalf("parse=%v err=%v", back, err)
	}
	if _, err := Parse("zzz"); err == nil {
		t.Fatal("expected parse error")
	}
	p, err := Parent(c, 6)
	if err != nil || p.Resolution() != 6 {
		t.Fatalf("parent=%v err=%v", p, err)
	}
	if same, _ := Parent(c, 9); same != c {
		t.Fatal("same-res parent must be identity")
	}
	if _, err := Parent(p, 9); err == nil {
		t.Fatal("expected error for finer parent")
	}
}
