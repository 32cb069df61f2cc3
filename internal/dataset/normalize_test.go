package dataset

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

func mustEntry(t *testing.T, id string) Entry {
	t.Helper()
	e, err := DefaultCatalog().Lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestParseUnits_CorrectsAndNormalizes(t *testing.T) {
	n := Normalizer{Corrector: coords.NewCali()}
	res, err := n.Parse(mustEntry(t, "equipamientos"), []byte(unitsFC))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Units) != 3 {
		t.Fatalf("units=%d want 3", len(res.Units))
	}
	if res.Dropped != 1 {
		t.Fatalf("dropped=%d want 1 (null geometry)", res.Dropped)
	}

	u := res.Units[0]
	if got := u.Geometry.(orb.Point); got != (orb.Point{-76.53, 3.45}) {
		t.Fatalf("swapped point=%v", got)
	}
	if u.CoordStatus != "swapped" || u.Status != style.StatusEnEjecucion {
		t.Fatalf("coord_status=%q status=%q", u.CoordStatus, u.Status)
	}
	if u.Budget == nil || *u.Budget != 1_200_000_000 {
		t.Fatalf("budget=%v", u.Budget)
	}
	if u.Progress == nil || *u.Progress != 45.5 {
		t.Fatalf("progress=%v", u.Progress)
	}
	if u.StartDate == nil || u.StartDate.Year() != 2024 {
		t.Fatalf("start=%v", u.StartDate)
	}
	if got := (style.Painter{Mode: style.ModeEstado}).Paint(u.Properties()); got != "#10B981" {
		t.Fatalf("color=%s want #10B981", got)
	}

	if res.Units[1].Status != style.StatusTerminado || *res.Units[1].Budget != 350_000_000 {
		t.Fatalf("aliases not resolved: %+v", res.Units[1])
	}
	far := res.Units[2]
	if far.CoordStatus != "fallback" || far.Geometry.(orb.Point) != coords.CaliCenter {
		t.Fatalf("fallback unit=%+v", far)
	}
	if res.Coords.Swapped != 1 || res.Coords.Invalid != 1 || res.Fallbacks != 1 {
		t.Fatalf("report=%+v fallbacks=%d", res.Coords, res.Fallbacks)
	}
}

func TestParseUnits_DropInvalidWithoutFallback(t *testing.T) {
	c := coords.NewCali()
	c.SubstituteFallback = false
	res, err := Normalizer{Corrector: c}.Parse(mustEntry(t, "equipamientos"), []byte(unitsFC))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Units) != 2 || res.Dropped != 2 {
		t.Fatalf("units=%d dropped=%d", len(res.Units), res.Dropped)
	}
}

func TestParse_MalformedFailsAlone(t *testing.T) {
	n := Normalizer{Corrector: coords.NewCali()}
	for _, raw := range []string{`[]`, `{"type":"Feature"}`, `not json`, ``} {
		if _, err := n.Parse(mustEntry(t, "comunas"), []byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("raw=%q err=%v want ErrMalformed", raw, err)
		}
	}
	if _, err := n.Parse(mustEntry(t, "movimientos_presupuestales"), []byte(`{"type":"FeatureCollection"}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("budget object without data: err=%v", err)
	}
}

func TestParseIncidents(t *testing.T) {
	res, err := Normalizer{Corrector: coords.NewCali()}.Parse(mustEntry(t, "centros_gravedad"), []byte(incidentsFC))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Incidents) != 2 || res.Dropped != 1 {
		t.Fatalf("incidents=%d dropped=%d", len(res.Incidents), res.Dropped)
	}
	if res.Incidents[0].Weight != 3 || res.Incidents[1].Weight != 1 {
		t.Fatalf("weights=%v,%v", res.Incidents[0].Weight, res.Incidents[1].Weight)
	}
	if res.Incidents[0].CoordStatus != coords.StatusOK || res.Incidents[1].CoordStatus != coords.StatusSwapped {
		t.Fatalf("coord status=%s,%s", res.Incidents[0].CoordStatus, res.Incidents[1].CoordStatus)
	}
	if res.Incidents[1].Point != (orb.Point{-76.54, 3.46}) {
		t.Fatalf("point=%v", res.Incidents[1].Point)
	}
}

func TestParseBudget(t *testing.T) {
	res, err := Normalizer{}.Parse(mustEntry(t, "movimientos_presupuestales"), []byte(budgetJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Budget) != 2 || res.Dropped != 1 {
		t.Fatalf("rows=%d dropped=%d", len(res.Budget), res.Dropped)
	}
	m := res.Budget[0]
	if m.InitialBudget != 1_000_000 || m.ModifiedBudget != 1_500_000 || m.Executed != 750_000 || m.Paid != 500_000 {
		t.Fatalf("row=%+v", m)
	}
	res, err = Normalizer{}.Parse(mustEntry(t, "ejecucion_presupuestal"), []byte(`{"data":[]}`))
	if err != nil || len(res.Budget) != 0 {
		t.Fatalf("empty wrapper: %v %v", res, err)
	}
}

func TestParseBoundaries(t *testing.T) {
	res, err := Normalizer{Corrector: coords.NewCali()}.Parse(mustEntry(t, "comunas"), []byte(comunasFC))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Boundaries) != 1 {
		t.Fatalf("boundaries=%d", len(res.Boundaries))
	}
	b := res.Boundaries[0]
	if b.Name != "Comuna 1" || b.ID != "comunas-1" || b.Dataset != "comunas" {
		t.Fatalf("boundary=%+v", b)
	}
	if _, ok := b.Geometry.(orb.Polygon); !ok {
		t.Fatalf("geometry=%T", b.Geometry)
	}
}

func TestCanonicalStatus(t *testing.T) {
	cases := map[string]string{
		"en ejecucion":     style.StatusEnEjecucion,
		"  EN  EJECUCIÓN ": style.StatusEnEjecucion,
		"terminado":        style.StatusTerminado,
		"En Alistamiento":  style.StatusEnAlistamiento,
		"Otro estado ":     "Otro estado",
		"":                 "",
	}
	for in, want := range cases {
		if got := CanonicalStatus(in); got != want {
			t.Fatalf("CanonicalStatus(%q)=%q want %q", in, got, want)
		}
	}
}

func TestProjectUnitProperties(t *testing.T) {
	b := 10.0
	p := model.ProjectUnit{ID: "x", Name: "n", Budget: &b}.Properties()
	if p["presupuesto_base"] != 10.0 {
		t.Fatalf("props=%v", p)
	}
	if _, ok := p["avance_obra"]; ok {
		t.Fatal("nil progress must be omitted")
	}
}

func TestParseIncidents_FallbackIsFlagged(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"categoria":"Hurto"},"geometry":{"type":"Point","coordinates":[10,10]}}
]}`
	res, err := Normalizer{Corrector: coords.NewCali()}.Parse(mustEntry(t, "centros_gravedad"), []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Incidents) != 1 || res.Incidents[0].CoordStatus != coords.StatusFallback {
		t.Fatalf("incidents=%+v", res.Incidents)
	}
}
