package query

import (
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
)

func f64(v float64) *float64 { return &v }

func pt(lng, lat float64) *orb.Point {
	p := orb.Point{lng, lat}
	return &p
}

func fixture() []model.ProjectUnit {
	d1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	return []model.ProjectUnit{
		{ID: "1", Name: "Biblioteca", Status: "En ejecución", Comuna: "COMUNA 3", Dataset: "equipamientos", Budget: f64(500), Progress: f64(40), StartDate: &d1, Location: pt(-76.53, 3.45), ManagingCenter: "Secretaría de Cultura"},
		{ID: "2", Name: "andén", Status: "Terminado", Comuna: "COMUNA 3", Dataset: "infraestructura_vial", Budget: f64(100), Location: pt(-76.50, 3.40)},
		{ID: "3", Name: "Colegio", Status: "En ejecución", Comuna: "COMUNA 10", Dataset: "equipamientos", Progress: f64(90), StartDate: &d2, Location: pt(-76.60, 3.50)},
		{ID: "4", Name: "Cancha", Status: "Suspendido", Comuna: "COMUNA 10", Dataset: "equipamientos", Budget: f64(300)},
	}
}

func ids(us []model.ProjectUnit) string {
	s := ""
	for _, u := range us {
		s += u.ID
	}
	return s
}

func TestFilter_EmptyMatchesAll(t *testing.T) {
	if got := ids(Filter{}.Apply(fixture())); got != "1234" {
		t.Fatalf("got=%s", got)
	}
}

func TestFilter_ORWithinANDAcross(t *testing.T) {
	f := Filter{Statuses: []string{"en ejecución", "Suspendido"}, Comunas: []string{"COMUNA 10"}}
	if got := ids(f.Apply(fixture())); got != "34" {
		t.Fatalf("got=%s want 34", got)
	}
}

func TestFilter_RangesExcludeMissingValues(t *testing.T) {
	f := Filter{BudgetMin: f64(200)}
	if got := ids(f.Apply(fixture())); got != "14" {
		t.Fatalf("budget>=200 got=%s", got)
	}
	f = Filter{ProgressMin: f64(0), ProgressMax: f64(50)}
	if got := ids(f.Apply(fixture())); got != "1" {
		t.Fatalf("progress got=%s", got)
	}
}

func TestFilter_SearchAndBBox(t *testing.T) {
	if got := ids(Filter{Search: "cultura"}.Apply(fixture())); got != "1" {
		t.Fatalf("search got=%s", got)
	}
	b := orb.Bound{Min: orb.Point{-76.55, 3.39}, Max: orb.Point{-76.49, 3.46}}
	if got := ids(Filter{BBox: &b}.Apply(fixture())); got != "12" {
		t.Fatalf("bbox got=%s", got)
	}
}

func TestSort_NilsLastBothDirections(t *testing.T) {
	asc := Sort{Field: SortBudget}.Apply(fixture())
	if got := ids(asc); got != "2413" {
		t.Fatalf("asc got=%s want 2413", got)
	}
	desc := Sort{Field: SortBudget, Desc: true}.Apply(fixture())
	if got := ids(desc); got != "1423" {
		t.Fatalf("desc got=%s want 1423", got)
	}
	byDate := Sort{Field: SortStartDate}.Apply(fixture())
	if got := ids(byDate); got != "3124" {
		t.Fatalf("date got=%s want 3124", got)
	}
}

func TestSort_NameCaseInsensitiveAndStable(t *testing.T) {
	got := ids(Sort{Field: SortName}.Apply(fixture()))
	if got != "2143" {
		t.Fatalf("got=%s want 2143", got)
	}
	got = ids(Sort{Field: SortComuna}.Apply(fixture()))
	// COMUNA 10 < COMUNA 3 lexically; ties keep input order
	if got != "3412" {
		t.Fatalf("comuna got=%s want 3412", got)
	}
	in := fixture()
	_ = Sort{Field: SortName}.Apply(in)
	if ids(in) != "1234" {
		t.Fatal("input mutated")
	}
}

func TestPage(t *testing.T) {
	us := fixture()
	r := Page{Number: 2, Size: 3}.Apply(us)
	if r.Total != 4 || r.Pages != 2 || ids(r.Items) != "4" {
		t.Fatalf("page=%+v", r)
	}
	r = Page{Number: 9, Size: 3}.Apply(us)
	if len(r.Items) != 0 || r.Items == nil {
		t.Fatalf("past end items=%v", r.Items)
	}
	r = Page{Number: math.MaxInt, Size: 2}.Apply(us)
	if len(r.Items) != 0 || r.Page != math.MaxInt {
		t.Fatalf("huge page=%+v", r)
	}
	q, _ := url.ParseQuery("page=9223372036854775807&size=2")
	req, err := ParseRequest(q)
	if err != nil {
		t.Fatal(err)
	}
	if r := req.Run(us); len(r.Items) != 0 || r.Total != 4 {
		t.Fatalf("huge page from query=%+v", r)
	}
	r = Page{Size: 10_000}.Apply(us)
	if r.Size != MaxPageSize || r.Page != 1 {
		t.Fatalf("cap page=%+v", r)
	}
}

func TestParseRequest(t *testing.T) {
	q, _ := url.ParseQuery("estado=Terminado,En%20ejecuci%C3%B3n&comuna=COMUNA%203&presupuesto_min=%24%201.000&sort=presupuesto&order=desc&page=2&size=10&bbox=-76.6,3.3,-76.4,3.6")
	r, err := ParseRequest(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Filter.Statuses) != 2 || r.Filter.Statuses[1] != "En ejecución" {
		t.Fatalf("statuses=%v", r.Filter.Statuses)
	}
	if r.Filter.BudgetMin == nil || *r.Filter.BudgetMin != 1000 {
		t.Fatalf("budget min=%v", r.Filter.BudgetMin)
	}
	if r.Sort.Field != SortBudget || !r.Sort.Desc || r.Page.Number != 2 || r.Page.Size != 10 {
		t.Fatalf("req=%+v", r)
	}
	if r.Filter.BBox == nil || r.Filter.BBox.Min != (orb.Point{-76.6, 3.3}) {
		t.Fatalf("bbox=%v", r.Filter.BBox)
	}
}

func TestParseRequest_Errors(t *testing.T) {
	bad := []string{
		"sort=altura",
		"order=up",
		"page=-1",
		"size=abc",
		"avance_min=x",
		"presupuesto_min=10&presupuesto_max=5",
		"bbox=1,2,3",
		"bbox=-76.4,3.3,-76.6,3.6",
		"bbox=-76.6,3.3,-76.4,3.6,EPSG:3857",
	}
	for _, raw := range bad {
		q, _ := url.ParseQuery(raw)
		if _, err := ParseRequest(q); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestOptions(t *testing.T) {
	o := Options(fixture())
	if len(o.Comunas) != 2 || o.Comunas[0] != "COMUNA 10" {
		t.Fatalf("comunas=%v", o.Comunas)
	}
	if len(o.Statuses) != 3 || len(o.Datasets) != 2 || len(o.ManagingCenters) != 1 {
		t.Fatalf("opts=%+v", o)
	}
	if o.BudgetRange != [2]float64{100, 500} {
		t.Fatalf("range=%v", o.BudgetRange)
	}
	if len(o.Barrios) != 0 || o.Barrios == nil {
		t.Fatal("empty option lists must be non-nil")
	}
}
