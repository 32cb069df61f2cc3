package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/props"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

var ErrMalformed = errors.New("malformed dataset file")

// Property aliases seen across the published files.
var (
	aliasID               = []string{"identificador", "upid", "id", "cod_up", "codigo"}
	aliasBPIN             = []string{"bpin", "codigo_bpin"}
	aliasName             = []string{"nombre_up", "nombre", "name", "nombre_unidad_proyecto"}
	aliasStatus           = []string{"estado", "estado_unidad_proyecto"}
	aliasInterventionType = []string{"tipo_intervencion", "tipo_de_intervencion"}
	aliasWorkClass        = []string{"clase_obra", "clase_up", "tipo_equipamiento"}
	aliasManagingCenter   = []string{"nombre_centro_gestor", "centro_gestor"}
	aliasComuna           = []string{"comuna_corregimiento", "comuna", "nombre_comuna"}
	aliasBarrio           = []string{"barrio_vereda", "barrio", "nombre_barrio"}
	aliasBudget           = []string{"presupuesto_base", "ppto_base", "presupuesto"}
	aliasProgress         = []string{"avance_obra", "avance_fisico_obra"}
	aliasStart            = []string{"fecha_inicio", "fecha_inicio_real", "fecha_inicio_planeado"}
	aliasEnd              = []string{"fecha_fin", "fecha_fin_real", "fecha_fin_planeado"}
	aliasBoundaryName     = []string{"nombre", "nombre_comuna", "comuna", "barrio", "nombre_barrio", "name"}
	aliasCategory         = []string{"categoria", "tipo", "clase", "category"}
	aliasWeight           = []string{"peso", "cantidad", "conteo", "count", "weight"}

	aliasPeriod     = []string{"periodo_corte", "periodo", "fecha_corte"}
	aliasInitial    = []string{"ppto_inicial", "presupuesto_inicial"}
	aliasModified   = []string{"ppto_modificado", "presupuesto_modificado"}
	aliasAdditions  = []string{"adiciones"}
	aliasReductions = []string{"reducciones"}
	aliasExecuted   = []string{"ejecucion", "ejecutado", "ejecucion_presupuestal"}
	aliasPaid       = []string{"pagos", "pagado"}
)

var unaccent = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u")

var statusByKey = func() map[string]string {
	m := make(map[string]string, len(style.StatusColors))
	for s := range style.StatusColors {
		m[foldKey(s)] = s
	}
	return m
}()

func foldKey(s string) string {
	return strings.Join(strings.Fields(unaccent.Replace(strings.ToLower(s))), " ")
}

// CanonicalStatus maps free-form status text to one of the canonical labels.
// Unknown values are returned trimmed.
func CanonicalStatus(s string) string {
	s = strings.TrimSpace(s)
	if c, ok := statusByKey[foldKey(s)]; ok {
		return c
	}
	return s
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "02/01/2006", "2006/01/02"}

func parseDate(v any) *time.Time {
	s := props.String(v)
	if s == "" {
		return nil
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return &t
		}
	}
	return nil
}

// Normalizer turns decoded files into typed records.
type Normalizer struct {
	Corrector *coords.Corrector
}

// Result is one parsed dataset plus the counters that feed its status.
type Result struct {
	Units      []model.ProjectUnit
	Boundaries []model.Boundary
	Incidents  []model.Incident
	Budget     []model.BudgetMovement
	Coords     coords.Report
	Fallbacks  int
	Dropped    int
}

func (r *Result) Len() int {
	return len(r.Units) + len(r.Boundaries) + len(r.Incidents) + len(r.Budget)
}

// Parse decodes raw according to the entry kind. A file that is not a
// FeatureCollection (or a JSON array for budget data) fails alone.
func (n Normalizer) Parse(e Entry, raw []byte) (*Result, error) {
	if e.Kind == model.KindBudget {
		return n.parseBudget(raw)
	}
	fc, err := DecodeFeatureCollection(raw)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for i, f := range fc.Features {
		g, rep := n.correct(f.Geometry)
		res.Coords.Merge(rep)
		if rep.Fallback {
			res.Fallbacks++
		}
		if g == nil {
			res.Dropped++
			continue
		}
		switch e.Kind {
		case model.KindUnits:
			res.Units = append(res.Units, unitFrom(e.ID, i, f, g, rep))
		case model.KindBoundary:
			res.Boundaries = append(res.Boundaries, boundaryFrom(e.ID, i, f, g))
		case model.KindIncident:
			inc, ok := incidentFrom(i, f, g, rep)
			if !ok {
				res.Dropped++
				continue
			}
			res.Incidents = append(res.Incidents, inc)
		}
	}
	return res, nil
}

func (n Normalizer) correct(g orb.Geometry) (orb.Geometry, coords.Report) {
	if n.Corrector == nil {
		return g, coords.Report{}
	}
	return n.Corrector.CorrectGeometry(g)
}

// DecodeFeatureCollection parses raw as a GeoJSON FeatureCollection.
func DecodeFeatureCollection(raw []byte) (*geojson.FeatureCollection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: expected a FeatureCollection object", ErrMalformed)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type %q is not FeatureCollection", ErrMalformed, fc.Type)
	}
	return fc, nil
}

func featureID(f *geojson.Feature) string {
	if id := props.String(f.ID); id != "" {
		return id
	}
	return props.FirstString(f.Properties, aliasID...)
}

func unitFrom(dataset string, idx int, f *geojson.Feature, g orb.Geometry, rep coords.Report) model.ProjectUnit {
	p := f.Properties
	u := model.ProjectUnit{
		ID:               featureID(f),
		BPIN:             props.FirstString(p, aliasBPIN...),
		Name:             props.FirstString(p, aliasName...),
		Status:           CanonicalStatus(props.FirstString(p, aliasStatus...)),
		InterventionType: props.FirstString(p, aliasInterventionType...),
		WorkClass:        props.FirstString(p, aliasWorkClass...),
		ManagingCenter:   props.FirstString(p, aliasManagingCenter...),
		Comuna:           props.FirstString(p, aliasComuna...),
		Barrio:           props.FirstString(p, aliasBarrio...),
		Budget:           props.FirstFloat(p, aliasBudget...),
		Progress:         props.FirstFloat(p, aliasProgress...),
		Dataset:          dataset,
		CoordStatus:      rep.Status(),
		Geometry:         g,
	}
	if v, ok := props.First(p, aliasStart...); ok {
		u.StartDate = parseDate(v)
	}
	if v, ok := props.First(p, aliasEnd...); ok {
		u.EndDate = parseDate(v)
	}
	if u.Name == "" {
		u.Name = fmt.Sprintf("%s #%d", dataset, idx+1)
	}
	loc := anchor(g)
	u.Location = &loc
	return u
}

func boundaryFrom(dataset string, idx int, f *geojson.Feature, g orb.Geometry) model.Boundary {
	b := model.Boundary{
		ID:       featureID(f),
		Name:     props.FirstString(f.Properties, aliasBoundaryName...),
		Comuna:   props.FirstString(f.Properties, aliasComuna...),
		Dataset:  dataset,
		Geometry: g,
	}
	if b.ID == "" {
		b.ID = fmt.Sprintf("%s-%d", dataset, idx+1)
	}
	return b
}

func incidentFrom(idx int, f *geojson.Feature, g orb.Geometry, rep coords.Report) (model.Incident, bool) {
	pt, ok := g.(orb.Point)
	if !ok {
		return model.Incident{}, false
	}
	inc := model.Incident{
		ID:          featureID(f),
		Category:    props.FirstString(f.Properties, aliasCategory...),
		Comuna:      props.FirstString(f.Properties, aliasComuna...),
		Weight:      1,
		CoordStatus: rep.Status(),
		Point:       pt,
	}
	if w := props.FirstFloat(f.Properties, aliasWeight...); w != nil && *w > 0 {
		inc.Weight = *w
	}
	if inc.ID == "" {
		inc.ID = fmt.Sprintf("cg-%d", idx+1)
	}
	return inc, true
}

// anchor is the point used for tables and popups: the point itself, or the
// planar centroid for lines and areas.
func anchor(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	c, _ := planar.CentroidArea(g)
	return c
}

func (n Normalizer) parseBudget(raw []byte) (*Result, error) {
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}
	res := &Result{Budget: make([]model.BudgetMovement, 0, len(rows))}
	for _, r := range rows {
		m := model.BudgetMovement{
			BPIN:           props.FirstString(r, aliasBPIN...),
			Period:         props.FirstString(r, aliasPeriod...),
			ManagingCenter: props.FirstString(r, aliasManagingCenter...),
			InitialBudget:  floatOr0(r, aliasInitial),
			ModifiedBudget: floatOr0(r, aliasModified),
			Additions:      floatOr0(r, aliasAdditions),
			Reductions:     floatOr0(r, aliasReductions),
			Executed:       floatOr0(r, aliasExecuted),
			Paid:           floatOr0(r, aliasPaid),
		}
		if m.BPIN == "" && m.Period == "" {
			res.Dropped++
			continue
		}
		res.Budget = append(res.Budget, m)
	}
	return res, nil
}

// decodeRows accepts a bare JSON array or an object wrapping it under
// "data" or "records".
func decodeRows(raw []byte) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	var rows []map[string]any
	switch {
	case len(raw) > 0 && raw[0] == '[':
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case len(raw) > 0 && raw[0] == '{':
		var wrap struct {
			Data    []map[string]any `json:"data"`
			Records []map[string]any `json:"records"`
		}
		if err := json.Unmarshal(raw, &wrap); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		rows = wrap.Data
		if rows == nil {
			rows = wrap.Records
		}
		if rows == nil {
			return nil, fmt.Errorf("%w: object without data array", ErrMalformed)
		}
	default:
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformed)
	}
	return rows, nil
}

func floatOr0(m map[string]any, keys []string) float64 {
	if f := props.FirstFloat(m, keys...); f != nil {
		return *f
	}
	return 0
}
