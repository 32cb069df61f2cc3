package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/mohammed-shakir/obras-dashboard/internal/cache/keys"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/middleware"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/prefs"
	"github.com/mohammed-shakir/obras-dashboard/internal/props"
	"github.com/mohammed-shakir/obras-dashboard/internal/query"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

// maxSimplify caps the Douglas-Peucker tolerance, in degrees.
const maxSimplify = 0.01

type item struct {
	props map[string]any
	geom  orb.Geometry
}

// items flattens a dataset into property maps. Filters apply to unit
// layers and, by comuna, to incident layers.
func items(ds *dataset.Dataset, f query.Filter) []item {
	var out []item
	switch ds.Entry.Kind {
	case model.KindUnits:
		for _, u := range f.Apply(ds.Units) {
			out = append(out, item{props: u.Properties(), geom: u.Geometry})
		}
	case model.KindBoundary:
		for _, b := range ds.Boundaries {
			comuna := b.Comuna
			if comuna == "" {
				comuna = b.Name
			}
			out = append(out, item{
				props: map[string]any{"id": b.ID, "nombre": b.Name, style.PropComuna: comuna, "dataset": b.Dataset},
				geom:  b.Geometry,
			})
		}
	case model.KindIncident:
		cf := query.Filter{Comunas: f.Comunas}
		for _, inc := range ds.Incidents {
			if !cf.Empty() && !cf.Match(model.ProjectUnit{Comuna: inc.Comuna}) {
				continue
			}
			out = append(out, item{
				props: map[string]any{"id": inc.ID, "categoria": inc.Category, style.PropComuna: inc.Comuna, "peso": inc.Weight, "coord_status": inc.CoordStatus},
				geom:  inc.Point,
			})
		}
	}
	return out
}

// resolveLayer returns the client's layer settings for e, with the mode
// optionally overridden by the request.
func (h *Handler) resolveLayer(r *http.Request, e dataset.Entry) (prefs.Layer, error) {
	layer := prefs.Layer{ID: e.ID, Name: e.Title, Visible: !e.Hidden, Opacity: 1, Color: e.Color, Mode: e.DefaultMode}
	if h.prefs != nil {
		p, err := h.prefs.Get(r.Context(), middleware.ClientID(r))
		if err == nil {
			if l, ok := p.Layer(e.ID); ok {
				layer = l
			}
		}
	}
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, err := style.ParseMode(raw)
		if err != nil {
			return prefs.Layer{}, fmt.Errorf("%w: %v", prefs.ErrInvalid, err)
		}
		layer.Mode = m
	}
	return layer, nil
}

func (h *Handler) mapEntry(w http.ResponseWriter, r *http.Request) (dataset.Entry, bool) {
	e, err := h.data.Catalog().Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return dataset.Entry{}, false
	}
	if !e.MapLayer() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("dataset %q is not a map layer", e.ID))
		return dataset.Entry{}, false
	}
	return e, true
}

func parseSimplify(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	tol, err := strconv.ParseFloat(raw, 64)
	if err != nil || tol < 0 || tol > maxSimplify {
		return 0, fmt.Errorf("simplify must be a number in [0,%g]", maxSimplify)
	}
	return tol, nil
}

func simplified(g orb.Geometry, tol float64) orb.Geometry {
	if tol <= 0 || g == nil {
		return g
	}
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return g
	}
	return simplify.DouglasPeucker(tol).Simplify(orb.Clone(g))
}

func (h *Handler) layerGeoJSON(w http.ResponseWriter, r *http.Request) {
	e, ok := h.mapEntry(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	layer, err := h.resolveLayer(r, e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	force := strings.EqualFold(q.Get("force"), "true")
	tol, err := parseSimplify(q.Get("simplify"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := query.ParseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"layer": layer}
	if !layer.Visible && !force {
		writeGeoJSON(w, http.StatusOK, fc)
		return
	}

	ds, err := h.data.Get(r.Context(), e.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The layer settings are part of the body, so they are part of the tag.
	lb, err := json.Marshal(layer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	etag := fmt.Sprintf(`"%s"`, keys.Content([]byte(strings.Join([]string{
		ds.Hash, string(lb), r.URL.RawQuery,
	}, "|"))))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	painter := style.Painter{Mode: layer.Mode, Base: layer.Color}
	for _, it := range items(ds, filter) {
		f := geojson.NewFeature(simplified(it.geom, tol))
		f.ID = it.props["id"]
		for k, v := range it.props {
			f.Properties[k] = v
		}
		f.Properties["color"] = painter.Paint(it.props)
		fc.Append(f)
	}
	writeGeoJSON(w, http.StatusOK, fc)
}

func writeGeoJSON(w http.ResponseWriter, status int, fc *geojson.FeatureCollection) {
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (h *Handler) layerLegend(w http.ResponseWriter, r *http.Request) {
	e, ok := h.mapEntry(w, r)
	if !ok {
		return
	}
	layer, err := h.resolveLayer(r, e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := map[string]any{"layer": e.ID, "mode": layer.Mode}

	rule, ok := style.RuleFor(layer.Mode)
	if !ok {
		resp["entries"] = []style.LegendEntry{{Label: e.Title, Color: layer.Color}}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var values []string
	if rule.Kind == style.Categorical && len(rule.Colors) == 0 {
		if ds, err := h.data.Get(r.Context(), e.ID); err == nil {
			seen := map[string]struct{}{}
			for _, it := range items(ds, query.Filter{}) {
				if s := props.String(it.props[rule.Property]); s != "" {
					seen[s] = struct{}{}
				}
			}
			for s := range seen {
				values = append(values, s)
			}
		}
	}
	resp["property"] = rule.Property
	resp["kind"] = rule.Kind
	entries := rule.Legend(values, layer.Color)
	if entries == nil {
		entries = []style.LegendEntry{}
	}
	resp["entries"] = entries
	writeJSON(w, http.StatusOK, resp)
}
