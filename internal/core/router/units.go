package router

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/obras-dashboard/internal/query"
	"github.com/mohammed-shakir/obras-dashboard/internal/stats"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	req, err := query.ParseRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req.Run(h.data.Units(r.Context())))
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	u, ok := h.data.Unit(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unit not found")
		return
	}
	painter := style.Painter{Mode: style.ModeEstado}
	if e, err := h.data.Catalog().Lookup(u.Dataset); err == nil {
		layer, err := h.resolveLayer(r, e)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		painter = style.Painter{Mode: layer.Mode, Base: layer.Color}
	}
	f := geojson.NewFeature(u.Geometry)
	f.ID = u.ID
	f.Properties = u.Properties()
	f.Properties["color"] = painter.Paint(f.Properties)
	b, err := f.MarshalJSON()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(b)
}

func (h *Handler) filterOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, query.Options(h.data.Units(r.Context())))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	f, err := query.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(f.Apply(h.data.Units(r.Context()))))
}

func (h *Handler) budgetSeries(w http.ResponseWriter, r *http.Request) {
	f, err := query.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var bpins map[string]struct{}
	if !f.Empty() {
		bpins = stats.BPINs(f.Apply(h.data.Units(r.Context())))
	}
	writeJSON(w, http.StatusOK, stats.Budget(h.data.Budget(r.Context()), bpins))
}

func (h *Handler) hexbins(w http.ResponseWriter, r *http.Request) {
	res := h.h3Res
	if raw := r.URL.Query().Get("res"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "res must be an integer")
			return
		}
		res = n
	}
	bins, skipped, err := stats.Hexbins(h.data.Incidents(r.Context()), res)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fc, err := stats.HexbinFeatures(bins)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fc.ExtraMembers = map[string]any{"resolution": res, "skipped": skipped}
	writeGeoJSON(w, http.StatusOK, fc)
}
