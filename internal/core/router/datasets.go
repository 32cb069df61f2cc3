package router

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/prefs"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

func (h *Handler) listDatasets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":    h.data.Ready(),
		"datasets": h.data.Statuses(),
	})
}

func (h *Handler) refreshAll(w http.ResponseWriter, r *http.Request) {
	sts := h.data.RefreshAll(r.Context())
	h.logger.InfoContext(r.Context(), "datasets refreshed", "count", len(sts))
	writeJSON(w, http.StatusOK, map[string]any{"datasets": sts})
}

func (h *Handler) refreshOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.data.Refresh(r.Context(), id)
	if errors.Is(err, dataset.ErrUnknownDataset) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		// the previous copy, if any, is still served
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "dataset": st})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) listModes(w http.ResponseWriter, _ *http.Request) {
	type mode struct {
		Mode     style.Mode `json:"mode"`
		Property string     `json:"property,omitempty"`
		Kind     style.Kind `json:"kind,omitempty"`
	}
	var out []mode
	for _, m := range style.Modes() {
		r, _ := style.RuleFor(m)
		out = append(out, mode{Mode: m, Property: r.Property, Kind: r.Kind})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listBaseMaps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, prefs.BaseMaps())
}
