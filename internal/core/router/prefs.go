package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/middleware"
	"github.com/mohammed-shakir/obras-dashboard/internal/prefs"
)

func (h *Handler) getPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := h.prefs.Get(r.Context(), middleware.ClientID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) putLayer(w http.ResponseWriter, r *http.Request) {
	var patch prefs.LayerPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	p, err := h.prefs.UpdateLayer(r.Context(), middleware.ClientID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) putBaseMap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BaseMap string `json:"base_map"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	p, err := h.prefs.SetBaseMap(r.Context(), middleware.ClientID(r), body.BaseMap)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) resetPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := h.prefs.Reset(r.Context(), middleware.ClientID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
