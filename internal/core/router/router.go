// Package router serves the dashboard JSON and GeoJSON API.
package router

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/hexgrid"
	"github.com/mohammed-shakir/obras-dashboard/internal/prefs"
)

// Datasets is the read and refresh surface of the dataset loader.
type Datasets interface {
	Catalog() *dataset.Catalog
	Statuses() []model.DatasetStatus
	Ready() bool
	Refresh(ctx context.Context, id string) (model.DatasetStatus, error)
	RefreshAll(ctx context.Context) []model.DatasetStatus
	Get(ctx context.Context, id string) (*dataset.Dataset, error)
	Units(ctx context.Context) []model.ProjectUnit
	Unit(ctx context.Context, id string) (model.ProjectUnit, bool)
	Incidents(ctx context.Context) []model.Incident
	Budget(ctx context.Context) []model.BudgetMovement
}

type Deps struct {
	Data   Datasets
	Prefs  *prefs.Service
	Logger *slog.Logger
	// H3Res is the default hexbin resolution.
	H3Res int
	// Static serves raw files under /data/ when set.
	Static fs.FS
}

type Handler struct {
	data   Datasets
	prefs  *prefs.Service
	logger *slog.Logger
	h3Res  int
	static fs.FS
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if hexgrid.ValidateRes(d.H3Res) != nil {
		d.H3Res = 8
	}
	return &Handler{data: d.Data, prefs: d.Prefs, logger: d.Logger, h3Res: d.H3Res, static: d.Static}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/datasets", h.listDatasets)
		r.Post("/datasets/refresh", h.refreshAll)
		r.Post("/datasets/{id}/refresh", h.refreshOne)

		r.Get("/modes", h.listModes)
		r.Get("/basemaps", h.listBaseMaps)
		r.Get("/layers/{id}/geojson", h.layerGeoJSON)
		r.Get("/layers/{id}/legend", h.layerLegend)

		r.Get("/units", h.listUnits)
		r.Get("/units/{id}", h.getUnit)
		r.Get("/filters", h.filterOptions)
		r.Get("/stats", h.summary)
		r.Get("/budget/series", h.budgetSeries)
		r.Get("/incidents/hexbins", h.hexbins)

		r.Get("/preferences", h.getPrefs)
		r.Put("/preferences/layers/{id}", h.putLayer)
		r.Put("/preferences/basemap", h.putBaseMap)
		r.Post("/preferences/reset", h.resetPrefs)
	})
	if h.static != nil {
		r.Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.FS(h.static))))
	}
}
