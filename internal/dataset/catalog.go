// Package dataset loads the dashboard's static GeoJSON/JSON files and turns
// them into typed records: fetch, validate, normalize, expose.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

var (
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrNotLoaded      = errors.New("dataset not loaded")
)

// Entry describes one static file of the data directory.
type Entry struct {
	ID          string            `json:"id"`
	Path        string            `json:"path"`
	Kind        model.DatasetKind `json:"kind"`
	Title       string            `json:"title"`
	Color       string            `json:"color,omitempty"`
	DefaultMode style.Mode        `json:"mode,omitempty"`
	Hidden      bool              `json:"hidden,omitempty"`
}

// MapLayer reports whether the entry renders as a map layer.
func (e Entry) MapLayer() bool { return e.Kind != model.KindBudget }

type Catalog struct {
	entries []Entry
	byID    map[string]int
}

func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Entry{
		{ID: "comunas", Path: "cartografia_base/comunas_corregimientos.geojson", Kind: model.KindBoundary, Title: "Comunas y corregimientos", Color: "#64748B", DefaultMode: style.ModeNone},
		{ID: "barrios", Path: "cartografia_base/barrios_veredas.geojson", Kind: model.KindBoundary, Title: "Barrios y veredas", Color: "#94A3B8", DefaultMode: style.ModeNone, Hidden: true},
		{ID: "equipamientos", Path: "unidades_proyecto/equipamientos.geojson", Kind: model.KindUnits, Title: "Equipamientos", Color: "#3B82F6", DefaultMode: style.ModeEstado},
		{ID: "infraestructura_vial", Path: "unidades_proyecto/infraestructura_vial.geojson", Kind: model.KindUnits, Title: "Infraestructura vial", Color: "#F97316", DefaultMode: style.ModeEstado},
		{ID: "centros_gravedad", Path: "centros_gravedad/centros_gravedad_unificado.geojson", Kind: model.KindIncident, Title: "Centros de gravedad", Color: "#EF4444", DefaultMode: style.ModeNone, Hidden: true},
		{ID: "movimientos_presupuestales", Path: "ejecucion_presupuestal/movimientos_presupuestales.json", Kind: model.KindBudget, Title: "Movimientos presupuestales"},
		{ID: "ejecucion_presupuestal", Path: "ejecucion_presupuestal/ejecucion_presupuestal.json", Kind: model.KindBudget, Title: "Ejecución presupuestal"},
	})
	return c
}

func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(entries))}
	for i, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: id is required", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, e.ID)
		}
		clean := path.Clean(strings.TrimSpace(e.Path))
		if clean == "." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
			return nil, fmt.Errorf("entry %q: invalid path %q", e.ID, e.Path)
		}
		e.Path = clean
		switch e.Kind {
		case model.KindBoundary, model.KindUnits, model.KindIncident, model.KindBudget:
		default:
			return nil, fmt.Errorf("entry %q: unknown kind %q", e.ID, e.Kind)
		}
		if e.Color == "" {
			e.Color = style.DefaultColor
		}
		if !style.ValidColor(e.Color) {
			return nil, fmt.Errorf("entry %q: color %q is not #RRGGBB", e.ID, e.Color)
		}
		if e.DefaultMode == "" {
			e.DefaultMode = style.ModeNone
		}
		if _, err := style.ParseMode(string(e.DefaultMode)); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// LoadCatalogFile reads a JSON array of entries.
func LoadCatalogFile(p string) (*Catalog, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(entries)
}

func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) Lookup(id string) (Entry, error) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}
	return c.entries[i], nil
}

func (c *Catalog) IDs() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.ID
	}
	return out
}

// OfKind lists entry ids of kind k in catalog order.
func (c *Catalog) OfKind(k model.DatasetKind) []string {
	var out []string
	for _, e := range c.entries {
		if e.Kind == k {
			out = append(out, e.ID)
		}
	}
	return out
}
