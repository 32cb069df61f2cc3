// Package prefs holds per-client map preferences: layer visibility,
// opacity, color and representation mode, plus the base map.
package prefs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/style"
)

var (
	ErrInvalid      = errors.New("invalid preference")
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrUnavailable means the store could not be read or written.
	ErrUnavailable = errors.New("preferences store unavailable")
	// ErrCorrupt marks a stored document that no longer decodes.
	ErrCorrupt = errors.New("stored preferences unreadable")
)

type Layer struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Visible bool       `json:"visible"`
	Opacity float64    `json:"opacity"`
	Color   string     `json:"color"`
	Mode    style.Mode `json:"mode"`
}

type Preferences struct {
	Layers    []Layer   `json:"layers"`
	BaseMap   string    `json:"base_map"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

type BaseMap struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

const DefaultBaseMap = "osm"

var baseMaps = []BaseMap{
	{Name: "osm", Title: "OpenStreetMap", URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", Attribution: "© OpenStreetMap contributors"},
	{Name: "carto-light", Title: "CARTO claro", URL: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png", Attribution: "© OpenStreetMap contributors © CARTO"},
	{Name: "carto-dark", Title: "CARTO oscuro", URL: "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png", Attribution: "© OpenStreetMap contributors © CARTO"},
	{Name: "satellite", Title: "Satélite", URL: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}", Attribution: "Tiles © Esri"},
}

func BaseMaps() []BaseMap { return append([]BaseMap(nil), baseMaps...) }

func validBaseMap(name string) bool {
	for _, b := range baseMaps {
		if b.Name == name {
			return true
		}
	}
	return false
}

const defaultOpacity = 0.8

// Defaults builds the initial preferences from the catalog map layers.
func Defaults(cat *dataset.Catalog) Preferences {
	var p Preferences
	for _, e := range cat.Entries() {
		if !e.MapLayer() {
			continue
		}
		p.Layers = append(p.Layers, Layer{
			ID:      e.ID,
			Name:    e.Title,
			Visible: !e.Hidden,
			Opacity: defaultOpacity,
			Color:   e.Color,
			Mode:    e.DefaultMode,
		})
	}
	p.BaseMap = DefaultBaseMap
	return p
}

// Reconcile fits stored preferences onto defaults: stored values win for
// known layers, unknown ids are dropped and missing layers get defaults.
// Invalid stored values fall back to the default field.
func Reconcile(stored, defaults Preferences) Preferences {
	byID := make(map[string]Layer, len(stored.Layers))
	for _, l := range stored.Layers {
		byID[l.ID] = l
	}
	out := Preferences{Layers: make([]Layer, len(defaults.Layers)), BaseMap: defaults.BaseMap, UpdatedAt: stored.UpdatedAt}
	for i, d := range defaults.Layers {
		l, ok := byID[d.ID]
		if !ok {
			out.Layers[i] = d
			continue
		}
		l.Name = d.Name
		if validOpacity(l.Opacity) != nil {
			l.Opacity = d.Opacity
		}
		if !style.ValidColor(l.Color) {
			l.Color = d.Color
		}
		if _, err := style.ParseMode(string(l.Mode)); err != nil || l.Mode == "" {
			l.Mode = d.Mode
		}
		out.Layers[i] = l
	}
	if validBaseMap(stored.BaseMap) {
		out.BaseMap = stored.BaseMap
	}
	return out
}

func validOpacity(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: opacity %v outside [0,1]", ErrInvalid, v)
	}
	return nil
}

// LayerPatch carries the fields to change; nil fields are left alone.
type LayerPatch struct {
	Visible *bool    `json:"visible,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	Color   *string  `json:"color,omitempty"`
	Mode    *string  `json:"mode,omitempty"`
}

// Layer returns the layer with id.
func (p Preferences) Layer(id string) (Layer, bool) {
	for _, l := range p.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// UpdateLayer validates patch as a whole and applies it to layer id.
func (p *Preferences) UpdateLayer(id string, patch LayerPatch) error {
	idx := -1
	for i := range p.Layers {
		if p.Layers[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}
	l := p.Layers[idx]
	if patch.Opacity != nil {
		if err := validOpacity(*patch.Opacity); err != nil {
			return err
		}
		l.Opacity = *patch.Opacity
	}
	if patch.Color != nil {
		if !style.ValidColor(*patch.Color) {
			return fmt.Errorf("%w: color %q is not #RRGGBB", ErrInvalid, *patch.Color)
		}
		l.Color = *patch.Color
	}
	if patch.Mode != nil {
		m, err := style.ParseMode(*patch.Mode)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		l.Mode = m
	}
	if patch.Visible != nil {
		l.Visible = *patch.Visible
	}
	p.Layers[idx] = l
	return nil
}

func (p *Preferences) SetBaseMap(name string) error {
	if !validBaseMap(name) {
		return fmt.Errorf("%w: unknown base map %q", ErrInvalid, name)
	}
	p.BaseMap = name
	return nil
}
