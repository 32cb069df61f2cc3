// Package model defines core domain types shared across the service.
package model

import (
	"time"

	"github.com/paulmach/orb"
)

type DatasetKind string

const (
	KindBoundary DatasetKind = "boundary"
	KindUnits    DatasetKind = "units"
	KindIncident DatasetKind = "incidents"
	KindBudget   DatasetKind = "budget"
)

// ProjectUnit is one "unidad de proyecto": a facility or road work with its
// execution data.
type ProjectUnit struct {
	ID               string       `json:"id"`
	BPIN             string       `json:"bpin,omitempty"`
	Name             string       `json:"nombre"`
	Status           string       `json:"estado,omitempty"`
	InterventionType string       `json:"tipo_intervencion,omitempty"`
	WorkClass        string       `json:"clase_obra,omitempty"`
	ManagingCenter   string       `json:"nombre_centro_gestor,omitempty"`
	Comuna           string       `json:"comuna_corregimiento,omitempty"`
	Barrio           string       `json:"barrio_vereda,omitempty"`
	Budget           *float64     `json:"presupuesto_base,omitempty"`
	Progress         *float64     `json:"avance_obra,omitempty"`
	StartDate        *time.Time   `json:"fecha_inicio,omitempty"`
	EndDate          *time.Time   `json:"fecha_fin,omitempty"`
	Dataset          string       `json:"dataset"`
	CoordStatus      string       `json:"coord_status"`
	Location         *orb.Point   `json:"location,omitempty"`
	Geometry         orb.Geometry `json:"-"`
}

// Boundary is an administrative area (comuna, corregimiento, barrio).
type Boundary struct {
	ID       string       `json:"id"`
	Name     string       `json:"nombre"`
	Comuna   string       `json:"comuna,omitempty"`
	Dataset  string       `json:"dataset"`
	Geometry orb.Geometry `json:"-"`
}

// Incident is one aggregated "centro de gravedad" point.
type Incident struct {
	ID       string  `json:"id"`
	Category string  `json:"categoria,omitempty"`
	Comuna   string  `json:"comuna,omitempty"`
	Weight   float64 `json:"peso"`
	// CoordStatus is "fallback" when Point stands in for an unusable pair.
	CoordStatus string    `json:"coord_status"`
	Point       orb.Point `json:"-"`
}

// BudgetMovement is one budget execution row for a project in a reporting
// period.
type BudgetMovement struct {
	BPIN           string  `json:"bpin"`
	Period         string  `json:"periodo_corte"`
	ManagingCenter string  `json:"nombre_centro_gestor,omitempty"`
	InitialBudget  float64 `json:"ppto_inicial"`
	ModifiedBudget float64 `json:"ppto_modificado"`
	Additions      float64 `json:"adiciones"`
	Reductions     float64 `json:"reducciones"`
	Executed       float64 `json:"ejecucion"`
	Paid           float64 `json:"pagos"`
}

type DatasetStatus struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	State        string    `json:"state"`
	Error        string    `json:"error,omitempty"`
	Records      int       `json:"records"`
	Swapped      int       `json:"coords_swapped"`
	Invalid      int       `json:"coords_invalid"`
	Fallbacks    int       `json:"coords_fallback"`
	Dropped      int       `json:"dropped"`
	Hash         string    `json:"hash,omitempty"`
	LoadedAt     time.Time `json:"loaded_at,omitzero"`
	LoadDuration string    `json:"load_duration,omitempty"`
}

const (
	StateOK      = "ok"
	StateError   = "error"
	StatePending = "pending"
	StateStale   = "stale"
)

// Properties renders u as the flat GeoJSON property map clients read.
// Absent optional values are omitted.
func (u ProjectUnit) Properties() map[string]any {
	p := map[string]any{
		"id":           u.ID,
		"nombre":       u.Name,
		"dataset":      u.Dataset,
		"coord_status": u.CoordStatus,
	}
	put := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	put("bpin", u.BPIN)
	put("estado", u.Status)
	put("tipo_intervencion", u.InterventionType)
	put("clase_obra", u.WorkClass)
	put("nombre_centro_gestor", u.ManagingCenter)
	put("comuna_corregimiento", u.Comuna)
	put("barrio_vereda", u.Barrio)
	if u.Budget != nil {
		p["presupuesto_base"] = *u.Budget
	}
	if u.Progress != nil {
		p["avance_obra"] = *u.Progress
	}
	if u.StartDate != nil {
		p["fecha_inicio"] = u.StartDate.Format("2006-01-02")
	}
	if u.EndDate != nil {
		p["fecha_fin"] = u.EndDate.Format("2006-01-02")
	}
	return p
}
