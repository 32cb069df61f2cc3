// Package stats derives dashboard figures from filtered units, budget
// movements and incident points.
package stats

import (
	"cmp"
	"slices"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
)

type Totals struct {
	Count          int                `json:"count"`
	BudgetSum      float64            `json:"presupuesto_total"`
	WithBudget     int                `json:"con_presupuesto"`
	MeanProgress   *float64           `json:"avance_promedio"`
	WithProgress   int                `json:"con_avance"`
	ByStatus       map[string]int     `json:"por_estado"`
	ByComuna       map[string]int     `json:"por_comuna"`
	ByIntervention map[string]int     `json:"por_tipo_intervencion"`
	BudgetByCenter map[string]float64 `json:"presupuesto_por_centro_gestor"`
}

const unknownLabel = "Sin dato"

func label(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}

// Summarize computes totals. MeanProgress averages only units that report
// progress and is nil when none do.
func Summarize(units []model.ProjectUnit) Totals {
	t := Totals{
		Count:          len(units),
		ByStatus:       map[string]int{},
		ByComuna:       map[string]int{},
		ByIntervention: map[string]int{},
		BudgetByCenter: map[string]float64{},
	}
	var progSum float64
	for _, u := range units {
		t.ByStatus[label(u.Status)]++
		t.ByComuna[label(u.Comuna)]++
		t.ByIntervention[label(u.InterventionType)]++
		if u.Budget != nil {
			t.BudgetSum += *u.Budget
			t.WithBudget++
			t.BudgetByCenter[label(u.ManagingCenter)] += *u.Budget
		}
		if u.Progress != nil {
			progSum += *u.Progress
			t.WithProgress++
		}
	}
	if t.WithProgress > 0 {
		m := progSum / float64(t.WithProgress)
		t.MeanProgress = &m
	}
	return t
}

type PeriodTotal struct {
	Period         string  `json:"periodo"`
	Initial        float64 `json:"ppto_inicial"`
	Modified       float64 `json:"ppto_modificado"`
	Additions      float64 `json:"adiciones"`
	Reductions     float64 `json:"reducciones"`
	Executed       float64 `json:"ejecucion"`
	Paid           float64 `json:"pagos"`
	ExecutionRatio float64 `json:"porcentaje_ejecucion"`
	Projects       int     `json:"proyectos"`
}

type ProjectExecution struct {
	BPIN     string  `json:"bpin"`
	Period   string  `json:"periodo"`
	Modified float64 `json:"ppto_modificado"`
	Executed float64 `json:"ejecucion"`
	Ratio    float64 `json:"porcentaje_ejecucion"`
}

type BudgetSeries struct {
	Periods  []PeriodTotal      `json:"periodos"`
	Projects []ProjectExecution `json:"proyectos"`
}

func ratio(executed, modified float64) float64 {
	if modified <= 0 {
		return 0
	}
	return executed / modified * 100
}

// Budget sums movements per period, sorted by period. When bpins is non-nil
// only those projects count. Projects carries each project's latest period.
func Budget(movs []model.BudgetMovement, bpins map[string]struct{}) BudgetSeries {
	byPeriod := map[string]*PeriodTotal{}
	projInPeriod := map[string]map[string]struct{}{}
	latest := map[string]model.BudgetMovement{}

	for _, m := range movs {
		if bpins != nil {
			if _, ok := bpins[m.BPIN]; !ok {
				continue
			}
		}
		p := byPeriod[m.Period]
		if p == nil {
			p = &PeriodTotal{Period: m.Period}
			byPeriod[m.Period] = p
			projInPeriod[m.Period] = map[string]struct{}{}
		}
		p.Initial += m.InitialBudget
		p.Modified += m.ModifiedBudget
		p.Additions += m.Additions
		p.Reductions += m.Reductions
		p.Executed += m.Executed
		p.Paid += m.Paid
		projInPeriod[m.Period][m.BPIN] = struct{}{}

		if m.BPIN != "" {
			if prev, ok := latest[m.BPIN]; !ok || m.Period >= prev.Period {
				latest[m.BPIN] = m
			}
		}
	}

	out := BudgetSeries{Periods: make([]PeriodTotal, 0, len(byPeriod)), Projects: make([]ProjectExecution, 0, len(latest))}
	for period, p := range byPeriod {
		p.Projects = len(projInPeriod[period])
		p.ExecutionRatio = ratio(p.Executed, p.Modified)
		out.Periods = append(out.Periods, *p)
	}
	slices.SortFunc(out.Periods, func(a, b PeriodTotal) int { return cmp.Compare(a.Period, b.Period) })

	for bpin, m := range latest {
		out.Projects = append(out.Projects, ProjectExecution{
			BPIN: bpin, Period: m.Period, Modified: m.ModifiedBudget, Executed: m.Executed,
			Ratio: ratio(m.Executed, m.ModifiedBudget),
		})
	}
	slices.SortFunc(out.Projects, func(a, b ProjectExecution) int { return cmp.Compare(a.BPIN, b.BPIN) })
	return out
}

// BPINs collects the non-empty project codes of units.
func BPINs(units []model.ProjectUnit) map[string]struct{} {
	out := make(map[string]struct{}, len(units))
	for _, u := range units {
		if u.BPIN != "" {
			out[u.BPIN] = struct{}{}
		}
	}
	return out
}
