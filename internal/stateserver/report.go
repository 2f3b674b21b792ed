package stateserver

import (
	"sort"

	"github.com/san-kum/quakesim/internal/furniture"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/seismic"
	"github.com/san-kum/quakesim/internal/session"
)

// HazardItem is one line of the safety report.
type HazardItem struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Label    string          `json:"label"`
	Mass     float64         `json:"mass"`
	Hazard   string          `json:"hazard"`
	Risk     int             `json:"risk"`
	Level    scene.RiskLevel `json:"level"`
}

// Report summarizes the hazards of the current room at the current
// magnitude.
type Report struct {
	Magnitude float64      `json:"magnitude"`
	Intensity float64      `json:"intensity"`
	Items     []HazardItem `json:"items"`
	HighRisk  int          `json:"high_risk"`
	Advice    string       `json:"advice"`
}

// BuildReport lists detections with their hazard text, highest risk first.
// Detections without a vision risk score are ranked by mass.
func BuildReport(st session.State) Report {
	rep := Report{
		Magnitude: st.Magnitude,
		Intensity: seismic.DefaultModel().Intensity(st.Magnitude),
		Items:     make([]HazardItem, 0, len(st.Detections)),
	}

	for _, d := range st.Detections {
		spec := furniture.Lookup(d.Category)
		item := HazardItem{
			ID:       d.ID,
			Category: spec.Category,
			Label:    d.DisplayName(),
			Mass:     spec.Mass,
			Hazard:   spec.HazardMessage,
			Risk:     d.Risk,
			Level:    d.Level(),
		}
		if item.Level == scene.RiskHigh {
			rep.HighRisk++
		}
		rep.Items = append(rep.Items, item)
	}

	sort.SliceStable(rep.Items, func(i, j int) bool {
		if rep.Items[i].Risk != rep.Items[j].Risk {
			return rep.Items[i].Risk > rep.Items[j].Risk
		}
		return rep.Items[i].Mass > rep.Items[j].Mass
	})

	rep.Advice = advice(rep)
	return rep
}

func advice(rep Report) string {
	switch {
	case len(rep.Items) == 0:
		return "No objects detected yet."
	case rep.HighRisk > 0:
		return "Secure high-risk items first: " + rep.Items[0].Hazard
	case rep.Intensity > 0.5:
		return "Strong shaking expected. Anchor tall furniture and keep walkways clear."
	default:
		return "Low risk at this magnitude. " + rep.Items[0].Hazard
	}
}
