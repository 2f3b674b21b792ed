// Package scene holds the detection records exchanged between the vision
// service, the two device roles and the physics world.
package scene

import (
	"github.com/google/uuid"

	"github.com/san-kum/quakesim/internal/furniture"
)

// Detection is one object found in a camera frame, placed on the room floor.
// X spans roughly [-10, 10] and Z [-10, 0].
type Detection struct {
	ID       string     `json:"id"`
	Category string     `json:"category"`
	X        float64    `json:"x"`
	Z        float64    `json:"z"`
	Label    string     `json:"label,omitempty"`
	Risk     int        `json:"risk,omitempty"`
	BBox     [4]float64 `json:"bbox,omitempty"`
}

// NewDetection assigns a fresh id and a normalized category.
func NewDetection(category string, x, z float64) Detection {
	return Detection{
		ID:       uuid.NewString(),
		Category: furniture.Normalize(category),
		X:        x,
		Z:        z,
	}
}

// Spec resolves the detection's physical properties through the registry.
func (d Detection) Spec() furniture.Spec {
	return furniture.Lookup(d.Category)
}

// Clone returns a copy of the list that does not share backing storage.
// A nil input yields an empty, non-nil list.
func Clone(ds []Detection) []Detection {
	out := make([]Detection, len(ds))
	copy(out, ds)
	return out
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Level buckets the fall-risk percentage the way the overlay colours it.
func (d Detection) Level() RiskLevel {
	switch {
	case d.Risk > 70:
		return RiskHigh
	case d.Risk > 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// DisplayName prefers the vision label and falls back to the category.
func (d Detection) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Category
}

// PlaceFromBBox maps the bounding-box centre in a w x h frame onto the room
// floor: left-right spans x in [-10, 10], top-bottom spans z in [-10, 0].
// Detections without a box are returned unchanged.
func (d Detection) PlaceFromBBox(w, h int) Detection {
	if d.BBox == ([4]float64{}) || w <= 0 || h <= 0 {
		return d
	}
	cx := (d.BBox[0] + d.BBox[2]) / 2 / float64(w)
	cy := (d.BBox[1] + d.BBox[3]) / 2 / float64(h)
	d.X = clampUnit(cx)*20 - 10
	d.Z = clampUnit(cy)*10 - 10
	return d
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
