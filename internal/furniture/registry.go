// Package furniture maps object categories to the physical attributes used by
// the simulation and the hazard text shown next to each detected object.
package furniture

import (
	"sort"
	"strings"

	"github.com/san-kum/quakesim/internal/dynamo"
)

const (
	Bookshelf    = "bookshelf"
	Refrigerator = "refrigerator"
	Chair        = "chair"
	Table        = "table"
	Lamp         = "lamp"
	TV           = "tv"
	Plant        = "plant"

	// DefaultCategory is what unknown categories resolve to.
	DefaultCategory = Chair
)

type Spec struct {
	Category      string
	Dimensions    dynamo.Vec3 // width (x), height (y), depth (z)
	Mass          float64
	Color         string
	HazardMessage string
}

// HalfExtents returns half of the box dimensions.
func (s Spec) HalfExtents() dynamo.Vec3 {
	return s.Dimensions.Scale(0.5)
}

var specs = map[string]Spec{
	Bookshelf: {
		Category: Bookshelf, Dimensions: dynamo.V(1.2, 4, 0.6), Mass: 25, Color: "#5d4037",
		HazardMessage: "Tipping Risk: High. Anchor to wall studs.",
	},
	Refrigerator: {
		Category: Refrigerator, Dimensions: dynamo.V(1.6, 3, 1.6), Mass: 150, Color: "#bdc3c7",
		HazardMessage: "Crush Hazard: High. Ensure door latches are secure.",
	},
	Chair: {
		Category: Chair, Dimensions: dynamo.V(0.8, 1, 0.8), Mass: 8, Color: "#2c3e50",
		HazardMessage: "Sliding Hazard: Low. Use rubber floor grips.",
	},
	Table: {
		Category: Table, Dimensions: dynamo.V(3, 1, 2), Mass: 45, Color: "#8B4513",
		HazardMessage: "Stable base. Safe to duck under if reinforced.",
	},
	Lamp: {
		Category: Lamp, Dimensions: dynamo.V(0.4, 3.5, 0.4), Mass: 5, Color: "#f1c40f",
		HazardMessage: "Falling Hazard: High. Secure base or move away from beds.",
	},
	TV: {
		Category: TV, Dimensions: dynamo.V(2.5, 1.5, 0.2), Mass: 12, Color: "#222222",
		HazardMessage: "Impact Hazard: Use mounting brackets or safety straps.",
	},
	Plant: {
		Category: Plant, Dimensions: dynamo.V(0.7, 1.5, 0.7), Mass: 10, Color: "#27ae60",
		HazardMessage: "Spillage/Fall Hazard: Use heavy ceramic pots.",
	},
}

// Normalize lowercases and trims a category name.
func Normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Lookup never fails: unknown categories get the default spec.
func Lookup(category string) Spec {
	if s, ok := specs[Normalize(category)]; ok {
		return s
	}
	return specs[DefaultCategory]
}

func Known(category string) bool {
	_, ok := specs[Normalize(category)]
	return ok
}

func Default() Spec {
	return specs[DefaultCategory]
}

func Categories() []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
