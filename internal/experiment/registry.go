package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/quakesim/internal/scene"
)

// Registry holds named rooms that can be simulated without a camera.
type Registry struct {
	scenes map[string]func() []scene.Detection
}

func NewRegistry() *Registry {
	r := &Registry{scenes: make(map[string]func() []scene.Detection)}

	r.scenes["living_room"] = func() []scene.Detection {
		return []scene.Detection{
			place("sofa-1", "sofa", -3, -4, "Sofa", 20),
			place("tv-1", "tv", 0, -9, "Television", 70),
			place("lamp-1", "lamp", 4, -6, "Floor lamp", 85),
			place("bookshelf-1", "bookshelf", -7, -8, "Bookshelf", 90),
			place("table-1", "table", 1, -3, "Coffee table", 15),
		}
	}
	r.scenes["kitchen"] = func() []scene.Detection {
		return []scene.Detection{
			place("fridge-1", "refrigerator", -6, -8, "Refrigerator", 80),
			place("table-1", "table", 0, -4, "Dining table", 20),
			place("chair-1", "chair", -1.5, -2, "Chair", 25),
			place("chair-2", "chair", 1.5, -2, "Chair", 25),
		}
	}
	r.scenes["bedroom"] = func() []scene.Detection {
		return []scene.Detection{
			place("bookshelf-1", "bookshelf", 6, -8, "Bookshelf", 95),
			place("lamp-1", "lamp", -2, -7, "Bedside lamp", 75),
			place("plant-1", "plant", 7, -2, "Potted plant", 40),
		}
	}
	r.scenes["office"] = func() []scene.Detection {
		return []scene.Detection{
			place("desk-1", "table", 0, -5, "Desk", 20),
			place("chair-1", "chair", 0, -3, "Office chair", 30),
			place("monitor-1", "tv", 0, -6.2, "Monitor", 65),
			place("shelf-1", "bookshelf", -6, -8, "Shelving", 90),
		}
	}
	r.scenes["empty"] = func() []scene.Detection { return []scene.Detection{} }

	return r
}

func place(id, category string, x, z float64, label string, risk int) scene.Detection {
	d := scene.NewDetection(category, x, z)
	d.ID = id
	d.Label = label
	d.Risk = risk
	return d
}

// GetScene returns a fresh copy of the named room.
func (r *Registry) GetScene(name string) ([]scene.Detection, error) {
	fn, ok := r.scenes[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListScenes() []string {
	names := make([]string, 0, len(r.scenes))
	for name := range r.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
