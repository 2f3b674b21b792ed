package scene

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/san-kum/quakesim/internal/furniture"
)

// rawDetection accepts the field spellings seen from the vision prompts and
// the analyze backend.
type rawDetection struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Category string          `json:"category"`
	Label    string          `json:"label"`
	X        *float64        `json:"x"`
	Z        *float64        `json:"z"`
	Risk     json.Number     `json:"risk"`
	BBox     json.RawMessage `json:"bbox"`
}

// ParseDetections extracts the first JSON array of objects found in text.
// Anything that cannot be decoded yields an empty list; this never fails.
func ParseDetections(text string) []Detection {
	data := []byte(strings.TrimSpace(text))

	var raw []rawDetection
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = nil
		for off := 0; off < len(data); {
			i := bytes.IndexByte(data[off:], '[')
			if i < 0 {
				break
			}
			start := off + i
			dec := json.NewDecoder(bytes.NewReader(data[start:]))
			var candidate []rawDetection
			if dec.Decode(&candidate) == nil {
				raw = candidate
				break
			}
			off = start + 1
		}
	}

	return fromRaw(raw)
}

// ParseDetectionsJSON decodes an already-isolated JSON array, e.g. the
// detections field of an analyze response.
func ParseDetectionsJSON(data json.RawMessage) []Detection {
	var raw []rawDetection
	if err := json.Unmarshal(data, &raw); err != nil {
		return []Detection{}
	}
	return fromRaw(raw)
}

// fromRaw normalizes decoded items, dropping entries with no category at all.
func fromRaw(raw []rawDetection) []Detection {
	out := make([]Detection, 0, len(raw))
	for _, r := range raw {
		category := firstNonEmpty(r.Category, r.Type, r.Label)
		if category == "" {
			continue
		}
		d := Detection{
			ID:       r.ID,
			Category: furniture.Normalize(category),
			Label:    r.Label,
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if r.X != nil && finite(*r.X) {
			d.X = *r.X
		}
		if r.Z != nil && finite(*r.Z) {
			d.Z = *r.Z
		}
		if f, err := r.Risk.Float64(); err == nil && finite(f) {
			d.Risk = int(math.Round(math.Max(0, math.Min(100, f))))
		}
		if len(r.BBox) > 0 {
			var box []float64
			if json.Unmarshal(r.BBox, &box) == nil && len(box) == 4 {
				copy(d.BBox[:], box)
			}
		}
		out = append(out, d)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
