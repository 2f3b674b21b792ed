// Package export renders saved runs as standalone SVG images.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/quakesim/internal/furniture"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/storage"
)

// Body is one object's footprint on the floor at a single instant.
type Body struct {
	ID       string
	Category string
	X, Z     float64
	Tilt     float64
}

// BodiesAt reads every object's position at trace row i, taking the
// category from the run's detections.
func BodiesAt(detections []scene.Detection, trace *storage.Trace, i int) []Body {
	if i < 0 || i >= len(trace.Rows) {
		return nil
	}
	at := func(name string) (float64, bool) {
		col := trace.Column(name)
		if col == nil {
			return 0, false
		}
		return col[i], true
	}

	out := make([]Body, 0, len(detections))
	for _, d := range detections {
		x, ok := at(d.ID + "_x")
		if !ok {
			continue
		}
		z, _ := at(d.ID + "_z")
		tilt, _ := at(d.ID + "_tilt")
		out = append(out, Body{ID: d.ID, Category: d.Category, X: x, Z: z, Tilt: tilt})
	}
	return out
}

// RoomSVG draws the room from above: x spans [-10, 10] and z spans
// [-10, 0], scale pixels per metre. Toppled objects get a red outline.
func RoomSVG(bodies []Body, scale float64) string {
	width := 20 * scale
	height := 10 * scale
	px := func(x float64) float64 { return (x + 10) * scale }
	pz := func(z float64) float64 { return (z + 10) * scale }

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, b := range bodies {
		spec := furniture.Lookup(b.Category)
		w := spec.Dimensions.X * scale
		d := spec.Dimensions.Z * scale
		stroke := "#444444"
		if b.Tilt > math.Pi/4 {
			stroke = "#ff3333"
		}
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="%s" stroke-width="2"/>
`, px(b.X)-w/2, pz(b.Z)-d/2, w, d, spec.Color, stroke))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="#dddddd" font-size="%.0f" text-anchor="middle">%s</text>
`, px(b.X), pz(b.Z)+d/2+scale*0.4, scale*0.35, b.ID))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// TraceSVG plots one series against time as a polyline.
func TraceSVG(times, values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 || len(times) != len(values) {
		return ""
	}

	minT, maxT := times[0], times[len(times)-1]
	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	rangeT := maxT - minT
	rangeV := maxV - minV
	if rangeT == 0 {
		rangeT = 1
	}
	if rangeV == 0 {
		rangeV = 1
	}
	minV -= rangeV * 0.1
	rangeV *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i, v := range values {
		x := (times[i] - minT) / rangeT * float64(width)
		y := float64(height) - (v-minV)/rangeV*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
