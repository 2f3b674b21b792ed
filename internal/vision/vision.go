// Package vision turns camera frames into furniture detections.
//
// Two adapters are provided: [Gemini] asks a multimodal model directly and
// [Backend] posts the frame to an analyze endpoint that already returns
// structured detections. Both degrade malformed answers to an empty list;
// only transport failures are errors.
package vision

import (
	"context"
	"errors"

	"github.com/san-kum/quakesim/internal/camera"
	"github.com/san-kum/quakesim/internal/scene"
)

var ErrNoAPIKey = errors.New("vision: API key not set")

// Analyzer is the vision service seen by the detection loop.
type Analyzer interface {
	Analyze(ctx context.Context, frame camera.Frame, magnitude float64) ([]scene.Detection, error)
}

// Mock is an Analyzer whose behaviour is set per test.
type Mock struct {
	AnalyzeFunc func(ctx context.Context, frame camera.Frame, magnitude float64) ([]scene.Detection, error)
}

func (m *Mock) Analyze(ctx context.Context, frame camera.Frame, magnitude float64) ([]scene.Detection, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, frame, magnitude)
	}
	return []scene.Detection{}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
