package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/san-kum/quakesim/internal/camera"
	"github.com/san-kum/quakesim/internal/httpc"
	"github.com/san-kum/quakesim/internal/scene"
)

// Backend posts frames to an analyze service that answers
// {"detections": [{"id", "label", "bbox", "risk"}, ...]}.
type Backend struct {
	URL    string
	Client *http.Client
}

type analyzeRequest struct {
	Image     string  `json:"image"`
	Magnitude float64 `json:"magnitude"`
}

type analyzeResponse struct {
	Detections json.RawMessage `json:"detections"`
}

func (b *Backend) Analyze(ctx context.Context, frame camera.Frame, magnitude float64) ([]scene.Detection, error) {
	body, err := json.Marshal(analyzeRequest{Image: frame.DataURL(), Magnitude: magnitude})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Or(b.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze error (status %d): %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out analyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Detections) == 0 {
		return []scene.Detection{}, nil
	}
	ds := scene.ParseDetectionsJSON(out.Detections)

	// boxes are in pixels; place them on the floor using the frame size
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(frame.Data)); err == nil {
		for i, d := range ds {
			if d.X == 0 && d.Z == 0 {
				ds[i] = d.PlaceFromBBox(cfg.Width, cfg.Height)
			}
		}
	}
	return ds, nil
}
