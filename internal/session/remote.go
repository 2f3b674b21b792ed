package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/san-kum/quakesim/internal/httpc"
	"github.com/san-kum/quakesim/internal/scene"
)

// ErrStatus is wrapped when the state server answers with a non-2xx code.
var ErrStatus = errors.New("session: unexpected status")

// Paths served by the state server.
const (
	PathState      = "/state"
	PathMagnitude  = "/update_magnitude"
	PathDetections = "/detections"
)

// MagnitudeRequest is the body of POST /update_magnitude.
type MagnitudeRequest struct {
	Magnitude float64 `json:"magnitude"`
}

// DetectionsRequest is the body of POST /detections.
type DetectionsRequest struct {
	Detections []scene.Detection `json:"detections"`
}

// Remote is a Client for the HTTP state server.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote targets baseURL, e.g. "http://192.168.1.20:8080". A nil client
// uses the shared httpc client.
func NewRemote(baseURL string, client *http.Client) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Or(client),
	}
}

func (r *Remote) Fetch(ctx context.Context) (State, error) {
	var st State
	if err := r.do(ctx, http.MethodGet, PathState, nil, &st); err != nil {
		return State{}, err
	}
	if st.Detections == nil {
		st.Detections = []scene.Detection{}
	}
	return st, nil
}

func (r *Remote) PushMagnitude(ctx context.Context, m float64) error {
	return r.do(ctx, http.MethodPost, PathMagnitude, MagnitudeRequest{Magnitude: m}, nil)
}

func (r *Remote) PushDetections(ctx context.Context, ds []scene.Detection) error {
	return r.do(ctx, http.MethodPost, PathDetections, DetectionsRequest{Detections: scene.Clone(ds)}, nil)
}

func (r *Remote) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
