// Package camera supplies still frames for the detection loop.
package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/san-kum/quakesim/internal/httpc"
)

// maxFrameBytes bounds a single snapshot download.
const maxFrameBytes = 16 << 20

var ErrEmptyFrame = errors.New("camera: empty frame")

// Frame is one captured image.
type Frame struct {
	Data []byte
	MIME string
	At   time.Time
}

// DataURL encodes the frame as a data: URL.
func (f Frame) DataURL() string {
	return "data:" + f.MIME + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// Base64 returns the raw base64 payload without the data: prefix.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

type Source interface {
	Capture(ctx context.Context) (Frame, error)
}

// File re-reads a still image on every capture, so replacing the file on
// disk changes what the loop sees.
type File struct {
	Path string
}

func (f File) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return newFrame(data, "")
}

// HTTP fetches a JPEG snapshot URL such as a phone IP-camera's /shot.jpg.
type HTTP struct {
	URL    string
	Client *http.Client
}

func (h HTTP) Capture(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := httpc.Or(h.Client).Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("fetch snapshot: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("read snapshot: %w", err)
	}
	return newFrame(data, resp.Header.Get("Content-Type"))
}

// Static returns the same frame every time.
type Static struct {
	Frame Frame
}

func (s Static) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	f := s.Frame
	f.At = time.Now()
	return f, nil
}

func newFrame(data []byte, mime string) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return Frame{Data: data, MIME: mime, At: time.Now()}, nil
}
