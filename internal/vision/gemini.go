package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/san-kum/quakesim/internal/camera"
	"github.com/san-kum/quakesim/internal/furniture"
	"github.com/san-kum/quakesim/internal/httpc"
	"github.com/san-kum/quakesim/internal/scene"
)

const (
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
)

// Prompt builds the room-scan instruction for the listed categories.
func Prompt(categories []string) string {
	return "Act as a seismic safety expert. Scan this room photo. " +
		"Identify these specific objects: " + strings.Join(categories, ", ") + ". " +
		`Return a valid JSON array only: [{"type": "object_name", "x": number, "z": number}]. ` +
		"Coordinates: x (-10 to 10), z (-10 to 0). No markdown, just raw JSON."
}

// Gemini calls the generateContent REST API with the frame inlined.
type Gemini struct {
	APIKey   string
	Model    string
	Endpoint string
	Client   *http.Client
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{
		APIKey:   apiKey,
		Model:    DefaultGeminiModel,
		Endpoint: DefaultGeminiEndpoint,
	}
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Analyze ignores magnitude; the model only locates objects.
func (g *Gemini) Analyze(ctx context.Context, frame camera.Frame, _ float64) ([]scene.Detection, error) {
	if g.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: Prompt(furniture.Categories())},
				{InlineData: &inlineData{MimeType: frame.MIME, Data: frame.Base64()}},
			},
		}},
		GenerationConfig: generationConfig{Temperature: 0.2, MaxOutputTokens: 1000},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	// transport errors quote the URL, keep the key out of it
	url := fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(g.Endpoint, "/"), g.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	resp, err := httpc.Or(g.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var result geminiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		// an unreadable envelope is a malformed answer, not a transport error
		return []scene.Detection{}, nil
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("gemini error: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return []scene.Detection{}, nil
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return scene.ParseDetections(text.String()), nil
}
