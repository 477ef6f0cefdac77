// Package provider performs the actual generation calls against the Gemini,
// OpenAI and Together APIs. Each call returns raw image bytes or an
// ExternalCallError; the caller decides whether that aborts (single-image
// path) or is isolated (batch path).
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
	"github.com/PeeperFrog/peeperfrog-create/internal/pricing"
)

const (
	geminiEndpoint   = "https://generativelanguage.googleapis.com/v1beta/models"
	openAIEndpoint   = "https://api.openai.com/v1/images/generations"
	togetherEndpoint = "https://api.together.xyz/v1/images/generations"
)

// ExternalCallError wraps a failed provider call.
type ExternalCallError struct {
	Provider catalog.Provider
	Err      error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// Job is one resolved generation request ready to be sent.
type Job struct {
	Model           catalog.ModelDescriptor
	Prompt          string
	AspectRatio     string
	ImageSize       catalog.ImageSize
	ReferenceImages []string
	SearchGrounding bool
	ThinkingLevel   catalog.ThinkingLevel
	MediaResolution string
}

// Artifact is the result of a successful generation call.
type Artifact struct {
	Data       []byte
	ModelID    string
	Resolution string
}

// Keys holds provider API keys. Empty values mean the credential is absent.
type Keys struct {
	Gemini   string
	OpenAI   string
	Together string
}

// Client dispatches jobs to the provider named by the job's model.
type Client struct {
	keys       Keys
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(keys Keys, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		keys:       keys,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Generate runs the job against its provider.
func (c *Client) Generate(ctx context.Context, job Job) (Artifact, error) {
	var (
		artifact Artifact
		err      error
	)
	switch job.Model.Provider {
	case catalog.ProviderGemini:
		artifact, err = c.generateGemini(ctx, job)
	case catalog.ProviderOpenAI:
		artifact, err = c.generateOpenAI(ctx, job)
	case catalog.ProviderTogether:
		artifact, err = c.generateTogether(ctx, job)
	default:
		err = fmt.Errorf("unknown provider %q", job.Model.Provider)
	}
	if err != nil {
		return Artifact{}, &ExternalCallError{Provider: job.Model.Provider, Err: err}
	}
	return artifact, nil
}

func (c *Client) generateGemini(ctx context.Context, job Job) (Artifact, error) {
	if c.keys.Gemini == "" {
		return Artifact{}, fmt.Errorf("%s not set", job.Model.RequiresAPIKeyEnv)
	}

	parts, err := encodeReferenceImages(job.ReferenceImages)
	if err != nil {
		return Artifact{}, err
	}
	parts = append(parts, map[string]any{"text": job.Prompt})

	sizeLabel := pricing.GeminiSizeLabel(job.ImageSize, job.Model.Quality)
	imageConfig := map[string]any{"aspectRatio": job.AspectRatio}
	if job.Model.Quality == catalog.QualityPro {
		imageConfig["imageSize"] = sizeLabel
	}

	generationConfig := map[string]any{
		"responseModalities": []string{"TEXT", "IMAGE"},
		"imageConfig":        imageConfig,
	}
	if job.MediaResolution != "" {
		generationConfig["mediaResolution"] = "MEDIA_RESOLUTION_" + strings.ToUpper(job.MediaResolution)
	}
	if job.ThinkingLevel != "" && job.Model.Quality == catalog.QualityPro {
		generationConfig["thinkingConfig"] = map[string]any{"thinkingLevel": strings.ToLower(string(job.ThinkingLevel))}
	}

	payload := map[string]any{
		"contents":         []map[string]any{{"parts": parts}},
		"generationConfig": generationConfig,
	}
	if job.SearchGrounding {
		payload["tools"] = []map[string]any{{"google_search": map[string]any{}}}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiEndpoint, job.Model.ModelID, c.keys.Gemini)
	body, err := c.postJSON(ctx, url, "", payload)
	if err != nil {
		return Artifact{}, err
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					InlineData *struct {
						Data string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Artifact{}, fmt.Errorf("decode gemini response: %w (body=%s)", err, truncateBody(body))
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return Artifact{}, fmt.Errorf("decode gemini image data: %w", err)
				}
				return Artifact{Data: data, ModelID: job.Model.ModelID, Resolution: sizeLabel}, nil
			}
		}
	}
	return Artifact{}, fmt.Errorf("no image data in gemini response")
}

func (c *Client) generateOpenAI(ctx context.Context, job Job) (Artifact, error) {
	if c.keys.OpenAI == "" {
		return Artifact{}, fmt.Errorf("%s not set", job.Model.RequiresAPIKeyEnv)
	}

	size := pricing.ClosestOpenAISize(job.AspectRatio)
	quality := "low"
	if job.Model.Quality == catalog.QualityPro {
		quality = "high"
	}

	payload := map[string]any{
		"model":   job.Model.ModelID,
		"prompt":  job.Prompt,
		"size":    size,
		"quality": quality,
		"n":       1,
	}

	body, err := c.postJSON(ctx, openAIEndpoint, c.keys.OpenAI, payload)
	if err != nil {
		return Artifact{}, err
	}
	data, err := decodeB64ImageResponse(body)
	if err != nil {
		return Artifact{}, fmt.Errorf("openai response: %w", err)
	}
	return Artifact{Data: data, ModelID: job.Model.ModelID, Resolution: size}, nil
}

func (c *Client) generateTogether(ctx context.Context, job Job) (Artifact, error) {
	if c.keys.Together == "" {
		return Artifact{}, fmt.Errorf("%s not set", job.Model.RequiresAPIKeyEnv)
	}

	// The Imagen 4 family only renders a fixed resolution set; everything
	// else takes arbitrary multiple-of-8 dimensions.
	var width, height int
	if strings.HasPrefix(job.Model.Key, "imagen4") {
		width, height = pricing.Imagen4Resolution(job.AspectRatio, job.ImageSize)
	} else {
		width, height = pricing.Dimensions(job.AspectRatio, job.ImageSize)
	}

	payload := map[string]any{
		"model":           job.Model.ModelID,
		"prompt":          job.Prompt,
		"width":           width,
		"height":          height,
		"n":               1,
		"response_format": "b64_json",
	}
	if job.Model.Steps > 0 {
		payload["steps"] = job.Model.Steps
	}

	body, err := c.postJSON(ctx, togetherEndpoint, c.keys.Together, payload)
	if err != nil {
		return Artifact{}, err
	}
	data, err := decodeB64ImageResponse(body)
	if err != nil {
		return Artifact{}, fmt.Errorf("together response: %w", err)
	}
	return Artifact{Data: data, ModelID: job.Model.ModelID, Resolution: fmt.Sprintf("%dx%d", width, height)}, nil
}

// postJSON sends a JSON payload and returns the response body, treating any
// non-2xx status as an error carrying the truncated body.
func (c *Client) postJSON(ctx context.Context, url, bearer string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("generation call failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}
	return rawBody, nil
}

// decodeB64ImageResponse handles the shared {"data":[{"b64_json":...}]}
// shape of the OpenAI and Together image endpoints.
func decodeB64ImageResponse(body []byte) ([]byte, error) {
	var resp struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode: %w (body=%s)", err, truncateBody(body))
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data (body=%s)", truncateBody(body))
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	return data, nil
}

func encodeReferenceImages(paths []string) ([]map[string]any, error) {
	parts := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read reference image %s: %w", p, err)
		}
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{
				"mimeType": mimeType(p),
				"data":     base64.StdEncoding.EncodeToString(data),
			},
		})
	}
	return parts, nil
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
