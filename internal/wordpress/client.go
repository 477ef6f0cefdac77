// Package wordpress uploads artifacts to a WordPress media library through
// the REST API, using application-password basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Media is the subset of the created media object the pipeline needs.
type Media struct {
	ID        int64
	SourceURL string
	Title     string
}

// Client talks to a single WordPress site.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(siteURL, username, password string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(siteURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// UploadMedia posts one file to wp-json/wp/v2/media and returns the created
// media's id and public URL.
func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte, contentType string) (Media, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Media{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Media{}, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Media{}, fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.baseURL + "/wp-json/wp/v2/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Media{}, fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Media{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		if c.log != nil {
			c.log.Error("wordpress upload failed", "status", resp.StatusCode, "filename", filename)
		}
		return Media{}, fmt.Errorf("wordpress error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var created struct {
		ID        int64  `json:"id"`
		SourceURL string `json:"source_url"`
		Title     struct {
			Rendered string `json:"rendered"`
		} `json:"title"`
	}
	if err := json.Unmarshal(rawBody, &created); err != nil {
		return Media{}, fmt.Errorf("decode media response: %w", err)
	}
	if created.ID == 0 {
		return Media{}, fmt.Errorf("empty media id in response")
	}

	return Media{ID: created.ID, SourceURL: created.SourceURL, Title: created.Title.Rendered}, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
