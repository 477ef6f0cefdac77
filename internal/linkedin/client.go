// Package linkedin publishes posts and comments through the LinkedIn REST
// API using a caller-provided OAuth access token. Token acquisition and
// refresh happen outside this process.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const apiVersion = "202601"

// PostInput describes one post to publish.
type PostInput struct {
	Commentary string
	LinkURL    string
	Visibility string
	Draft      bool
}

// Client talks to the LinkedIn REST API on behalf of a single author.
type Client struct {
	baseURL     string
	accessToken string
	authorURN   string
	httpClient  *http.Client
	log         *slog.Logger
}

func NewClient(accessToken, authorURN string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL:     "https://api.linkedin.com",
		accessToken: accessToken,
		authorURN:   authorURN,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// CreatePost publishes a text post, or a link post when LinkURL is set.
// Link posts carry an empty title and description so LinkedIn fills both
// from the target page's Open Graph tags. Returns the created post's URN.
func (c *Client) CreatePost(ctx context.Context, input PostInput) (string, error) {
	if strings.TrimSpace(input.Commentary) == "" {
		return "", fmt.Errorf("commentary is required")
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = "PUBLIC"
	}
	lifecycle := "PUBLISHED"
	if input.Draft {
		lifecycle = "DRAFT"
	}

	payload := map[string]any{
		"author":     c.authorURN,
		"commentary": input.Commentary,
		"visibility": visibility,
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []any{},
			"thirdPartyDistributionChannels": []any{},
		},
		"lifecycleState":            lifecycle,
		"isReshareDisabledByAuthor": false,
	}
	if input.LinkURL != "" {
		payload["content"] = map[string]any{
			"article": map[string]any{
				"source":      input.LinkURL,
				"title":       "",
				"description": "",
			},
		}
	}

	return c.post(ctx, c.baseURL+"/rest/posts", payload)
}

// CreateComment adds a comment under an existing post. postID may be a full
// share or activity URN, or a bare numeric id. Returns the comment's URN.
func (c *Client) CreateComment(ctx context.Context, postID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required")
	}

	urn := normalizePostURN(postID)
	endpoint := c.baseURL + "/rest/socialActions/" + escapeURN(urn) + "/comments"
	payload := map[string]any{
		"actor": c.authorURN,
		"message": map[string]any{
			"text": message,
		},
	}
	return c.post(ctx, endpoint, payload)
}

// post sends a JSON payload and returns the created entity's URN from the
// x-restli-id response header.
func (c *Client) post(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("LinkedIn-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		if c.log != nil {
			c.log.Error("linkedin request failed", "status", resp.StatusCode, "url", url)
		}
		return "", fmt.Errorf("linkedin error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	id := resp.Header.Get("x-restli-id")
	if id == "" {
		return "", fmt.Errorf("no entity id in response")
	}
	return id, nil
}

// normalizePostURN accepts either a full URN or a bare numeric id.
func normalizePostURN(postID string) string {
	if strings.HasPrefix(postID, "urn:li:") {
		return postID
	}
	return "urn:li:share:" + postID
}

// escapeURN percent-encodes the colons so the URN survives as a single path
// segment, per the Rest.li protocol.
func escapeURN(urn string) string {
	return strings.ReplaceAll(urn, ":", "%3A")
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
