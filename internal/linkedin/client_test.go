package linkedin_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeeperFrog/peeperfrog-create/internal/linkedin"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *linkedin.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := linkedin.NewClient("test-token", "urn:li:person:abc123", time.Second, discardLogger())
	client.SetBaseURL(srv.URL)
	return client
}

func TestCreatePost_Text(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/posts", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		assert.Equal(t, "202601", r.Header.Get("LinkedIn-Version"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("x-restli-id", "urn:li:share:7890")
		w.WriteHeader(http.StatusCreated)
	})

	postID, err := client.CreatePost(context.Background(), linkedin.PostInput{
		Commentary: "Hello from the pipeline",
	})
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:7890", postID)

	assert.Equal(t, "urn:li:person:abc123", payload["author"])
	assert.Equal(t, "Hello from the pipeline", payload["commentary"])
	assert.Equal(t, "PUBLIC", payload["visibility"])
	assert.Equal(t, "PUBLISHED", payload["lifecycleState"])
	assert.Equal(t, false, payload["isReshareDisabledByAuthor"])
	dist := payload["distribution"].(map[string]any)
	assert.Equal(t, "MAIN_FEED", dist["feedDistribution"])
	assert.Empty(t, dist["targetEntities"])
	assert.NotContains(t, payload, "content")
}

func TestCreatePost_LinkAndDraft(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("x-restli-id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.CreatePost(context.Background(), linkedin.PostInput{
		Commentary: "New article is up",
		LinkURL:    "https://example.com/post",
		Visibility: "CONNECTIONS",
		Draft:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "CONNECTIONS", payload["visibility"])
	assert.Equal(t, "DRAFT", payload["lifecycleState"])
	article := payload["content"].(map[string]any)["article"].(map[string]any)
	assert.Equal(t, "https://example.com/post", article["source"])
	// Title and description stay empty so the page's own tags fill them.
	assert.Equal(t, "", article["title"])
	assert.Equal(t, "", article["description"])
}

func TestCreatePost_EmptyCommentary(t *testing.T) {
	client := linkedin.NewClient("tok", "urn:li:person:x", time.Second, discardLogger())
	_, err := client.CreatePost(context.Background(), linkedin.PostInput{Commentary: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commentary is required")
}

func TestCreatePost_NonCreatedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"token expired"}`, http.StatusUnauthorized)
	})

	_, err := client.CreatePost(context.Background(), linkedin.PostInput{Commentary: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
	assert.Contains(t, err.Error(), "token expired")
}

func TestCreateComment_EscapesURN(t *testing.T) {
	var payload map[string]any
	var rawPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("x-restli-id", "urn:li:comment:(urn:li:share:7890,111)")
		w.WriteHeader(http.StatusCreated)
	})

	commentID, err := client.CreateComment(context.Background(), "urn:li:share:7890", "Great shot")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:comment:(urn:li:share:7890,111)", commentID)

	assert.Equal(t, "/rest/socialActions/urn%3Ali%3Ashare%3A7890/comments", rawPath)
	assert.Equal(t, "urn:li:person:abc123", payload["actor"])
	message := payload["message"].(map[string]any)
	assert.Equal(t, "Great shot", message["text"])
}

func TestCreateComment_BareIDGetsSharePrefix(t *testing.T) {
	var rawPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.Header().Set("x-restli-id", "urn:li:comment:x")
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.CreateComment(context.Background(), "7890", "nice")
	require.NoError(t, err)
	assert.Equal(t, "/rest/socialActions/urn%3Ali%3Ashare%3A7890/comments", rawPath)
}

func TestCreateComment_EmptyMessage(t *testing.T) {
	client := linkedin.NewClient("tok", "urn:li:person:x", time.Second, discardLogger())
	_, err := client.CreateComment(context.Background(), "urn:li:share:1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message is required")
}

func TestCreatePost_MissingEntityID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.CreatePost(context.Background(), linkedin.PostInput{Commentary: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entity id")
}
