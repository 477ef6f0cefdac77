package wordpress_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeeperFrog/peeperfrog-create/internal/wordpress"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wp/v2/media", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "editor", user)
		assert.Equal(t, "app-password", pass)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "sunset.webp", header.Filename)
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("webp bytes"), body)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":321,"source_url":"https://example.com/wp-content/uploads/sunset.webp","title":{"rendered":"sunset"}}`))
	}))
	defer srv.Close()

	client := wordpress.NewClient(srv.URL, "editor", "app-password", time.Second, discardLogger())
	media, err := client.UploadMedia(context.Background(), "sunset.webp", []byte("webp bytes"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, int64(321), media.ID)
	assert.Equal(t, "https://example.com/wp-content/uploads/sunset.webp", media.SourceURL)
	assert.Equal(t, "sunset", media.Title)
}

func TestUploadMedia_NonCreatedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	client := wordpress.NewClient(srv.URL, "editor", "wrong", time.Second, discardLogger())
	_, err := client.UploadMedia(context.Background(), "x.webp", []byte("data"), "image/webp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=403")
}

func TestUploadMedia_EmptyMediaID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := wordpress.NewClient(srv.URL, "editor", "pw", time.Second, discardLogger())
	_, err := client.UploadMedia(context.Background(), "x.webp", []byte("data"), "image/webp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty media id")
}
