// Package metadata manages JSON sidecar records for generated artifacts.
// A sidecar describes the artifact (title, alt text, provenance, cost)
// without touching the artifact's bytes; derivatives such as WebP
// conversions inherit the descriptive fields of their source verbatim.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const recordVersion = 1

// ErrNotFound is returned when no sidecar exists for an artifact.
var ErrNotFound = errors.New("metadata sidecar not found")

// Record is the sidecar content for one artifact.
type Record struct {
	Version         int     `json:"version"`
	CreatedAt       string  `json:"date_time_created"`
	Prompt          string  `json:"prompt"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	AlternativeText string  `json:"alternative_text"`
	Caption         string  `json:"caption"`
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	AspectRatio     string  `json:"aspect_ratio"`
	ImageSize       string  `json:"image_size"`
	Quality         int     `json:"quality"`
	CostUSD         float64 `json:"cost"`

	WordPressMediaID    int64  `json:"wordpress_media_id,omitempty"`
	WordPressURL        string `json:"wordpress_url,omitempty"`
	WordPressUploadedAt string `json:"wordpress_uploaded_at,omitempty"`
}

// Overrides selects the fields Derive replaces. Nil pointers leave the
// source value untouched.
type Overrides struct {
	CreatedAt  *time.Time
	Quality    *int
	MediaID    *int64
	MediaURL   *string
	UploadedAt *time.Time
}

// Writer stores sidecars under <baseDir>/metadata/json, keyed by artifact
// filename.
type Writer struct {
	baseDir string
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Write stores the sidecar for an artifact and returns the sidecar path.
func (w *Writer) Write(artifact string, rec Record) (string, error) {
	rec.Version = recordVersion
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().Format(time.RFC3339)
	}

	dir := w.sidecarDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create metadata dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metadata for %s: %w", artifact, err)
	}

	path := w.sidecarPath(artifact)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write metadata %s: %w", path, err)
	}
	return path, nil
}

// Read loads the sidecar for an artifact.
func (w *Writer) Read(artifact string) (Record, error) {
	data, err := os.ReadFile(w.sidecarPath(artifact))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("read metadata for %s: %w", artifact, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse metadata for %s: %w", artifact, err)
	}
	return rec, nil
}

// Derive copies the source artifact's sidecar to a new artifact, applying
// only the given overrides. It covers both derivative artifacts (a WebP made
// from a PNG) and post-hoc updates such as recording a remote upload, where
// source and target are the same artifact.
func (w *Writer) Derive(original, derived string, ov Overrides) (string, error) {
	rec, err := w.Read(original)
	if err != nil {
		return "", err
	}

	if ov.CreatedAt != nil {
		rec.CreatedAt = ov.CreatedAt.Format(time.RFC3339)
	}
	if ov.Quality != nil {
		rec.Quality = *ov.Quality
	}
	if ov.MediaID != nil {
		rec.WordPressMediaID = *ov.MediaID
	}
	if ov.MediaURL != nil {
		rec.WordPressURL = *ov.MediaURL
	}
	if ov.UploadedAt != nil {
		rec.WordPressUploadedAt = ov.UploadedAt.Format(time.RFC3339)
	}

	return w.Write(derived, rec)
}

func (w *Writer) sidecarDir() string {
	return filepath.Join(w.baseDir, "metadata", "json")
}

func (w *Writer) sidecarPath(artifact string) string {
	return filepath.Join(w.sidecarDir(), filepath.Base(artifact)+".json")
}
