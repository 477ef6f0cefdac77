// Package queue persists the batch generation queue as a single JSON file.
// Every operation reads the whole file, mutates it in memory, and rewrites it
// atomically via a temp file and rename. That is safe for the single-caller
// process model this server runs under; concurrent writers are out of scope.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const fileVersion = 1

// Entry is one queued generation request plus its bookkeeping fields.
// Selection mode fields (Model, Provider, Quality, AutoMode, StyleHint) are
// kept verbatim; the executor resolves them at run time.
type Entry struct {
	Prompt          string    `json:"prompt"`
	Filename        string    `json:"filename"`
	AspectRatio     string    `json:"aspect_ratio"`
	ImageSize       string    `json:"image_size"`
	Quality         string    `json:"quality,omitempty"`
	Provider        string    `json:"provider,omitempty"`
	Model           string    `json:"model,omitempty"`
	AutoMode        string    `json:"auto_mode,omitempty"`
	StyleHint       string    `json:"style_hint,omitempty"`
	Description     string    `json:"description"`
	Title           string    `json:"title"`
	AlternativeText string    `json:"alternative_text"`
	Caption         string    `json:"caption"`
	ReferenceImages []string  `json:"reference_images,omitempty"`
	SearchGrounding bool      `json:"search_grounding,omitempty"`
	ThinkingLevel   string    `json:"thinking_level,omitempty"`
	MediaResolution string    `json:"media_resolution,omitempty"`
	AddedAt         time.Time `json:"added_at"`
}

type queueFile struct {
	Version int     `json:"version"`
	Prompts []Entry `json:"prompts"`
}

// EnqueueResult reports the outcome of an Enqueue. DuplicateFilename is a
// warning: the new entry was queued anyway and is distinguishable only by
// position.
type EnqueueResult struct {
	QueueSize         int
	Filename          string
	DuplicateFilename bool
}

// RemoveResult lists what an identifier matched. Zero removals is not an
// error; removing something that is not there is a no-op.
type RemoveResult struct {
	RemovedFiles []string
	QueueSize    int
}

// Store is a durable FIFO queue backed by one file on disk.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Enqueue appends an entry, filling the filename and metadata fields that
// were left empty. Returns the new queue size.
func (s *Store) Enqueue(e Entry) (EnqueueResult, error) {
	q, err := s.load()
	if err != nil {
		return EnqueueResult{}, err
	}

	if e.Filename == "" {
		e.Filename = fmt.Sprintf("batch_image_%s.png", time.Now().Format("20060102_150405"))
	}
	if e.Title == "" {
		e.Title = titleFromFilename(e.Filename)
	}
	if e.Description == "" {
		e.Description = truncate(e.Prompt, 200)
	}
	if e.AlternativeText == "" {
		e.AlternativeText = "AI-generated image: " + truncate(e.Prompt, 100)
	}
	if e.Caption == "" {
		e.Caption = e.Title
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}

	duplicate := false
	for _, existing := range q.Prompts {
		if stripExt(existing.Filename) == stripExt(e.Filename) {
			duplicate = true
			break
		}
	}

	q.Prompts = append(q.Prompts, e)
	if err := s.save(q); err != nil {
		return EnqueueResult{}, err
	}
	return EnqueueResult{QueueSize: len(q.Prompts), Filename: e.Filename, DuplicateFilename: duplicate}, nil
}

// Peek returns the queued entries in insertion order without mutating the store.
func (s *Store) Peek() ([]Entry, error) {
	q, err := s.load()
	if err != nil {
		return nil, err
	}
	return q.Prompts, nil
}

// DequeueAll returns an ordered snapshot of the queue and empties the store.
func (s *Store) DequeueAll() ([]Entry, error) {
	q, err := s.load()
	if err != nil {
		return nil, err
	}
	entries := q.Prompts
	if err := s.save(queueFile{Version: fileVersion, Prompts: []Entry{}}); err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove deletes entries by 0-based index or by filename (extension is
// ignored when matching; all matches are removed).
func (s *Store) Remove(identifier string) (RemoveResult, error) {
	q, err := s.load()
	if err != nil {
		return RemoveResult{}, err
	}

	var removed []string
	if index, convErr := strconv.Atoi(identifier); convErr == nil {
		if index >= 0 && index < len(q.Prompts) {
			removed = append(removed, q.Prompts[index].Filename)
			q.Prompts = append(q.Prompts[:index], q.Prompts[index+1:]...)
		}
	} else {
		want := stripExt(identifier)
		kept := q.Prompts[:0]
		for _, e := range q.Prompts {
			if stripExt(e.Filename) == want {
				removed = append(removed, e.Filename)
				continue
			}
			kept = append(kept, e)
		}
		q.Prompts = kept
	}

	if len(removed) > 0 {
		if err := s.save(q); err != nil {
			return RemoveResult{}, err
		}
	}
	return RemoveResult{RemovedFiles: removed, QueueSize: len(q.Prompts)}, nil
}

// Clear empties the queue.
func (s *Store) Clear() error {
	return s.save(queueFile{Version: fileVersion, Prompts: []Entry{}})
}

func (s *Store) load() (queueFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return queueFile{Version: fileVersion, Prompts: []Entry{}}, nil
		}
		return queueFile{}, fmt.Errorf("read queue %s: %w", s.path, err)
	}
	var q queueFile
	if err := json.Unmarshal(data, &q); err != nil {
		return queueFile{}, fmt.Errorf("parse queue %s: %w", s.path, err)
	}
	if q.Prompts == nil {
		q.Prompts = []Entry{}
	}
	return q, nil
}

// save rewrites the whole queue file atomically so a crash mid-write never
// leaves a truncated queue behind.
func (s *Store) save(q queueFile) error {
	q.Version = fileVersion
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".batch_queue-*.json")
	if err != nil {
		return fmt.Errorf("create temp queue file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close queue file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace queue %s: %w", s.path, err)
	}
	return nil
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func titleFromFilename(filename string) string {
	name := strings.ReplaceAll(stripExt(filename), "_", " ")
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
