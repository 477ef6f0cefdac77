// Package batch drains the queue store and executes every entry strictly
// one at a time. Sequential execution with an inter-item pause is deliberate:
// it respects unpublished provider rate limits and keeps per-item cost and
// failure attribution unambiguous. One failing entry never aborts the rest.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
	"github.com/PeeperFrog/peeperfrog-create/internal/metadata"
	"github.com/PeeperFrog/peeperfrog-create/internal/pricing"
	"github.com/PeeperFrog/peeperfrog-create/internal/provider"
	"github.com/PeeperFrog/peeperfrog-create/internal/queue"
	"github.com/PeeperFrog/peeperfrog-create/internal/selector"
)

// Generator is the external generation call. Implemented by the provider
// client in production and by fakes in tests.
type Generator interface {
	Generate(ctx context.Context, job provider.Job) (provider.Artifact, error)
}

// Converter turns image bytes into WebP at a given quality.
type Converter func(data []byte, quality int) ([]byte, error)

// Uploader pushes a finished artifact to a remote media library.
type Uploader interface {
	UploadMedia(ctx context.Context, filename string, data []byte, contentType string) (MediaRef, error)
}

// MediaRef identifies a remotely uploaded artifact.
type MediaRef struct {
	ID  int64
	URL string
}

// Archiver copies artifact bytes to long-term storage.
type Archiver interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// ItemResult describes the outcome for one queue entry.
type ItemResult struct {
	Filename    string  `json:"filename"`
	Status      string  `json:"status"`
	Path        string  `json:"path,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Resolution  string  `json:"resolution,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
	CostUSD     float64 `json:"estimated_cost_usd,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Result aggregates a whole batch run.
type Result struct {
	Succeeded      []ItemResult `json:"succeeded"`
	Failed         []ItemResult `json:"failed"`
	TotalSizeBytes int64        `json:"total_size_bytes"`
	Count          int          `json:"count"`
	TotalCostUSD   float64      `json:"total_cost_usd"`
}

// Options tune one batch run.
type Options struct {
	ConvertToWebP bool
	WebPQuality   int
	Upload        bool
}

// Executor wires the queue to the generation pipeline.
type Executor struct {
	queue     *queue.Store
	sel       *selector.Selector
	estimator *pricing.Estimator
	genLog    *genlog.Log
	meta      *metadata.Writer
	generator Generator
	converter Converter
	uploader  Uploader
	archiver  Archiver
	outputDir string
	delay     time.Duration
	log       *slog.Logger
}

type Config struct {
	Queue     *queue.Store
	Selector  *selector.Selector
	Estimator *pricing.Estimator
	GenLog    *genlog.Log
	Metadata  *metadata.Writer
	Generator Generator
	Converter Converter
	Uploader  Uploader
	Archiver  Archiver
	OutputDir string
	Delay     time.Duration
	Logger    *slog.Logger
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		queue:     cfg.Queue,
		sel:       cfg.Selector,
		estimator: cfg.Estimator,
		genLog:    cfg.GenLog,
		meta:      cfg.Metadata,
		generator: cfg.Generator,
		converter: cfg.Converter,
		uploader:  cfg.Uploader,
		archiver:  cfg.Archiver,
		outputDir: cfg.OutputDir,
		delay:     cfg.Delay,
		log:       cfg.Logger,
	}
}

// Run drains the queue and processes the snapshot in FIFO order. The queue
// is empty afterwards regardless of outcome; failed entries are reported,
// not re-enqueued.
func (e *Executor) Run(ctx context.Context, opts Options) (Result, error) {
	entries, err := e.queue.DequeueAll()
	if err != nil {
		return Result{}, fmt.Errorf("drain queue: %w", err)
	}

	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir %s: %w", e.outputDir, err)
	}

	result := Result{Count: len(entries)}
	for i, entry := range entries {
		item := e.processEntry(ctx, entry, opts)
		if item.Error != "" {
			result.Failed = append(result.Failed, item)
		} else {
			result.Succeeded = append(result.Succeeded, item)
			result.TotalCostUSD += item.CostUSD
			if info, err := os.Stat(item.Path); err == nil {
				result.TotalSizeBytes += info.Size()
			}
		}

		if i < len(entries)-1 && e.delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(e.delay):
			}
		}
	}

	e.writeResultsFile(result)
	return result, nil
}

// processEntry runs one queue entry end to end. Any error is captured in the
// item result and logged with zero cost; it never propagates.
func (e *Executor) processEntry(ctx context.Context, entry queue.Entry, opts Options) ItemResult {
	filename := entry.Filename
	if !strings.HasSuffix(filename, ".png") {
		filename += ".png"
	}
	item := ItemResult{Filename: filename, AspectRatio: entry.AspectRatio}

	fail := func(err error) ItemResult {
		item.Status = "error"
		item.Error = err.Error()
		e.log.Error("batch item failed", "filename", filename, "err", err)
		e.appendLog(genlog.Record{
			Filename:    filename,
			Status:      "error: " + truncate(err.Error(), 50),
			CostUSD:     0,
			Provider:    item.Provider,
			Quality:     item.Model,
			AspectRatio: entry.AspectRatio,
		})
		return item
	}

	mode := selector.ModeFrom(entry.Model, entry.Provider, entry.Quality, entry.AutoMode, entry.StyleHint)
	constraints := selector.Constraints{
		ImageSize:       catalog.ImageSize(entry.ImageSize),
		ReferenceImages: len(entry.ReferenceImages),
		SearchGrounding: entry.SearchGrounding,
	}
	model, err := e.sel.Resolve(mode, constraints)
	if err != nil {
		return fail(err)
	}
	item.Provider = string(model.Provider)
	item.Model = model.Key

	estimate, err := e.estimator.Estimate(model, pricing.Request{
		ImageSize:       catalog.ImageSize(entry.ImageSize),
		AspectRatio:     entry.AspectRatio,
		ReferenceImages: len(entry.ReferenceImages),
		SearchGrounding: entry.SearchGrounding,
		ThinkingLevel:   catalog.ThinkingLevel(entry.ThinkingLevel),
	})
	if err != nil {
		return fail(err)
	}

	e.log.Info("generating batch item", "filename", filename, "provider", model.Provider, "model", model.Key)
	artifact, err := e.generator.Generate(ctx, provider.Job{
		Model:           model,
		Prompt:          entry.Prompt,
		AspectRatio:     entry.AspectRatio,
		ImageSize:       catalog.ImageSize(entry.ImageSize),
		ReferenceImages: entry.ReferenceImages,
		SearchGrounding: entry.SearchGrounding,
		ThinkingLevel:   catalog.ThinkingLevel(entry.ThinkingLevel),
		MediaResolution: entry.MediaResolution,
	})
	if err != nil {
		return fail(err)
	}

	outputPath := filepath.Join(e.outputDir, filename)
	if err := os.WriteFile(outputPath, artifact.Data, 0o644); err != nil {
		return fail(fmt.Errorf("save image %s: %w", outputPath, err))
	}

	item.Status = "success"
	item.Path = outputPath
	item.Resolution = artifact.Resolution
	item.CostUSD = estimate.PerImageUSD

	if _, err := e.meta.Write(filename, metadata.Record{
		Prompt:          entry.Prompt,
		Title:           entry.Title,
		Description:     entry.Description,
		AlternativeText: entry.AlternativeText,
		Caption:         entry.Caption,
		Provider:        string(model.Provider),
		Model:           artifact.ModelID,
		AspectRatio:     entry.AspectRatio,
		ImageSize:       entry.ImageSize,
		Quality:         100,
		CostUSD:         estimate.PerImageUSD,
	}); err != nil {
		e.log.Error("write metadata sidecar", "filename", filename, "err", err)
	}

	e.appendLog(genlog.Record{
		Filename:    filename,
		Status:      genlog.StatusSuccess,
		CostUSD:     estimate.PerImageUSD,
		Provider:    string(model.Provider),
		Quality:     model.Key,
		AspectRatio: entry.AspectRatio,
	})

	if opts.ConvertToWebP && e.converter != nil {
		e.deriveWebP(ctx, filename, artifact.Data, opts)
	}

	if e.archiver != nil {
		if url, err := e.archiver.Upload(ctx, artifact.Data, "image/png"); err != nil {
			e.log.Error("archive artifact", "filename", filename, "err", err)
		} else {
			e.log.Info("artifact archived", "filename", filename, "url", url)
		}
	}

	return item
}

// deriveWebP converts the PNG, writes the derivative next to it, and carries
// the sidecar over with only quality and creation time replaced. Conversion
// problems downgrade to log entries; the PNG generation already succeeded.
func (e *Executor) deriveWebP(ctx context.Context, filename string, data []byte, opts Options) {
	webpData, err := e.converter(data, opts.WebPQuality)
	if err != nil {
		e.log.Error("webp conversion failed", "filename", filename, "err", err)
		return
	}

	webpName := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".webp"
	webpPath := filepath.Join(e.outputDir, webpName)
	if err := os.WriteFile(webpPath, webpData, 0o644); err != nil {
		e.log.Error("save webp", "path", webpPath, "err", err)
		return
	}

	now := time.Now()
	if _, err := e.meta.Derive(filename, webpName, metadata.Overrides{
		CreatedAt: &now,
		Quality:   &opts.WebPQuality,
	}); err != nil {
		e.log.Error("derive webp sidecar", "filename", webpName, "err", err)
	}

	if opts.Upload && e.uploader != nil {
		media, err := e.uploader.UploadMedia(ctx, webpName, webpData, "image/webp")
		if err != nil {
			e.log.Error("upload webp", "filename", webpName, "err", err)
			return
		}
		uploadedAt := time.Now()
		if _, err := e.meta.Derive(webpName, webpName, metadata.Overrides{
			MediaID:    &media.ID,
			MediaURL:   &media.URL,
			UploadedAt: &uploadedAt,
		}); err != nil {
			e.log.Error("record upload in sidecar", "filename", webpName, "err", err)
		}
	}
}

func (e *Executor) appendLog(r genlog.Record) {
	if err := e.genLog.Append(r); err != nil {
		e.log.Error("append generation log", "filename", r.Filename, "err", err)
	}
}

// writeResultsFile drops a summary JSON next to the generated images.
func (e *Executor) writeResultsFile(result Result) {
	path := filepath.Join(e.outputDir, "batch_results.json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		e.log.Error("encode batch results", "err", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		e.log.Error("write batch results", "path", path, "err", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
