// Package service is the orchestration layer behind the tool surface. It
// owns the single-image pipeline and fronts the queue, log, conversion and
// upload operations so transports (stdio tools, admin HTTP) stay thin.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PeeperFrog/peeperfrog-create/internal/batch"
	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
	"github.com/PeeperFrog/peeperfrog-create/internal/linkedin"
	"github.com/PeeperFrog/peeperfrog-create/internal/metadata"
	"github.com/PeeperFrog/peeperfrog-create/internal/pricing"
	"github.com/PeeperFrog/peeperfrog-create/internal/provider"
	"github.com/PeeperFrog/peeperfrog-create/internal/queue"
	"github.com/PeeperFrog/peeperfrog-create/internal/selector"
)

// GenerateRequest carries everything a caller can specify for one image.
// Selection fields follow the fixed precedence: Model beats Provider/Quality,
// which beat AutoMode.
type GenerateRequest struct {
	Prompt          string
	Filename        string
	AspectRatio     string
	ImageSize       string
	Model           string
	Provider        string
	Quality         string
	AutoMode        string
	StyleHint       string
	Title           string
	Description     string
	AlternativeText string
	Caption         string
	ReferenceImages []string
	SearchGrounding bool
	ThinkingLevel   string
	MediaResolution string
}

// GenerateResult reports a saved artifact.
type GenerateResult struct {
	Path        string  `json:"path"`
	Filename    string  `json:"filename"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Resolution  string  `json:"resolution"`
	AspectRatio string  `json:"aspect_ratio"`
	CostUSD     float64 `json:"estimated_cost_usd"`
	SizeBytes   int     `json:"size_bytes"`
}

// CostEstimate reports a pre-flight price for a request.
type CostEstimate struct {
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	PerImageUSD float64 `json:"per_image_usd"`
	TotalUSD    float64 `json:"total_usd"`
	Count       int     `json:"count"`
}

// AddToBatchResult reports a queued entry with its projected cost.
type AddToBatchResult struct {
	Filename          string  `json:"filename"`
	QueueSize         int     `json:"queue_size"`
	DuplicateFilename bool    `json:"duplicate_filename,omitempty"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	Model             string  `json:"model"`
}

// ConvertedImage is one WebP produced by a conversion sweep.
type ConvertedImage struct {
	Source    string `json:"source"`
	Path      string `json:"path"`
	SizeBytes int    `json:"size_bytes"`
}

// UploadedImage is one artifact pushed to the media library.
type UploadedImage struct {
	Filename string `json:"filename"`
	MediaID  int64  `json:"media_id"`
	URL      string `json:"url"`
}

// SocialPoster publishes posts and comments to a social feed.
type SocialPoster interface {
	CreatePost(ctx context.Context, input linkedin.PostInput) (string, error)
	CreateComment(ctx context.Context, postID, message string) (string, error)
}

// ImageService wires the selection, pricing, generation and persistence
// pieces together.
type ImageService struct {
	cat       *catalog.Catalog
	sel       *selector.Selector
	estimator *pricing.Estimator
	generator batch.Generator
	queue     *queue.Store
	genLog    *genlog.Log
	meta      *metadata.Writer
	executor  *batch.Executor
	converter batch.Converter
	wordpress batch.Uploader
	linkedin  SocialPoster
	imagesDir string
	maxRefs   int
	log       *slog.Logger
}

type Deps struct {
	Catalog            *catalog.Catalog
	Selector           *selector.Selector
	Estimator          *pricing.Estimator
	Generator          batch.Generator
	Queue              *queue.Store
	GenLog             *genlog.Log
	Metadata           *metadata.Writer
	Executor           *batch.Executor
	Converter          batch.Converter
	WordPress          batch.Uploader
	LinkedIn           SocialPoster
	ImagesDir          string
	MaxReferenceImages int
	Logger             *slog.Logger
}

func NewImageService(d Deps) *ImageService {
	maxRefs := d.MaxReferenceImages
	if maxRefs <= 0 {
		maxRefs = 14
	}
	return &ImageService{
		cat:       d.Catalog,
		sel:       d.Selector,
		estimator: d.Estimator,
		generator: d.Generator,
		queue:     d.Queue,
		genLog:    d.GenLog,
		meta:      d.Metadata,
		executor:  d.Executor,
		converter: d.Converter,
		wordpress: d.WordPress,
		linkedin:  d.LinkedIn,
		imagesDir: d.ImagesDir,
		maxRefs:   maxRefs,
		log:       d.Logger,
	}
}

// GenerateImage runs the full single-image pipeline: resolve the model,
// price the request, call the provider, save the PNG, write the sidecar and
// append to the generation log. Unlike the batch path, failures here surface
// directly to the caller.
func (s *ImageService) GenerateImage(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return GenerateResult{}, &catalog.ConfigurationError{Reason: "prompt is required"}
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}

	model, estimate, err := s.resolve(req)
	if err != nil {
		return GenerateResult{}, err
	}

	s.log.Info("generating image", "provider", model.Provider, "model", model.Key, "aspect_ratio", req.AspectRatio)
	artifact, err := s.generator.Generate(ctx, provider.Job{
		Model:           model,
		Prompt:          req.Prompt,
		AspectRatio:     req.AspectRatio,
		ImageSize:       catalog.ImageSize(req.ImageSize),
		ReferenceImages: req.ReferenceImages,
		SearchGrounding: req.SearchGrounding,
		ThinkingLevel:   catalog.ThinkingLevel(req.ThinkingLevel),
		MediaResolution: req.MediaResolution,
	})
	if err != nil {
		s.appendLog(genlog.Record{
			Filename:    req.Filename,
			Status:      "error: " + truncate(err.Error(), 50),
			Provider:    string(model.Provider),
			Quality:     model.Key,
			AspectRatio: req.AspectRatio,
		})
		return GenerateResult{}, err
	}

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("generated_image_%s.png", time.Now().Format("20060102_150405"))
	}
	if !strings.HasSuffix(filename, ".png") {
		filename += ".png"
	}

	if err := os.MkdirAll(s.imagesDir, 0o755); err != nil {
		return GenerateResult{}, fmt.Errorf("create images dir %s: %w", s.imagesDir, err)
	}
	outputPath := filepath.Join(s.imagesDir, filename)
	if err := os.WriteFile(outputPath, artifact.Data, 0o644); err != nil {
		return GenerateResult{}, fmt.Errorf("save image %s: %w", outputPath, err)
	}

	title := req.Title
	if title == "" {
		title = titleFromFilename(filename)
	}
	if _, err := s.meta.Write(filename, metadata.Record{
		Prompt:          req.Prompt,
		Title:           title,
		Description:     defaultString(req.Description, truncate(req.Prompt, 200)),
		AlternativeText: defaultString(req.AlternativeText, "AI-generated image: "+truncate(req.Prompt, 100)),
		Caption:         defaultString(req.Caption, title),
		Provider:        string(model.Provider),
		Model:           artifact.ModelID,
		AspectRatio:     req.AspectRatio,
		ImageSize:       req.ImageSize,
		Quality:         100,
		CostUSD:         estimate.PerImageUSD,
	}); err != nil {
		s.log.Error("write metadata sidecar", "filename", filename, "err", err)
	}

	s.appendLog(genlog.Record{
		Filename:    filename,
		Status:      genlog.StatusSuccess,
		CostUSD:     estimate.PerImageUSD,
		Provider:    string(model.Provider),
		Quality:     model.Key,
		AspectRatio: req.AspectRatio,
	})

	return GenerateResult{
		Path:        outputPath,
		Filename:    filename,
		Provider:    string(model.Provider),
		Model:       model.Key,
		Resolution:  artifact.Resolution,
		AspectRatio: req.AspectRatio,
		CostUSD:     estimate.PerImageUSD,
		SizeBytes:   len(artifact.Data),
	}, nil
}

// EstimateCost prices a request without generating anything.
func (s *ImageService) EstimateCost(req GenerateRequest, count int) (CostEstimate, error) {
	if count < 1 {
		count = 1
	}
	model, _, err := s.resolve(req)
	if err != nil {
		return CostEstimate{}, err
	}
	estimate, err := s.estimator.Estimate(model, pricing.Request{
		ImageSize:       catalog.ImageSize(req.ImageSize),
		AspectRatio:     req.AspectRatio,
		ReferenceImages: len(req.ReferenceImages),
		SearchGrounding: req.SearchGrounding,
		ThinkingLevel:   catalog.ThinkingLevel(req.ThinkingLevel),
		Count:           count,
	})
	if err != nil {
		return CostEstimate{}, err
	}
	return CostEstimate{
		Model:       model.Key,
		Provider:    string(model.Provider),
		PerImageUSD: estimate.PerImageUSD,
		TotalUSD:    estimate.TotalUSD,
		Count:       count,
	}, nil
}

// AddToBatch validates the request against the catalog, prices it, and
// queues it. Queueing an unpriceable request would only defer the failure to
// batch time, so selection and estimation errors are reported immediately.
func (s *ImageService) AddToBatch(req GenerateRequest) (AddToBatchResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return AddToBatchResult{}, &catalog.ConfigurationError{Reason: "prompt is required"}
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}

	model, estimate, err := s.resolve(req)
	if err != nil {
		return AddToBatchResult{}, err
	}

	result, err := s.queue.Enqueue(queue.Entry{
		Prompt:          req.Prompt,
		Filename:        req.Filename,
		AspectRatio:     req.AspectRatio,
		ImageSize:       req.ImageSize,
		Quality:         req.Quality,
		Provider:        req.Provider,
		Model:           req.Model,
		AutoMode:        req.AutoMode,
		StyleHint:       req.StyleHint,
		Description:     req.Description,
		Title:           req.Title,
		AlternativeText: req.AlternativeText,
		Caption:         req.Caption,
		ReferenceImages: req.ReferenceImages,
		SearchGrounding: req.SearchGrounding,
		ThinkingLevel:   req.ThinkingLevel,
		MediaResolution: req.MediaResolution,
	})
	if err != nil {
		return AddToBatchResult{}, err
	}
	if result.DuplicateFilename {
		s.log.Warn("duplicate filename queued", "filename", result.Filename)
	}
	return AddToBatchResult{
		Filename:          result.Filename,
		QueueSize:         result.QueueSize,
		DuplicateFilename: result.DuplicateFilename,
		EstimatedCostUSD:  estimate.PerImageUSD,
		Model:             model.Key,
	}, nil
}

// ViewQueue returns the queued entries in order.
func (s *ImageService) ViewQueue() ([]queue.Entry, error) {
	return s.queue.Peek()
}

// RemoveFromBatch deletes entries by index or filename.
func (s *ImageService) RemoveFromBatch(identifier string) (queue.RemoveResult, error) {
	return s.queue.Remove(identifier)
}

// RunBatch drains the queue through the executor.
func (s *ImageService) RunBatch(ctx context.Context, opts batch.Options) (batch.Result, error) {
	return s.executor.Run(ctx, opts)
}

// QueryLog returns log records matching the filter.
func (s *ImageService) QueryLog(q genlog.Query) (genlog.QueryResult, error) {
	return s.genLog.Query(q)
}

// Models returns the catalog in its stable order.
func (s *ImageService) Models() []catalog.ModelDescriptor {
	return s.cat.Models()
}

// ConvertAllToWebP sweeps the images directory, converts every PNG that has
// no up-to-date WebP sibling, and derives sidecars for the results.
func (s *ImageService) ConvertAllToWebP(quality int) ([]ConvertedImage, error) {
	entries, err := os.ReadDir(s.imagesDir)
	if err != nil {
		return nil, fmt.Errorf("read images dir %s: %w", s.imagesDir, err)
	}

	var converted []ConvertedImage
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".png") {
			continue
		}
		webpName := strings.TrimSuffix(name, filepath.Ext(name)) + ".webp"
		webpPath := filepath.Join(s.imagesDir, webpName)
		if _, err := os.Stat(webpPath); err == nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.imagesDir, name))
		if err != nil {
			s.log.Error("read image for conversion", "filename", name, "err", err)
			continue
		}
		webpData, err := s.converter(data, quality)
		if err != nil {
			s.log.Error("webp conversion failed", "filename", name, "err", err)
			continue
		}
		if err := os.WriteFile(webpPath, webpData, 0o644); err != nil {
			s.log.Error("save webp", "path", webpPath, "err", err)
			continue
		}

		now := time.Now()
		if _, err := s.meta.Derive(name, webpName, metadata.Overrides{CreatedAt: &now, Quality: &quality}); err != nil {
			s.log.Warn("derive webp sidecar", "filename", webpName, "err", err)
		}
		converted = append(converted, ConvertedImage{Source: name, Path: webpPath, SizeBytes: len(webpData)})
	}
	return converted, nil
}

// ListWebPImages returns WebP filenames in the images directory, newest
// first.
func (s *ImageService) ListWebPImages() ([]string, error) {
	entries, err := os.ReadDir(s.imagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read images dir %s: %w", s.imagesDir, err)
	}

	type webpFile struct {
		name    string
		modTime time.Time
	}
	var files []webpFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".webp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, webpFile{name: entry.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// UploadToWordPress pushes the named WebP files to the media library and
// records the resulting ids in their sidecars. Per-file failures are
// reported, not fatal.
func (s *ImageService) UploadToWordPress(ctx context.Context, filenames []string) ([]UploadedImage, []string, error) {
	if s.wordpress == nil {
		return nil, nil, &catalog.ConfigurationError{Reason: "wordpress upload is not configured"}
	}

	var uploaded []UploadedImage
	var failed []string
	for _, name := range filenames {
		data, err := os.ReadFile(filepath.Join(s.imagesDir, name))
		if err != nil {
			s.log.Error("read file for upload", "filename", name, "err", err)
			failed = append(failed, name)
			continue
		}
		media, err := s.wordpress.UploadMedia(ctx, name, data, contentTypeFor(name))
		if err != nil {
			s.log.Error("wordpress upload failed", "filename", name, "err", err)
			failed = append(failed, name)
			continue
		}

		uploadedAt := time.Now()
		if _, err := s.meta.Derive(name, name, metadata.Overrides{
			MediaID:    &media.ID,
			MediaURL:   &media.URL,
			UploadedAt: &uploadedAt,
		}); err != nil {
			s.log.Warn("record upload in sidecar", "filename", name, "err", err)
		}
		uploaded = append(uploaded, UploadedImage{Filename: name, MediaID: media.ID, URL: media.URL})
	}
	return uploaded, failed, nil
}

// PostToLinkedIn publishes a text or link post. Returns the created post's
// URN.
func (s *ImageService) PostToLinkedIn(ctx context.Context, input linkedin.PostInput) (string, error) {
	if s.linkedin == nil {
		return "", &catalog.ConfigurationError{Reason: "linkedin posting is not configured"}
	}
	return s.linkedin.CreatePost(ctx, input)
}

// CommentOnLinkedInPost adds a comment under an existing post.
func (s *ImageService) CommentOnLinkedInPost(ctx context.Context, postID, message string) (string, error) {
	if s.linkedin == nil {
		return "", &catalog.ConfigurationError{Reason: "linkedin posting is not configured"}
	}
	return s.linkedin.CreateComment(ctx, postID, message)
}

// resolve maps the request's selection fields to one model and prices the
// request against it.
func (s *ImageService) resolve(req GenerateRequest) (catalog.ModelDescriptor, pricing.Estimate, error) {
	if len(req.ReferenceImages) > s.maxRefs {
		return catalog.ModelDescriptor{}, pricing.Estimate{}, &catalog.ConfigurationError{
			Reason: fmt.Sprintf("too many reference images: %d exceeds the limit of %d", len(req.ReferenceImages), s.maxRefs),
		}
	}
	mode := selector.ModeFrom(req.Model, req.Provider, req.Quality, req.AutoMode, req.StyleHint)
	model, err := s.sel.Resolve(mode, selector.Constraints{
		ImageSize:       catalog.ImageSize(req.ImageSize),
		ReferenceImages: len(req.ReferenceImages),
		SearchGrounding: req.SearchGrounding,
	})
	if err != nil {
		return catalog.ModelDescriptor{}, pricing.Estimate{}, err
	}
	estimate, err := s.estimator.Estimate(model, pricing.Request{
		ImageSize:       catalog.ImageSize(req.ImageSize),
		AspectRatio:     req.AspectRatio,
		ReferenceImages: len(req.ReferenceImages),
		SearchGrounding: req.SearchGrounding,
		ThinkingLevel:   catalog.ThinkingLevel(req.ThinkingLevel),
	})
	if err != nil {
		return catalog.ModelDescriptor{}, pricing.Estimate{}, err
	}
	return model, estimate, nil
}

func (s *ImageService) appendLog(r genlog.Record) {
	if err := s.genLog.Append(r); err != nil {
		s.log.Error("append generation log", "filename", r.Filename, "err", err)
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func titleFromFilename(filename string) string {
	name := strings.ReplaceAll(strings.TrimSuffix(filename, filepath.Ext(filename)), "_", " ")
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
