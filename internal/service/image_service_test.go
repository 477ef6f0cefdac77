package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeeperFrog/peeperfrog-create/internal/batch"
	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
	"github.com/PeeperFrog/peeperfrog-create/internal/linkedin"
	"github.com/PeeperFrog/peeperfrog-create/internal/metadata"
	"github.com/PeeperFrog/peeperfrog-create/internal/pricing"
	"github.com/PeeperFrog/peeperfrog-create/internal/provider"
	"github.com/PeeperFrog/peeperfrog-create/internal/queue"
	"github.com/PeeperFrog/peeperfrog-create/internal/selector"
	"github.com/PeeperFrog/peeperfrog-create/internal/service"
)

type stubGenerator struct {
	lastJob provider.Job
	err     error
}

func (s *stubGenerator) Generate(_ context.Context, job provider.Job) (provider.Artifact, error) {
	s.lastJob = job
	if s.err != nil {
		return provider.Artifact{}, s.err
	}
	return provider.Artifact{Data: []byte("image bytes"), ModelID: job.Model.ModelID, Resolution: "1024x1024"}, nil
}

func newService(t *testing.T, gen *stubGenerator) (*service.ImageService, string) {
	t.Helper()
	dir := t.TempDir()
	cat := catalog.Default()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewImageService(service.Deps{
		Catalog:   cat,
		Selector:  selector.New(cat, func(string) bool { return true }),
		Estimator: pricing.NewEstimator(cat),
		Generator: gen,
		Queue:     queue.NewStore(filepath.Join(dir, "metadata", "batch_queue.json")),
		GenLog:    genlog.New(dir),
		Metadata:  metadata.NewWriter(dir),
		ImagesDir: dir,
		Logger:    discard,
	})
	return svc, dir
}

func TestGenerateImage_FullPipeline(t *testing.T) {
	gen := &stubGenerator{}
	svc, dir := newService(t, gen)

	result, err := svc.GenerateImage(context.Background(), service.GenerateRequest{
		Prompt:   "an otter juggling pebbles",
		Filename: "otter.png",
		Model:    "flux1-schnell",
	})
	require.NoError(t, err)
	assert.Equal(t, "otter.png", result.Filename)
	assert.Equal(t, "together", result.Provider)
	assert.Equal(t, "flux1-schnell", result.Model)
	assert.Positive(t, result.CostUSD)

	// The PNG, its sidecar and the log entry all exist.
	_, err = os.Stat(filepath.Join(dir, "otter.png"))
	assert.NoError(t, err)

	rec, err := metadata.NewWriter(dir).Read("otter.png")
	require.NoError(t, err)
	assert.Equal(t, "an otter juggling pebbles", rec.Prompt)
	assert.Equal(t, "Otter", rec.Title)

	logged, err := svc.QueryLog(genlog.Query{Filename: "otter"})
	require.NoError(t, err)
	require.Len(t, logged.Records, 1)
	assert.Equal(t, genlog.StatusSuccess, logged.Records[0].Status)
}

func TestGenerateImage_RequiresPrompt(t *testing.T) {
	svc, _ := newService(t, &stubGenerator{})

	_, err := svc.GenerateImage(context.Background(), service.GenerateRequest{Prompt: "   "})
	var cfgErr *catalog.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestGenerateImage_ProviderFailureIsLogged(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	svc, _ := newService(t, gen)

	_, err := svc.GenerateImage(context.Background(), service.GenerateRequest{
		Prompt: "p",
		Model:  "flux1-schnell",
	})
	require.Error(t, err)

	logged, err := svc.QueryLog(genlog.Query{})
	require.NoError(t, err)
	require.Len(t, logged.Records, 1)
	assert.Contains(t, logged.Records[0].Status, "error:")
	assert.Zero(t, logged.Records[0].CostUSD)
}

func TestGenerateImage_ModelKeyOverridesAutoMode(t *testing.T) {
	gen := &stubGenerator{}
	svc, _ := newService(t, gen)

	result, err := svc.GenerateImage(context.Background(), service.GenerateRequest{
		Prompt:   "p",
		Model:    "openai-fast",
		AutoMode: "cheapest",
		Provider: "together",
		Quality:  "pro",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai-fast", result.Model)
	assert.Equal(t, "gpt-image-1", gen.lastJob.Model.ModelID)
}

func TestEstimateCost_NoGenerationHappens(t *testing.T) {
	gen := &stubGenerator{}
	svc, _ := newService(t, gen)

	estimate, err := svc.EstimateCost(service.GenerateRequest{
		AutoMode:  "cheapest",
		StyleHint: "photo",
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, "juggernaut-lightning", estimate.Model)
	assert.Equal(t, 5, estimate.Count)
	assert.InDelta(t, estimate.PerImageUSD*5, estimate.TotalUSD, 1e-6)
	assert.Equal(t, provider.Job{}, gen.lastJob)
}

func TestAddToBatch_RejectsUnpriceableRequest(t *testing.T) {
	svc, _ := newService(t, &stubGenerator{})

	// gemini-fast cannot render xlarge; queueing would only defer the error.
	_, err := svc.AddToBatch(service.GenerateRequest{
		Prompt:    "p",
		Model:     "gemini-fast",
		ImageSize: "xlarge",
	})
	var capErr *catalog.CapabilityError
	assert.ErrorAs(t, err, &capErr)

	entries, err := svc.ViewQueue()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAddToBatch_QueuesWithEstimate(t *testing.T) {
	svc, _ := newService(t, &stubGenerator{})

	result, err := svc.AddToBatch(service.GenerateRequest{
		Prompt:   "a quiet harbor at night",
		Filename: "harbor.png",
		Model:    "flux1-schnell",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.QueueSize)
	assert.Equal(t, "flux1-schnell", result.Model)
	assert.Positive(t, result.EstimatedCostUSD)

	entries, err := svc.ViewQueue()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "harbor.png", entries[0].Filename)
}

func TestGenerateImage_ReferenceImageCap(t *testing.T) {
	gen := &stubGenerator{}
	dir := t.TempDir()
	cat := catalog.Default()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewImageService(service.Deps{
		Catalog:            cat,
		Selector:           selector.New(cat, func(string) bool { return true }),
		Estimator:          pricing.NewEstimator(cat),
		Generator:          gen,
		Queue:              queue.NewStore(filepath.Join(dir, "metadata", "batch_queue.json")),
		GenLog:             genlog.New(dir),
		Metadata:           metadata.NewWriter(dir),
		ImagesDir:          dir,
		MaxReferenceImages: 2,
		Logger:             discard,
	})

	_, err := svc.GenerateImage(context.Background(), service.GenerateRequest{
		Prompt:          "p",
		Model:           "gemini-pro",
		ReferenceImages: []string{"a.png", "b.png", "c.png"},
	})
	var cfgErr *catalog.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "limit of 2")
	assert.Equal(t, provider.Job{}, gen.lastJob)

	// At the cap the request goes through.
	_, err = svc.GenerateImage(context.Background(), service.GenerateRequest{
		Prompt:          "p",
		Model:           "gemini-pro",
		ReferenceImages: []string{"a.png", "b.png"},
	})
	assert.NoError(t, err)
}

type stubPoster struct {
	lastInput   linkedin.PostInput
	lastPostID  string
	lastMessage string
}

func (p *stubPoster) CreatePost(_ context.Context, input linkedin.PostInput) (string, error) {
	p.lastInput = input
	return "urn:li:share:1", nil
}

func (p *stubPoster) CreateComment(_ context.Context, postID, message string) (string, error) {
	p.lastPostID = postID
	p.lastMessage = message
	return "urn:li:comment:1", nil
}

func TestLinkedIn_Unconfigured(t *testing.T) {
	svc, _ := newService(t, &stubGenerator{})

	var cfgErr *catalog.ConfigurationError
	_, err := svc.PostToLinkedIn(context.Background(), linkedin.PostInput{Commentary: "hi"})
	assert.ErrorAs(t, err, &cfgErr)
	_, err = svc.CommentOnLinkedInPost(context.Background(), "urn:li:share:1", "hi")
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLinkedIn_DelegatesToPoster(t *testing.T) {
	poster := &stubPoster{}
	dir := t.TempDir()
	cat := catalog.Default()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewImageService(service.Deps{
		Catalog:   cat,
		Selector:  selector.New(cat, func(string) bool { return true }),
		Estimator: pricing.NewEstimator(cat),
		Generator: &stubGenerator{},
		Queue:     queue.NewStore(filepath.Join(dir, "metadata", "batch_queue.json")),
		GenLog:    genlog.New(dir),
		Metadata:  metadata.NewWriter(dir),
		LinkedIn:  poster,
		ImagesDir: dir,
		Logger:    discard,
	})

	postID, err := svc.PostToLinkedIn(context.Background(), linkedin.PostInput{Commentary: "launch day"})
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:1", postID)
	assert.Equal(t, "launch day", poster.lastInput.Commentary)

	commentID, err := svc.CommentOnLinkedInPost(context.Background(), "urn:li:share:1", "and a follow-up")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:comment:1", commentID)
	assert.Equal(t, "urn:li:share:1", poster.lastPostID)
	assert.Equal(t, "and a follow-up", poster.lastMessage)
}

func TestUploadToWordPress_Unconfigured(t *testing.T) {
	svc, _ := newService(t, &stubGenerator{})

	_, _, err := svc.UploadToWordPress(context.Background(), []string{"x.webp"})
	var cfgErr *catalog.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunBatch_ThroughService(t *testing.T) {
	gen := &stubGenerator{}
	dir := t.TempDir()
	cat := catalog.Default()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := queue.NewStore(filepath.Join(dir, "metadata", "batch_queue.json"))
	sel := selector.New(cat, func(string) bool { return true })
	estimator := pricing.NewEstimator(cat)
	log := genlog.New(dir)
	meta := metadata.NewWriter(dir)
	executor := batch.NewExecutor(batch.Config{
		Queue:     store,
		Selector:  sel,
		Estimator: estimator,
		GenLog:    log,
		Metadata:  meta,
		Generator: gen,
		OutputDir: filepath.Join(dir, "batch"),
		Logger:    discard,
	})
	svc := service.NewImageService(service.Deps{
		Catalog:   cat,
		Selector:  sel,
		Estimator: estimator,
		Generator: gen,
		Queue:     store,
		GenLog:    log,
		Metadata:  meta,
		Executor:  executor,
		ImagesDir: dir,
		Logger:    discard,
	})

	_, err := svc.AddToBatch(service.GenerateRequest{Prompt: "p", Filename: "one.png", Model: "flux1-schnell"})
	require.NoError(t, err)

	result, err := svc.RunBatch(context.Background(), batch.Options{})
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 1)

	entries, err := svc.ViewQueue()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
