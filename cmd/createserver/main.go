package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/PeeperFrog/peeperfrog-create/internal/admin"
	"github.com/PeeperFrog/peeperfrog-create/internal/batch"
	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
	"github.com/PeeperFrog/peeperfrog-create/internal/config"
	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
	"github.com/PeeperFrog/peeperfrog-create/internal/imageconv"
	"github.com/PeeperFrog/peeperfrog-create/internal/linkedin"
	"github.com/PeeperFrog/peeperfrog-create/internal/mcp"
	"github.com/PeeperFrog/peeperfrog-create/internal/metadata"
	"github.com/PeeperFrog/peeperfrog-create/internal/pricing"
	"github.com/PeeperFrog/peeperfrog-create/internal/provider"
	"github.com/PeeperFrog/peeperfrog-create/internal/queue"
	"github.com/PeeperFrog/peeperfrog-create/internal/selector"
	"github.com/PeeperFrog/peeperfrog-create/internal/service"
	"github.com/PeeperFrog/peeperfrog-create/internal/storage"
	"github.com/PeeperFrog/peeperfrog-create/internal/wordpress"
	"github.com/PeeperFrog/peeperfrog-create/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()
	estimator := pricing.NewEstimator(cat)
	sel := selector.New(cat, catalog.EnvCredentials())

	queueStore := queue.NewStore(cfg.QueuePath())
	generationLog := genlog.New(cfg.ImagesDir)
	sidecars := metadata.NewWriter(cfg.ImagesDir)

	providerClient := provider.NewClient(provider.Keys{
		Gemini:   cfg.GeminiAPIKey,
		OpenAI:   cfg.OpenAIAPIKey,
		Together: cfg.TogetherAPIKey,
	}, cfg.RequestTimeout, logr)

	var wpUploader batch.Uploader
	if cfg.WordPressEnabled() {
		wpUploader = wordpressUploader{
			client: wordpress.NewClient(cfg.WordPressURL, cfg.WordPressUsername, cfg.WordPressAppPassword, cfg.RequestTimeout, logr),
		}
	}

	var socialPoster service.SocialPoster
	if cfg.LinkedInEnabled() {
		socialPoster = linkedin.NewClient(cfg.LinkedInAccessToken, cfg.LinkedInAuthorURN, cfg.RequestTimeout, logr)
	}

	var archiver batch.Archiver
	if cfg.S3Enabled() {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		archiver = uploader
	}

	executor := batch.NewExecutor(batch.Config{
		Queue:     queueStore,
		Selector:  sel,
		Estimator: estimator,
		GenLog:    generationLog,
		Metadata:  sidecars,
		Generator: providerClient,
		Converter: imageconv.ToWebP,
		Uploader:  wpUploader,
		Archiver:  archiver,
		OutputDir: cfg.BatchDir(),
		Delay:     cfg.APIDelay,
		Logger:    logr,
	})

	svc := service.NewImageService(service.Deps{
		Catalog:            cat,
		Selector:           sel,
		Estimator:          estimator,
		Generator:          providerClient,
		Queue:              queueStore,
		GenLog:             generationLog,
		Metadata:           sidecars,
		Executor:           executor,
		Converter:          imageconv.ToWebP,
		WordPress:          wpUploader,
		LinkedIn:           socialPoster,
		ImagesDir:          cfg.ImagesDir,
		MaxReferenceImages: cfg.MaxReferenceImages,
		Logger:             logr,
	})

	if cfg.AdminEnabled() {
		adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, svc)
		go func() {
			if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("admin server stopped", "err", err)
			}
		}()
	}

	logr.Info("server starting",
		"images_dir", cfg.ImagesDir,
		"providers", cfg.ProviderKeys(),
		"wordpress", cfg.WordPressEnabled(),
		"linkedin", cfg.LinkedInEnabled(),
		"s3", cfg.S3Enabled(),
	)

	server := mcp.NewServer(svc, cfg.WebPQuality, logr)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logr.Info("server stopped")
}

// wordpressUploader adapts the wordpress client to the batch uploader
// interface.
type wordpressUploader struct {
	client *wordpress.Client
}

func (w wordpressUploader) UploadMedia(ctx context.Context, filename string, data []byte, contentType string) (batch.MediaRef, error) {
	media, err := w.client.UploadMedia(ctx, filename, data, contentType)
	if err != nil {
		return batch.MediaRef{}, err
	}
	return batch.MediaRef{ID: media.ID, URL: media.SourceURL}, nil
}
