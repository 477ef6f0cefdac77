// Package pricing computes pre-flight USD cost estimates for image
// generation requests. Estimation is pure and deterministic: no clock, no
// network, identical output for identical input.
package pricing

import (
	"fmt"
	"math"

	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
)

// Request describes the parameters that influence cost.
type Request struct {
	ImageSize       catalog.ImageSize
	AspectRatio     string
	ReferenceImages int
	SearchGrounding bool
	ThinkingLevel   catalog.ThinkingLevel
	Count           int
}

// Estimate is a per-image and total cost pair, rounded to 6 decimals.
type Estimate struct {
	PerImageUSD float64
	TotalUSD    float64
}

// Estimator prices requests against an injected catalog.
type Estimator struct {
	cat *catalog.Catalog
}

func NewEstimator(cat *catalog.Catalog) *Estimator {
	return &Estimator{cat: cat}
}

// EstimateKey resolves the model key and prices the request.
func (e *Estimator) EstimateKey(modelKey string, req Request) (Estimate, error) {
	model, err := e.cat.Model(modelKey)
	if err != nil {
		return Estimate{}, err
	}
	return e.Estimate(model, req)
}

// Estimate prices a request for a resolved model. A request that asks for a
// size tier beyond the model's ceiling fails with a CapabilityError rather
// than being silently downgraded; when no size was asked for, the default is
// clamped to whatever the model can render.
func (e *Estimator) Estimate(model catalog.ModelDescriptor, req Request) (Estimate, error) {
	size := req.ImageSize
	if size == "" {
		size = catalog.SizeLarge
		if size.Ordinal() > model.MaxImageSize.Ordinal() {
			size = model.MaxImageSize
		}
	}
	if size.Ordinal() < 0 {
		return Estimate{}, &catalog.ConfigurationError{Reason: fmt.Sprintf("unknown image size %q", size)}
	}
	if size.Ordinal() > model.MaxImageSize.Ordinal() {
		return Estimate{}, &catalog.CapabilityError{
			Model:  model.Key,
			Reason: fmt.Sprintf("image size %q exceeds the model's maximum %q", size, model.MaxImageSize),
		}
	}

	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}

	var perImage float64
	switch model.Provider {
	case catalog.ProviderGemini:
		perImage = e.geminiCost(model, size, req)
	case catalog.ProviderOpenAI:
		perImage = e.openAICost(model, aspectRatio)
	case catalog.ProviderTogether:
		perImage = e.togetherCost(model, aspectRatio, size)
	default:
		return Estimate{}, &catalog.ConfigurationError{Reason: fmt.Sprintf("unknown provider %q", model.Provider)}
	}

	count := req.Count
	if count < 1 {
		count = 1
	}

	perImage = round6(perImage)
	return Estimate{
		PerImageUSD: perImage,
		TotalUSD:    round6(perImage * float64(count)),
	}, nil
}

// geminiCost prices a flat per-resolution tier plus the surcharges only the
// pro model carries: text input estimate, per-reference cost, search
// grounding, and thinking level overhead.
func (e *Estimator) geminiCost(model catalog.ModelDescriptor, size catalog.ImageSize, req Request) float64 {
	label := GeminiSizeLabel(size, model.Quality)
	cost := model.FlatCost[label] + model.TextInputPerImage
	cost += float64(req.ReferenceImages) * model.ReferenceImageCost
	if req.SearchGrounding {
		cost += model.SearchGroundingCost
	}
	if req.ThinkingLevel != "" && model.Quality == catalog.QualityPro {
		cost += model.ThinkingOverhead[req.ThinkingLevel]
	}
	return cost
}

func (e *Estimator) openAICost(model catalog.ModelDescriptor, aspectRatio string) float64 {
	resolution := ClosestOpenAISize(aspectRatio)
	return model.FlatCost[resolution] + model.TextInputPerImage
}

func (e *Estimator) togetherCost(model catalog.ModelDescriptor, aspectRatio string, size catalog.ImageSize) float64 {
	width, height := Dimensions(aspectRatio, size)
	return float64(width*height) / 1_000_000 * model.CostPerMegapixel
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
