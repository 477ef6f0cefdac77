package catalog

// Provider identifies an image generation backend.
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderOpenAI   Provider = "openai"
	ProviderTogether Provider = "together"
)

// QualityTier is a provider's own two-speed offering, distinct from the
// budget-oriented CostTier used by auto mode.
type QualityTier string

const (
	QualityPro  QualityTier = "pro"
	QualityFast QualityTier = "fast"
)

// ImageSize is an ordered resolution tier. Each provider maps tiers to its
// own concrete pixel dimensions.
type ImageSize string

const (
	SizeSmall  ImageSize = "small"
	SizeMedium ImageSize = "medium"
	SizeLarge  ImageSize = "large"
	SizeXLarge ImageSize = "xlarge"
)

var sizeOrder = map[ImageSize]int{
	SizeSmall:  0,
	SizeMedium: 1,
	SizeLarge:  2,
	SizeXLarge: 3,
}

// Ordinal returns the rank of the size tier, or -1 for an unknown value.
func (s ImageSize) Ordinal() int {
	if o, ok := sizeOrder[s]; ok {
		return o
	}
	return -1
}

// StyleHint is a ranking dimension for auto-mode model selection.
type StyleHint string

const (
	StyleGeneral      StyleHint = "general"
	StylePhoto        StyleHint = "photo"
	StyleIllustration StyleHint = "illustration"
	StyleText         StyleHint = "text"
	StyleInfographic  StyleHint = "infographic"
)

// Normalize maps unrecognized hints to StyleGeneral.
func (h StyleHint) Normalize() StyleHint {
	switch h {
	case StylePhoto, StyleIllustration, StyleText, StyleInfographic:
		return h
	default:
		return StyleGeneral
	}
}

// CostTier is an ordered budget ceiling category bounding normalized $/megapixel.
type CostTier string

const (
	TierCheapest CostTier = "cheapest"
	TierBudget   CostTier = "budget"
	TierBalanced CostTier = "balanced"
	TierQuality  CostTier = "quality"
	TierBest     CostTier = "best"
)

// ThinkingLevel controls reasoning depth for the one provider/tier that
// supports it (Gemini pro).
type ThinkingLevel string

const (
	ThinkingMinimal ThinkingLevel = "minimal"
	ThinkingLow     ThinkingLevel = "low"
	ThinkingMedium  ThinkingLevel = "medium"
	ThinkingHigh    ThinkingLevel = "high"
)

// ModelDescriptor is one catalog entry: capability and pricing data for a
// single (provider, model) combination. Descriptors are immutable after the
// catalog is built.
type ModelDescriptor struct {
	// Key is globally unique across all providers (e.g. "flux2-pro", "gemini-pro").
	Key string

	Provider Provider
	Quality  QualityTier

	// ModelID is the provider-side identifier sent on the wire.
	ModelID string

	// CostPerMegapixel is the linear pricing basis for per-megapixel
	// providers (Together). Zero for flat-priced models.
	CostPerMegapixel float64

	// FlatCost maps a provider resolution label ("1K", "1024x1024", ...)
	// to a fixed per-image price. Nil for per-megapixel models.
	FlatCost map[string]float64

	// Surcharges. Only the Gemini pro model carries non-zero values.
	TextInputPerImage   float64
	ReferenceImageCost  float64
	SearchGroundingCost float64
	ThinkingOverhead    map[ThinkingLevel]float64

	// NormalizedCostPerMP is the cost of a one-megapixel image, used for
	// tier ceilings and tie-breaking in auto mode.
	NormalizedCostPerMP float64

	// MaxImageSize is a capability ceiling, not a fixed output size.
	MaxImageSize ImageSize

	SupportsReferenceImages bool
	MaxReferenceImages      int
	SupportsSearchGrounding bool

	// QualityScores rates the model per style dimension, 0 (poor) to 3 (excellent).
	QualityScores map[StyleHint]int

	// RequiresAPIKeyEnv names the credential that must be present for this
	// model to be eligible.
	RequiresAPIKeyEnv string

	// Steps is the sampler step count for Together models; 0 means omit
	// from the payload and let the provider default apply.
	Steps int
}

// Score returns the model's quality score for a style hint, falling back to
// the general dimension for unknown hints.
func (m ModelDescriptor) Score(hint StyleHint) int {
	return m.QualityScores[hint.Normalize()]
}
