// Package catalog holds the static capability and pricing data for every
// supported image generation model, across three providers. The catalog is
// built once at process start and injected into the estimator and selector;
// price changes require redeploying the catalog.
package catalog

import (
	"fmt"
	"math"
	"os"
)

const (
	envKeyGemini   = "GEMINI_API_KEY"
	envKeyOpenAI   = "OPENAI_API_KEY"
	envKeyTogether = "TOGETHER_API_KEY"
)

// DefaultProvider is used when a request names neither a provider nor a model.
const DefaultProvider = ProviderGemini

// tierCeilings bounds normalized $/megapixel per cost tier. TierBest is
// unconstrained.
var tierCeilings = map[CostTier]float64{
	TierCheapest: 0.003,
	TierBudget:   0.01,
	TierBalanced: 0.04,
	TierQuality:  0.08,
	TierBest:     math.Inf(1),
}

// CredentialChecker reports whether the credential behind an env var name is
// available. The production implementation consults the process environment.
type CredentialChecker func(envName string) bool

// EnvCredentials checks credentials against the process environment.
func EnvCredentials() CredentialChecker {
	return func(envName string) bool {
		return os.Getenv(envName) != ""
	}
}

// Catalog is an immutable set of model descriptors keyed by model key.
type Catalog struct {
	models map[string]ModelDescriptor
	order  []string
}

// New builds a catalog from descriptors, preserving order. Duplicate keys are
// rejected; keys are globally unique across providers.
func New(descriptors []ModelDescriptor) (*Catalog, error) {
	c := &Catalog{models: make(map[string]ModelDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Key == "" {
			return nil, fmt.Errorf("model descriptor without key")
		}
		if _, exists := c.models[d.Key]; exists {
			return nil, fmt.Errorf("duplicate model key %q", d.Key)
		}
		c.models[d.Key] = d
		c.order = append(c.order, d.Key)
	}
	return c, nil
}

// Model looks up a descriptor by key.
func (c *Catalog) Model(key string) (ModelDescriptor, error) {
	d, ok := c.models[key]
	if !ok {
		return ModelDescriptor{}, &ConfigurationError{Reason: fmt.Sprintf("unknown model key %q", key)}
	}
	return d, nil
}

// Has reports whether the catalog contains the key.
func (c *Catalog) Has(key string) bool {
	_, ok := c.models[key]
	return ok
}

// Models returns all descriptors in catalog order.
func (c *Catalog) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.models[k])
	}
	return out
}

// DefaultModel resolves a (provider, quality tier) pair to the provider's
// canonical model for that tier.
func (c *Catalog) DefaultModel(p Provider, q QualityTier) (ModelDescriptor, error) {
	key, ok := defaultModelKeys[p][q]
	if !ok {
		return ModelDescriptor{}, &ConfigurationError{Reason: fmt.Sprintf("no default model for provider %q quality %q", p, q)}
	}
	return c.Model(key)
}

// TierCeiling returns the $/megapixel ceiling for a cost tier.
func TierCeiling(t CostTier) (float64, error) {
	ceiling, ok := tierCeilings[t]
	if !ok {
		return 0, &ConfigurationError{Reason: fmt.Sprintf("unknown cost tier %q", t)}
	}
	return ceiling, nil
}

// Tiers lists the cost tiers from cheapest to unconstrained.
func Tiers() []CostTier {
	return []CostTier{TierCheapest, TierBudget, TierBalanced, TierQuality, TierBest}
}

var defaultModelKeys = map[Provider]map[QualityTier]string{
	ProviderGemini:   {QualityPro: "gemini-pro", QualityFast: "gemini-fast"},
	ProviderOpenAI:   {QualityPro: "openai-pro", QualityFast: "openai-fast"},
	ProviderTogether: {QualityPro: "flux1-pro", QualityFast: "flux1-schnell"},
}

// togetherModel builds a descriptor for a Together-hosted model. All Together
// models price linearly per megapixel and support every size tier.
func togetherModel(key, id string, costPerMP float64, steps int, q QualityTier, text, photo, illustration, infographic, general int) ModelDescriptor {
	return ModelDescriptor{
		Key:                 key,
		Provider:            ProviderTogether,
		Quality:             q,
		ModelID:             id,
		CostPerMegapixel:    costPerMP,
		NormalizedCostPerMP: costPerMP,
		MaxImageSize:        SizeXLarge,
		QualityScores: map[StyleHint]int{
			StyleText:         text,
			StylePhoto:        photo,
			StyleIllustration: illustration,
			StyleInfographic:  infographic,
			StyleGeneral:      general,
		},
		RequiresAPIKeyEnv: envKeyTogether,
		Steps:             steps,
	}
}

// Default returns the built-in catalog. Normalized costs, capability flags
// and quality scores come from published provider pricing as of late 2025.
func Default() *Catalog {
	descriptors := []ModelDescriptor{
		togetherModel("dreamshaper", "dreamshaper/Dreamshaper", 0.0006, 0, QualityFast, 0, 1, 2, 0, 1),
		togetherModel("juggernaut-lightning", "juggernaut/Juggernaut-Lightning-Flux", 0.0017, 0, QualityFast, 0, 2, 1, 0, 1),
		togetherModel("sdxl", "stabilityai/stable-diffusion-xl-base-1.0", 0.0019, 0, QualityFast, 0, 1, 2, 0, 1),
		togetherModel("sd3", "stabilityai/stable-diffusion-3-medium", 0.0019, 0, QualityFast, 0, 2, 2, 0, 1),
		togetherModel("flux1-schnell", "black-forest-labs/FLUX.1-schnell", 0.0027, 4, QualityFast, 1, 2, 2, 1, 2),
		togetherModel("hidream-fast", "hidream-ai/HiDream-I1-Fast", 0.0032, 0, QualityFast, 1, 2, 2, 1, 2),
		togetherModel("hidream-dev", "hidream-ai/HiDream-I1-Dev", 0.0045, 0, QualityFast, 1, 2, 2, 1, 2),
		togetherModel("juggernaut-pro", "juggernaut/Juggernaut-Pro-Flux", 0.0049, 0, QualityFast, 0, 2, 1, 0, 2),
		togetherModel("qwen-image", "qwen/qwen-image", 0.0058, 0, QualityFast, 1, 2, 2, 1, 2),
		togetherModel("hidream-full", "hidream-ai/HiDream-I1-Full", 0.009, 0, QualityFast, 1, 2, 2, 1, 2),
		{
			Key:                 "openai-fast",
			Provider:            ProviderOpenAI,
			Quality:             QualityFast,
			ModelID:             "gpt-image-1",
			FlatCost:            map[string]float64{"1024x1024": 0.011, "1536x1024": 0.016, "1024x1536": 0.016},
			TextInputPerImage:   0.0002,
			NormalizedCostPerMP: 0.011,
			MaxImageSize:        SizeLarge,
			QualityScores: map[StyleHint]int{
				StyleText: 3, StylePhoto: 2, StyleIllustration: 2, StyleInfographic: 2, StyleGeneral: 2,
			},
			RequiresAPIKeyEnv: envKeyOpenAI,
		},
		togetherModel("seedream3", "bytedance/seedream-3.0", 0.018, 0, QualityFast, 1, 3, 2, 1, 2),
		togetherModel("imagen4-fast", "google/imagen-4.0-fast", 0.02, 0, QualityFast, 2, 3, 2, 2, 2),
		togetherModel("flux2-dev", "black-forest-labs/FLUX.2-dev", 0.025, 28, QualityFast, 1, 3, 3, 1, 3),
		togetherModel("seedream4", "bytedance/seedream-4.0", 0.03, 0, QualityFast, 1, 3, 2, 1, 2),
		togetherModel("seededit", "bytedance/seededit", 0.03, 0, QualityPro, 1, 2, 2, 1, 2),
		{
			Key:                 "gemini-fast",
			Provider:            ProviderGemini,
			Quality:             QualityFast,
			ModelID:             "gemini-2.5-flash-image",
			FlatCost:            map[string]float64{"1K": 0.039},
			NormalizedCostPerMP: 0.039,
			MaxImageSize:        SizeSmall,
			QualityScores: map[StyleHint]int{
				StyleText: 1, StylePhoto: 2, StyleIllustration: 2, StyleInfographic: 1, StyleGeneral: 2,
			},
			RequiresAPIKeyEnv: envKeyGemini,
		},
		togetherModel("flux2-pro", "black-forest-labs/FLUX.2-pro", 0.04, 28, QualityPro, 1, 3, 3, 1, 3),
		togetherModel("flux2-flex", "black-forest-labs/FLUX.2-flex", 0.04, 28, QualityPro, 1, 3, 3, 1, 3),
		togetherModel("flux1-pro", "black-forest-labs/FLUX.1-pro", 0.04, 28, QualityPro, 1, 3, 2, 1, 2),
		togetherModel("flux1-kontext-pro", "black-forest-labs/FLUX.1-Kontext-pro", 0.04, 28, QualityPro, 1, 3, 3, 1, 3),
		togetherModel("imagen4", "google/imagen-4.0-preview", 0.04, 0, QualityPro, 2, 3, 2, 2, 3),
		togetherModel("ideogram3", "ideogram-ai/ideogram-3.0", 0.06, 0, QualityPro, 3, 2, 2, 3, 2),
		togetherModel("imagen4-ultra", "google/imagen-4.0-ultra", 0.06, 0, QualityPro, 2, 3, 3, 2, 3),
		togetherModel("flux1-kontext-max", "black-forest-labs/FLUX.1-Kontext-max", 0.08, 28, QualityPro, 1, 3, 3, 1, 3),
		{
			Key:                 "gemini-pro",
			Provider:            ProviderGemini,
			Quality:             QualityPro,
			ModelID:             "gemini-3-pro-image-preview",
			FlatCost:            map[string]float64{"1K": 0.134, "2K": 0.134, "4K": 0.24},
			TextInputPerImage:   0.0002,
			ReferenceImageCost:  0.00067,
			SearchGroundingCost: 0.035,
			ThinkingOverhead: map[ThinkingLevel]float64{
				ThinkingMinimal: 0,
				ThinkingLow:     0.001,
				ThinkingMedium:  0.003,
				ThinkingHigh:    0.006,
			},
			NormalizedCostPerMP:     0.134,
			MaxImageSize:            SizeXLarge,
			SupportsReferenceImages: true,
			MaxReferenceImages:      14,
			SupportsSearchGrounding: true,
			QualityScores: map[StyleHint]int{
				StyleText: 2, StylePhoto: 3, StyleIllustration: 3, StyleInfographic: 2, StyleGeneral: 3,
			},
			RequiresAPIKeyEnv: envKeyGemini,
		},
		{
			Key:                 "openai-pro",
			Provider:            ProviderOpenAI,
			Quality:             QualityPro,
			ModelID:             "gpt-image-1",
			FlatCost:            map[string]float64{"1024x1024": 0.167, "1536x1024": 0.25, "1024x1536": 0.25},
			TextInputPerImage:   0.0002,
			NormalizedCostPerMP: 0.167,
			MaxImageSize:        SizeLarge,
			QualityScores: map[StyleHint]int{
				StyleText: 3, StylePhoto: 3, StyleIllustration: 3, StyleInfographic: 3, StyleGeneral: 3,
			},
			RequiresAPIKeyEnv: envKeyOpenAI,
		},
	}

	c, err := New(descriptors)
	if err != nil {
		panic(err)
	}
	return c
}
