// Package selector resolves a generation request to exactly one catalog
// model. Requests carry one of three selection modes; auto mode filters and
// ranks the whole catalog by cost tier and style preference.
package selector

import (
	"fmt"
	"sort"

	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
)

// Mode is the selection strategy for a request. Exactly one mode applies;
// precedence between conflicting inputs is settled before a Mode is built
// (see ModeFrom), so Resolve never has to arbitrate.
type Mode interface {
	mode()
}

// ExplicitModel names a catalog model directly. The provider is inferred
// from the key; quality tier and auto mode inputs are ignored entirely.
type ExplicitModel struct {
	Key string
}

// ExplicitProviderTier names a provider and its quality tier.
type ExplicitProviderTier struct {
	Provider catalog.Provider
	Quality  catalog.QualityTier
}

// Auto picks a model by cost tier and style hint.
type Auto struct {
	Tier  catalog.CostTier
	Style catalog.StyleHint
}

func (ExplicitModel) mode()        {}
func (ExplicitProviderTier) mode() {}
func (Auto) mode()                 {}

// ModeFrom builds a Mode from loosely-typed request fields, applying the
// fixed precedence: explicit model key, then explicit provider/quality, then
// auto mode. Unset fields are empty strings.
func ModeFrom(modelKey string, provider, quality string, autoTier, styleHint string) Mode {
	if modelKey != "" {
		return ExplicitModel{Key: modelKey}
	}
	if provider != "" || quality != "" {
		p := catalog.Provider(provider)
		if provider == "" {
			p = catalog.DefaultProvider
		}
		q := catalog.QualityTier(quality)
		if q != catalog.QualityPro && q != catalog.QualityFast {
			q = catalog.QualityPro
		}
		return ExplicitProviderTier{Provider: p, Quality: q}
	}
	if autoTier != "" {
		return Auto{Tier: catalog.CostTier(autoTier), Style: catalog.StyleHint(styleHint)}
	}
	return ExplicitProviderTier{Provider: catalog.DefaultProvider, Quality: catalog.QualityPro}
}

// Constraints are the hard requirements a candidate model must satisfy.
type Constraints struct {
	ImageSize       catalog.ImageSize
	ReferenceImages int
	SearchGrounding bool
}

// Filter stages, reported by NoEligibleModelError so the caller knows which
// constraint to relax.
const (
	StageCapability  = "capability"
	StageReferences  = "reference images"
	StageGrounding   = "search grounding"
	StageCredentials = "credentials"
	StageCostCeiling = "cost ceiling"
)

// NoEligibleModelError means auto-mode filtering eliminated every candidate.
// Stage names the filter that removed the last ones.
type NoEligibleModelError struct {
	Tier        catalog.CostTier
	Stage       string
	Constraints Constraints
}

func (e *NoEligibleModelError) Error() string {
	return fmt.Sprintf(
		"no model satisfies auto mode %q: eliminated by the %s filter (size=%s, references=%d, grounding=%t)",
		e.Tier, e.Stage, e.Constraints.ImageSize, e.Constraints.ReferenceImages, e.Constraints.SearchGrounding,
	)
}

// Selector resolves modes against a catalog and the available credentials.
type Selector struct {
	cat   *catalog.Catalog
	creds catalog.CredentialChecker
}

func New(cat *catalog.Catalog, creds catalog.CredentialChecker) *Selector {
	return &Selector{cat: cat, creds: creds}
}

// Resolve maps a selection mode to a single model, validating the hard
// constraints against the chosen model's capabilities.
func (s *Selector) Resolve(m Mode, c Constraints) (catalog.ModelDescriptor, error) {
	switch mode := m.(type) {
	case ExplicitModel:
		model, err := s.cat.Model(mode.Key)
		if err != nil {
			return catalog.ModelDescriptor{}, err
		}
		return s.validateExplicit(model, c)
	case ExplicitProviderTier:
		model, err := s.cat.DefaultModel(mode.Provider, mode.Quality)
		if err != nil {
			return catalog.ModelDescriptor{}, err
		}
		return s.validateExplicit(model, c)
	case Auto:
		return s.selectAuto(mode.Tier, mode.Style, c)
	default:
		return catalog.ModelDescriptor{}, &catalog.ConfigurationError{Reason: fmt.Sprintf("unsupported selection mode %T", m)}
	}
}

// validateExplicit enforces constraints for an explicitly chosen model. The
// selector never substitutes another model here; the caller asked for this
// one and gets a hard error instead of a silent downgrade.
func (s *Selector) validateExplicit(model catalog.ModelDescriptor, c Constraints) (catalog.ModelDescriptor, error) {
	if c.ImageSize != "" && c.ImageSize.Ordinal() > model.MaxImageSize.Ordinal() {
		return catalog.ModelDescriptor{}, &catalog.CapabilityError{
			Model:  model.Key,
			Reason: fmt.Sprintf("image size %q exceeds the model's maximum %q", c.ImageSize, model.MaxImageSize),
		}
	}
	if c.ReferenceImages > 0 {
		if !model.SupportsReferenceImages {
			return catalog.ModelDescriptor{}, &catalog.CapabilityError{
				Model:  model.Key,
				Reason: "reference images are not supported",
			}
		}
		if c.ReferenceImages > model.MaxReferenceImages {
			return catalog.ModelDescriptor{}, &catalog.CapabilityError{
				Model:  model.Key,
				Reason: fmt.Sprintf("too many reference images (%d, maximum is %d)", c.ReferenceImages, model.MaxReferenceImages),
			}
		}
	}
	if c.SearchGrounding && !model.SupportsSearchGrounding {
		return catalog.ModelDescriptor{}, &catalog.CapabilityError{
			Model:  model.Key,
			Reason: "search grounding is not supported",
		}
	}
	if !s.creds(model.RequiresAPIKeyEnv) {
		return catalog.ModelDescriptor{}, &catalog.ConfigurationError{
			Reason: fmt.Sprintf("model %q requires %s which is not set", model.Key, model.RequiresAPIKeyEnv),
		}
	}
	return model, nil
}

// selectAuto runs the strictly ordered filter pipeline and ranks the
// survivors: highest style score first, cheapest among equals, key order as
// the final deterministic tie-break.
func (s *Selector) selectAuto(tier catalog.CostTier, style catalog.StyleHint, c Constraints) (catalog.ModelDescriptor, error) {
	ceiling, err := catalog.TierCeiling(tier)
	if err != nil {
		return catalog.ModelDescriptor{}, err
	}

	size := c.ImageSize
	if size == "" {
		size = catalog.SizeLarge
	}

	candidates := s.cat.Models()
	fail := func(stage string) error {
		return &NoEligibleModelError{Tier: tier, Stage: stage, Constraints: c}
	}

	candidates = keep(candidates, func(m catalog.ModelDescriptor) bool {
		return m.MaxImageSize.Ordinal() >= size.Ordinal()
	})
	if len(candidates) == 0 {
		return catalog.ModelDescriptor{}, fail(StageCapability)
	}

	if c.ReferenceImages > 0 {
		candidates = keep(candidates, func(m catalog.ModelDescriptor) bool {
			return m.SupportsReferenceImages && m.MaxReferenceImages >= c.ReferenceImages
		})
		if len(candidates) == 0 {
			return catalog.ModelDescriptor{}, fail(StageReferences)
		}
	}

	if c.SearchGrounding {
		candidates = keep(candidates, func(m catalog.ModelDescriptor) bool {
			return m.SupportsSearchGrounding
		})
		if len(candidates) == 0 {
			return catalog.ModelDescriptor{}, fail(StageGrounding)
		}
	}

	candidates = keep(candidates, func(m catalog.ModelDescriptor) bool {
		return s.creds(m.RequiresAPIKeyEnv)
	})
	if len(candidates) == 0 {
		return catalog.ModelDescriptor{}, fail(StageCredentials)
	}

	candidates = keep(candidates, func(m catalog.ModelDescriptor) bool {
		return m.NormalizedCostPerMP <= ceiling
	})
	if len(candidates) == 0 {
		return catalog.ModelDescriptor{}, fail(StageCostCeiling)
	}

	hint := style.Normalize()
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score(hint) != candidates[j].Score(hint) {
			return candidates[i].Score(hint) > candidates[j].Score(hint)
		}
		if candidates[i].NormalizedCostPerMP != candidates[j].NormalizedCostPerMP {
			return candidates[i].NormalizedCostPerMP < candidates[j].NormalizedCostPerMP
		}
		return candidates[i].Key < candidates[j].Key
	})

	return candidates[0], nil
}

func keep(models []catalog.ModelDescriptor, pred func(catalog.ModelDescriptor) bool) []catalog.ModelDescriptor {
	out := models[:0]
	for _, m := range models {
		if pred(m) {
			out = append(out, m)
		}
	}
	return out
}
