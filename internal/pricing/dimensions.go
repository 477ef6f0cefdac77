package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
)

// sizeBases is the pixel count of the longest side per size tier.
var sizeBases = map[catalog.ImageSize]int{
	catalog.SizeSmall:  512,
	catalog.SizeMedium: 1024,
	catalog.SizeLarge:  1024,
	catalog.SizeXLarge: 2048,
}

// openAISizes are the only resolutions gpt-image-1 accepts.
var openAISizes = []struct {
	Label string
	Ratio float64
}{
	{"1024x1024", 1.0},
	{"1536x1024", 1.5},
	{"1024x1536", 0.667},
}

// imagen4Resolutions are the fixed output resolutions of the Imagen 4 family.
var imagen4Resolutions = [][2]int{
	{1024, 1024},
	{2048, 2048},
	{768, 1408},
	{1536, 2816},
	{1408, 768},
	{2816, 1536},
	{896, 1280},
	{1792, 2560},
	{1280, 896},
	{2560, 1792},
}

// ParseAspectRatio parses "W:H" (e.g. "16:9", "2.35:1") into width and height
// ratio components. Malformed input falls back to square.
func ParseAspectRatio(aspectRatio string) (float64, float64) {
	if !strings.Contains(aspectRatio, ":") {
		return 1, 1
	}
	parts := strings.SplitN(aspectRatio, ":", 2)
	w, errW := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 1, 1
	}
	return w, h
}

// Dimensions computes concrete pixel dimensions for an aspect ratio and size
// tier. The longest side is set by the tier base and both sides are rounded
// down to multiples of 8, which most diffusion backends require.
func Dimensions(aspectRatio string, size catalog.ImageSize) (int, int) {
	base, ok := sizeBases[size]
	if !ok {
		base = 1024
	}

	wr, hr := ParseAspectRatio(aspectRatio)

	var width, height int
	if wr >= hr {
		width = base
		height = int(math.Round(float64(base) * hr / wr))
	} else {
		height = base
		width = int(math.Round(float64(base) * wr / hr))
	}

	width = max(64, (width/8)*8)
	height = max(64, (height/8)*8)
	return width, height
}

// ClosestOpenAISize picks the supported gpt-image-1 resolution whose aspect
// ratio is nearest to the requested one.
func ClosestOpenAISize(aspectRatio string) string {
	wr, hr := ParseAspectRatio(aspectRatio)
	target := wr / hr

	best := openAISizes[0].Label
	bestDiff := math.Inf(1)
	for _, s := range openAISizes {
		diff := math.Abs(target - s.Ratio)
		if diff < bestDiff {
			bestDiff = diff
			best = s.Label
		}
	}
	return best
}

// Imagen4Resolution snaps the requested aspect ratio and size tier to the
// closest fixed Imagen 4 resolution, scoring by ratio distance plus a size
// preference penalty.
func Imagen4Resolution(aspectRatio string, size catalog.ImageSize) (int, int) {
	wr, hr := ParseAspectRatio(aspectRatio)
	target := wr / hr

	bestW, bestH := imagen4Resolutions[0][0], imagen4Resolutions[0][1]
	bestScore := math.Inf(1)
	for _, res := range imagen4Resolutions {
		w, h := res[0], res[1]
		ratioDiff := math.Abs(float64(w)/float64(h) - target)
		mp := float64(w*h) / 1_000_000

		var sizePenalty float64
		switch size {
		case catalog.SizeXLarge:
			if mp < 3.0 {
				sizePenalty = 0.8
			}
		case catalog.SizeLarge:
			if mp < 0.8 || mp > 2.0 {
				sizePenalty = 0.3
			}
		default:
			if mp > 1.5 {
				sizePenalty = 0.5
			}
		}

		if score := ratioDiff + sizePenalty; score < bestScore {
			bestScore = score
			bestW, bestH = w, h
		}
	}
	return bestW, bestH
}

// GeminiSizeLabel maps a size tier to Gemini's resolution labels. The fast
// model only renders 1K.
func GeminiSizeLabel(size catalog.ImageSize, quality catalog.QualityTier) string {
	if quality == catalog.QualityFast {
		return "1K"
	}
	switch size {
	case catalog.SizeSmall:
		return "1K"
	case catalog.SizeXLarge:
		return "4K"
	default:
		return "2K"
	}
}
