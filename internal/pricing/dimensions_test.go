package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PeeperFrog/peeperfrog-create/internal/catalog"
	"github.com/PeeperFrog/peeperfrog-create/internal/pricing"
)

func TestDimensions(t *testing.T) {
	tests := []struct {
		name        string
		aspectRatio string
		size        catalog.ImageSize
		wantW       int
		wantH       int
	}{
		{"square large", "1:1", catalog.SizeLarge, 1024, 1024},
		{"square small", "1:1", catalog.SizeSmall, 512, 512},
		{"square xlarge", "1:1", catalog.SizeXLarge, 2048, 2048},
		{"landscape 16:9", "16:9", catalog.SizeLarge, 1024, 576},
		{"portrait 9:16", "9:16", catalog.SizeMedium, 576, 1024},
		{"landscape 3:2", "3:2", catalog.SizeLarge, 1024, 680},
		{"malformed falls back to square", "not-a-ratio", catalog.SizeLarge, 1024, 1024},
		{"zero component falls back to square", "0:9", catalog.SizeLarge, 1024, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := pricing.Dimensions(tt.aspectRatio, tt.size)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestDimensions_MultiplesOfEight(t *testing.T) {
	for _, ratio := range []string{"1:1", "16:9", "21:9", "4:5", "2.35:1", "7:13"} {
		for _, size := range []catalog.ImageSize{catalog.SizeSmall, catalog.SizeMedium, catalog.SizeLarge, catalog.SizeXLarge} {
			w, h := pricing.Dimensions(ratio, size)
			assert.Zero(t, w%8, "width for %s %s", ratio, size)
			assert.Zero(t, h%8, "height for %s %s", ratio, size)
			assert.GreaterOrEqual(t, w, 64)
			assert.GreaterOrEqual(t, h, 64)
		}
	}
}

func TestClosestOpenAISize(t *testing.T) {
	assert.Equal(t, "1024x1024", pricing.ClosestOpenAISize("1:1"))
	assert.Equal(t, "1536x1024", pricing.ClosestOpenAISize("16:9"))
	assert.Equal(t, "1536x1024", pricing.ClosestOpenAISize("3:2"))
	assert.Equal(t, "1024x1536", pricing.ClosestOpenAISize("3:4"))
	assert.Equal(t, "1024x1536", pricing.ClosestOpenAISize("9:16"))
}

func TestImagen4Resolution(t *testing.T) {
	w, h := pricing.Imagen4Resolution("1:1", catalog.SizeLarge)
	assert.Equal(t, [2]int{1024, 1024}, [2]int{w, h})

	w, h = pricing.Imagen4Resolution("1:1", catalog.SizeXLarge)
	assert.Equal(t, [2]int{2048, 2048}, [2]int{w, h})

	w, h = pricing.Imagen4Resolution("16:9", catalog.SizeLarge)
	assert.Greater(t, w, h)
}

func TestGeminiSizeLabel(t *testing.T) {
	// The fast model only renders 1K regardless of the requested tier.
	assert.Equal(t, "1K", pricing.GeminiSizeLabel(catalog.SizeXLarge, catalog.QualityFast))

	assert.Equal(t, "1K", pricing.GeminiSizeLabel(catalog.SizeSmall, catalog.QualityPro))
	assert.Equal(t, "2K", pricing.GeminiSizeLabel(catalog.SizeMedium, catalog.QualityPro))
	assert.Equal(t, "2K", pricing.GeminiSizeLabel(catalog.SizeLarge, catalog.QualityPro))
	assert.Equal(t, "4K", pricing.GeminiSizeLabel(catalog.SizeXLarge, catalog.QualityPro))
}
