package imageconv_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeeperFrog/peeperfrog-create/internal/imageconv"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestToWebP_ConvertsPNG(t *testing.T) {
	out, err := imageconv.ToWebP(pngBytes(t), 85)
	require.NoError(t, err)
	assert.True(t, imageconv.IsWebP(out))
}

func TestToWebP_WebPPassthrough(t *testing.T) {
	first, err := imageconv.ToWebP(pngBytes(t), 85)
	require.NoError(t, err)

	second, err := imageconv.ToWebP(first, 40)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestToWebP_QualityRange(t *testing.T) {
	data := pngBytes(t)

	_, err := imageconv.ToWebP(data, -1)
	assert.Error(t, err)
	_, err = imageconv.ToWebP(data, 101)
	assert.Error(t, err)
}

func TestToWebP_GarbageInput(t *testing.T) {
	_, err := imageconv.ToWebP([]byte("definitely not an image"), 85)
	assert.Error(t, err)
}

func TestIsWebP(t *testing.T) {
	assert.True(t, imageconv.IsWebP([]byte("RIFF....WEBPVP8 ")))
	assert.False(t, imageconv.IsWebP([]byte("RIFF....WAVE")))
	assert.False(t, imageconv.IsWebP([]byte("short")))
	assert.False(t, imageconv.IsWebP(pngBytes(t)))
}
