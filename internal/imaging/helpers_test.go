package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

var red = color.NRGBA{R: 255, A: 255}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func loadPNG(t *testing.T, tool Tool, name string, w, h int) *DecodedAsset {
	t.Helper()
	asset, err := Load(tool, name, "image/png", solidPNG(t, w, h, red))
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", name, err)
	}
	return asset
}

func loadSVG(t *testing.T, tool Tool, name, markup string) *DecodedAsset {
	t.Helper()
	asset, err := Load(tool, name, "image/svg+xml", []byte(markup))
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", name, err)
	}
	return asset
}

func rgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

const redRectSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">` +
	`<rect x="0" y="0" width="100" height="50" fill="#ff0000"/></svg>`
