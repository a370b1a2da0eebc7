package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Size assumed for a vector document whose width or height is missing or not
// a number, matching the default replaced-element size of HTML.
const (
	fallbackVectorWidth  = 300
	fallbackVectorHeight = 150
)

func loadVector(name string, data []byte) (*DecodedAsset, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &ParseError{Name: name, Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &ParseError{Name: name, Err: errors.New("document has no root element")}
	}
	if root.Tag != "svg" {
		return nil, &ParseError{Name: name, Err: fmt.Errorf("root element is <%s>, want <svg>", root.Tag)}
	}

	return &DecodedAsset{
		Kind:      AssetVector,
		Width:     parseDimension(root.SelectAttrValue("width", ""), fallbackVectorWidth),
		Height:    parseDimension(root.SelectAttrValue("height", ""), fallbackVectorHeight),
		Name:      name,
		MediaType: mediaTypeSVG,
		document:  doc,
	}, nil
}

// parseDimension reads the leading integer of a length attribute, so "100px",
// "+100" and "100.7" all yield 100. Anything without a positive leading
// integer falls back.
func parseDimension(value string, fallback int) int {
	value = strings.TrimPrefix(strings.TrimSpace(value), "+")
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == 0 {
		return fallback
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// scaleDocument returns a copy of doc whose root width and height attributes
// are rewritten to the scaled size. A document without a viewBox gets one
// spanning its original size so the content scales along with the viewport.
func scaleDocument(doc *etree.Document, width, height int, factor float64) *etree.Document {
	scaled := doc.Copy()
	root := scaled.Root()
	if root.SelectAttr("viewBox") == nil {
		root.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", width, height))
	}
	root.CreateAttr("width", formatNumber(float64(width)*factor))
	root.CreateAttr("height", formatNumber(float64(height)*factor))
	return scaled
}

// rasterizeVector renders doc into a new w x h RGBA image. The viewBox is
// fitted into the image according to the root's preserveAspectRatio, which
// defaults to centring it at a uniform scale ("xMidYMid meet").
func rasterizeVector(doc *etree.Document, w, h int) (image.Image, error) {
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize vector document: %w", err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector document: %w", err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = float64(w), float64(h)
	}

	var aspect string
	if root := doc.Root(); root != nil {
		aspect = root.SelectAttrValue("preserveAspectRatio", "")
	}
	vb := viewBox{X: icon.ViewBox.X, Y: icon.ViewBox.Y, W: icon.ViewBox.W, H: icon.ViewBox.H}
	icon.Transform = viewportTransform(vb, float64(w), float64(h), aspect)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	return img, nil
}

type viewBox struct {
	X, Y, W, H float64
}

// viewportTransform maps user space onto a w x h viewport: the viewBox
// origin moves to 0,0 first, then the box is scaled and aligned.
func viewportTransform(vb viewBox, w, h float64, preserveAspectRatio string) rasterx.Matrix2D {
	sx, sy := w/vb.W, h/vb.H
	var tx, ty float64

	fields := strings.Fields(preserveAspectRatio)
	align, mode := "xMidYMid", "meet"
	if len(fields) > 0 {
		align = fields[0]
	}
	if len(fields) > 1 {
		mode = fields[1]
	}

	if align != "none" {
		s := math.Min(sx, sy)
		if mode == "slice" {
			s = math.Max(sx, sy)
		}
		sx, sy = s, s
		tx = alignFactor(align, "xMin", "xMax") * (w - vb.W*s)
		ty = alignFactor(align, "YMin", "YMax") * (h - vb.H*s)
	}

	return rasterx.Identity.Translate(tx, ty).Scale(sx, sy).Translate(-vb.X, -vb.Y)
}

// alignFactor is 0 for a Min alignment, 1 for Max and 0.5 otherwise.
func alignFactor(align, minKey, maxKey string) float64 {
	switch {
	case strings.Contains(align, minKey):
		return 0
	case strings.Contains(align, maxKey):
		return 1
	}
	return 0.5
}
