package imaging

import (
	"image/color"
	"math"

	"github.com/beevik/etree"
)

// Point is a position on the drawing surface. Coordinates are never rounded
// before they reach the rasterizer.
type Point struct {
	X, Y float64
}

// PathOp is a single path-building instruction.
type PathOp int

const (
	PathMoveTo PathOp = iota
	PathLineTo
	PathQuadTo
	PathClose
)

// PathSegment is one instruction of a clip path. Ctrl is only meaningful for
// PathQuadTo; To is unused by PathClose.
type PathSegment struct {
	Op   PathOp
	Ctrl Point
	To   Point
}

// ClipPath is an ordered list of path instructions.
type ClipPath []PathSegment

// Closed reports whether the path starts with a move, ends with a close and
// its last drawn point returns to the starting point.
func (p ClipPath) Closed() bool {
	if len(p) < 2 || p[0].Op != PathMoveTo || p[len(p)-1].Op != PathClose {
		return false
	}
	return p[len(p)-2].To == p[0].To
}

// RenderPlan holds everything the compositor needs to produce one output:
// the canvas size, the optional background fill and clip, and where and how
// large the source is drawn. A nil Fill means no background pass.
type RenderPlan struct {
	Tool         Tool
	CanvasWidth  float64
	CanvasHeight float64
	Fill         color.Color
	Clip         ClipPath
	OffsetX      float64
	OffsetY      float64
	DrawWidth    float64
	DrawHeight   float64

	document *etree.Document
}

// SurfaceSize is the integer pixel size of the surface the plan draws onto.
func (p *RenderPlan) SurfaceSize() (int, int) {
	return int(math.Round(p.CanvasWidth)), int(math.Round(p.CanvasHeight))
}

// Document returns the rewritten vector document a scale plan rasterizes, or
// nil for other plans.
func (p *RenderPlan) Document() *etree.Document {
	return p.document
}

// Plan computes the canvas geometry and drawing instructions for placing the
// asset under the given parameters. It has no side effects.
func Plan(asset *DecodedAsset, params Params) (*RenderPlan, error) {
	if asset == nil {
		return nil, validationErrorf("file", "no image loaded")
	}
	if params == nil {
		return nil, validationErrorf("params", "missing")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	switch p := params.(type) {
	case RoundedParams:
		return planRounded(asset, p), nil
	case SquareParams:
		return planSquare(asset, p), nil
	case ScaleParams:
		if asset.Kind != AssetVector {
			return nil, validationErrorf("file", "the scale tool only accepts vector images")
		}
		return planScale(asset, p), nil
	}
	return nil, validationErrorf("params", "unsupported parameters %T", params)
}

func planRounded(asset *DecodedAsset, p RoundedParams) *RenderPlan {
	w, h := float64(asset.Width), float64(asset.Height)
	return &RenderPlan{
		Tool:         ToolRounded,
		CanvasWidth:  w,
		CanvasHeight: h,
		Fill:         p.Background.Color(),
		Clip:         roundedRectPath(w, h, float64(p.Radius)),
		DrawWidth:    w,
		DrawHeight:   h,
	}
}

// roundedRectPath follows the rectangle boundary clockwise from (r,0),
// replacing each corner with a quadratic curve whose control point is the
// corner itself. Radii over half the side produce a self-intersecting path.
func roundedRectPath(w, h, r float64) ClipPath {
	return ClipPath{
		{Op: PathMoveTo, To: Point{r, 0}},
		{Op: PathLineTo, To: Point{w - r, 0}},
		{Op: PathQuadTo, Ctrl: Point{w, 0}, To: Point{w, r}},
		{Op: PathLineTo, To: Point{w, h - r}},
		{Op: PathQuadTo, Ctrl: Point{w, h}, To: Point{w - r, h}},
		{Op: PathLineTo, To: Point{r, h}},
		{Op: PathQuadTo, Ctrl: Point{0, h}, To: Point{0, h - r}},
		{Op: PathLineTo, To: Point{0, r}},
		{Op: PathQuadTo, Ctrl: Point{0, 0}, To: Point{r, 0}},
		{Op: PathClose},
	}
}

func planSquare(asset *DecodedAsset, p SquareParams) *RenderPlan {
	w, h := float64(asset.Width), float64(asset.Height)
	side := math.Max(w, h)
	return &RenderPlan{
		Tool:         ToolSquare,
		CanvasWidth:  side,
		CanvasHeight: side,
		Fill:         p.Background.Color(),
		OffsetX:      (side - w) / 2,
		OffsetY:      (side - h) / 2,
		DrawWidth:    w,
		DrawHeight:   h,
	}
}

func planScale(asset *DecodedAsset, p ScaleParams) *RenderPlan {
	w := float64(asset.Width) * p.Factor
	h := float64(asset.Height) * p.Factor
	return &RenderPlan{
		Tool:         ToolScale,
		CanvasWidth:  w,
		CanvasHeight: h,
		DrawWidth:    w,
		DrawHeight:   h,
		document:     scaleDocument(asset.document, asset.Width, asset.Height, p.Factor),
	}
}
