package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync/atomic"

	"github.com/fogleman/gg"
)

// Surface limits, in line with what browsers allow for a canvas.
const (
	maxSurfaceSide   = 32767
	maxSurfacePixels = 1 << 28
)

// Surface is a finished drawing surface. It is only handed out once every
// draw operation has been applied.
type Surface struct {
	Width      int
	Height     int
	Generation uint64

	dc *gg.Context
}

// Image returns the surface pixels.
func (s *Surface) Image() image.Image {
	return s.dc.Image()
}

// sourceFuture resolves exactly once with the bitmap to draw.
type sourceFuture struct {
	done chan struct{}
	img  image.Image
	err  error
}

func (f *sourceFuture) wait(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.img, f.err
	}
}

// Compositor executes render plans against an off-screen surface. Each call
// to Render starts a new generation; an attempt that completes after a newer
// one has started returns ErrSuperseded instead of a surface.
type Compositor struct {
	generation atomic.Uint64

	// resolve produces the bitmap for an asset under a plan.
	resolve func(asset *DecodedAsset, plan *RenderPlan) (image.Image, error)
}

// NewCompositor returns a compositor with no render in flight.
func NewCompositor() *Compositor {
	return &Compositor{resolve: resolveSource}
}

// Generation returns the generation of the most recently started render.
func (c *Compositor) Generation() uint64 {
	return c.generation.Load()
}

// Render waits for the asset's pixels to be ready, then fills, clips and
// draws it according to plan.
func (c *Compositor) Render(ctx context.Context, asset *DecodedAsset, plan *RenderPlan) (*Surface, error) {
	gen := c.generation.Add(1)

	if asset == nil || plan == nil {
		return nil, validationErrorf("file", "no image loaded")
	}
	w, h := plan.SurfaceSize()
	if w <= 0 || h <= 0 {
		return nil, &SurfaceError{Width: w, Height: h, Err: errors.New("zero-area canvas")}
	}
	if w > maxSurfaceSide || h > maxSurfaceSide || w*h > maxSurfacePixels {
		return nil, &SurfaceError{Width: w, Height: h, Err: fmt.Errorf("exceeds the %d px side or %d px area limit", maxSurfaceSide, maxSurfacePixels)}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := c.load(asset, plan).wait(ctx)
	if err != nil {
		return nil, err
	}
	if c.generation.Load() != gen {
		return nil, ErrSuperseded
	}

	dc := gg.NewContext(w, h)
	if plan.Fill != nil {
		dc.SetColor(plan.Fill)
		dc.DrawRectangle(0, 0, plan.CanvasWidth, plan.CanvasHeight)
		dc.Fill()
	}
	if len(plan.Clip) > 0 {
		tracePath(dc, plan.Clip)
		dc.Clip()
	}
	dc.Translate(plan.OffsetX, plan.OffsetY)
	dc.DrawImage(src, 0, 0)

	if c.generation.Load() != gen {
		return nil, ErrSuperseded
	}
	return &Surface{Width: w, Height: h, Generation: gen, dc: dc}, nil
}

func (c *Compositor) load(asset *DecodedAsset, plan *RenderPlan) *sourceFuture {
	f := &sourceFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.img, f.err = nil, fmt.Errorf("rasterizing %q panicked: %v", asset.Name, r)
			}
		}()
		f.img, f.err = c.resolve(asset, plan)
	}()
	return f
}

func resolveSource(asset *DecodedAsset, plan *RenderPlan) (image.Image, error) {
	if asset.Kind == AssetRaster {
		return asset.bitmap, nil
	}

	doc := plan.document
	if doc == nil {
		doc = asset.document
	}
	w := int(math.Round(plan.DrawWidth))
	h := int(math.Round(plan.DrawHeight))
	if w <= 0 || h <= 0 {
		return nil, &SurfaceError{Width: w, Height: h, Err: errors.New("zero-area vector target")}
	}
	return rasterizeVector(doc, w, h)
}

func tracePath(dc *gg.Context, path ClipPath) {
	for _, seg := range path {
		switch seg.Op {
		case PathMoveTo:
			dc.MoveTo(seg.To.X, seg.To.Y)
		case PathLineTo:
			dc.LineTo(seg.To.X, seg.To.Y)
		case PathQuadTo:
			dc.QuadraticTo(seg.Ctrl.X, seg.Ctrl.Y, seg.To.X, seg.To.Y)
		case PathClose:
			dc.ClosePath()
		}
	}
}
