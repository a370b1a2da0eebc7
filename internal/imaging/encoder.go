package imaging

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// RenderedOutput is a fully drawn and encoded result. It is replaced
// wholesale whenever the asset or parameters change.
type RenderedOutput struct {
	Width      int
	Height     int
	PNG        []byte
	Generation uint64

	surface *Surface
}

// Surface returns the surface the output was encoded from.
func (o *RenderedOutput) Surface() *Surface {
	return o.surface
}

// Encode serializes a finished surface to PNG with default compression.
func Encode(s *Surface) (*RenderedOutput, error) {
	if s == nil || s.dc == nil {
		return nil, &SurfaceError{Err: fmt.Errorf("no surface to encode")}
	}
	var buf bytes.Buffer
	if err := s.dc.EncodePNG(&buf); err != nil {
		return nil, &SurfaceError{Width: s.Width, Height: s.Height, Err: err}
	}
	return &RenderedOutput{
		Width:      s.Width,
		Height:     s.Height,
		PNG:        buf.Bytes(),
		Generation: s.Generation,
		surface:    s,
	}, nil
}

// ExportFilename derives the download name from the uploaded file name: the
// extension is dropped, a tool-specific suffix is appended and the result
// always ends in .png.
func ExportFilename(assetName string, params Params) string {
	base := strings.TrimSuffix(filepath.Base(assetName), filepath.Ext(assetName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}

	switch p := params.(type) {
	case SquareParams:
		return base + "-squared.png"
	case ScaleParams:
		return base + "-" + FormatFactor(p.Factor) + "x.png"
	}
	return base + ".png"
}

// Preview returns the output as PNG, downscaled to maxWidth when it is wider.
// The full-size bytes are returned unchanged otherwise.
func Preview(out *RenderedOutput, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 || out.Width <= maxWidth || out.surface == nil {
		return out.PNG, nil
	}
	thumb := imaging.Resize(out.surface.Image(), maxWidth, 0, imaging.CatmullRom)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
