package imaging

import (
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Tool identifies one of the image transforms.
type Tool string

const (
	ToolRounded Tool = "rounded"
	ToolSquare  Tool = "square"
	ToolScale   Tool = "scale"
)

// ParseTool maps a tool name (as used in URLs and CLI flags) to a Tool.
func ParseTool(name string) (Tool, error) {
	switch Tool(strings.ToLower(strings.TrimSpace(name))) {
	case ToolRounded:
		return ToolRounded, nil
	case ToolSquare:
		return ToolSquare, nil
	case ToolScale:
		return ToolScale, nil
	}
	return "", validationErrorf("tool", "unknown tool %q", name)
}

// Background is the fill placed behind the source image.
type Background string

const (
	BackgroundWhite       Background = "white"
	BackgroundBlack       Background = "black"
	BackgroundTransparent Background = "transparent"
)

// Color returns the fill color, or nil for a transparent background (no fill pass).
func (b Background) Color() color.Color {
	switch b {
	case BackgroundWhite:
		return color.White
	case BackgroundBlack:
		return color.Black
	}
	return nil
}

// Preset values offered by the tools.
var (
	RadiusPresets = []int{2, 4, 8, 16, 32, 64}
	ScaleSteps    = []float64{1, 2, 4, 8, 16, 32, 64}
)

// Params is one tool's transform parameters.
type Params interface {
	Tool() Tool
	Validate() error
}

// RoundedParams configures the corner rounding tool. Any non-negative radius
// is accepted, including radii larger than half the image.
type RoundedParams struct {
	Radius     int
	Background Background
}

func (RoundedParams) Tool() Tool { return ToolRounded }

func (p RoundedParams) Validate() error {
	if p.Radius < 0 {
		return validationErrorf("radius", "must be >= 0, got %d", p.Radius)
	}
	switch p.Background {
	case BackgroundWhite, BackgroundBlack, BackgroundTransparent:
		return nil
	}
	return validationErrorf("background", "must be white, black or transparent, got %q", p.Background)
}

// SquareParams configures the square canvas tool.
type SquareParams struct {
	Background Background
}

func (SquareParams) Tool() Tool { return ToolSquare }

func (p SquareParams) Validate() error {
	switch p.Background {
	case BackgroundWhite, BackgroundBlack:
		return nil
	}
	return validationErrorf("background", "must be white or black, got %q", p.Background)
}

// ScaleParams configures the vector rescale tool.
type ScaleParams struct {
	Factor float64
}

func (ScaleParams) Tool() Tool { return ToolScale }

func (p ScaleParams) Validate() error {
	if math.IsNaN(p.Factor) || math.IsInf(p.Factor, 0) || p.Factor <= 0 {
		return validationErrorf("scale", "must be a positive number, got %v", p.Factor)
	}
	return nil
}

// FormatFactor renders a scale factor the way it appears in filenames: the
// shortest decimal form, so 4 becomes "4" and 1.5 becomes "1.5".
func FormatFactor(f float64) string {
	return formatNumber(f)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
