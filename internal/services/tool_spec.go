package services

import (
	"fmt"

	"github.com/codyseavey/imgtools/internal/imaging"
	"github.com/codyseavey/imgtools/internal/models"
)

// ToolSpec describes one tool of the shared upload, preview and export
// pipeline: what it accepts, its defaults and the export event it emits.
type ToolSpec struct {
	Tool        imaging.Tool
	Title       string
	Description string
	EventName   string
	Defaults    models.ToolPreferences
}

var toolSpecs = []ToolSpec{
	{
		Tool:        imaging.ToolRounded,
		Title:       "Corner Rounder",
		Description: "Add rounded corners to your images. Quick and easy.",
		EventName:   "convert-image-to-png",
		Defaults: models.ToolPreferences{
			Tool:       string(imaging.ToolRounded),
			Radius:     2,
			Background: string(imaging.BackgroundTransparent),
		},
	},
	{
		Tool:        imaging.ToolSquare,
		Title:       "Square Image Generator",
		Description: "Create square images with custom backgrounds. Fast and free.",
		EventName:   "create-square-image",
		Defaults: models.ToolPreferences{
			Tool:       string(imaging.ToolSquare),
			Background: string(imaging.BackgroundWhite),
		},
	},
	{
		Tool:        imaging.ToolScale,
		Title:       "SVG to PNG Converter",
		Description: "Convert SVG files to PNG format. Fast and free.",
		EventName:   "convert-svg-to-png",
		Defaults: models.ToolPreferences{
			Tool:        string(imaging.ToolScale),
			Scale:       1,
			CustomScale: 1,
		},
	},
}

// Tools returns every tool in catalogue order.
func Tools() []ToolSpec {
	return toolSpecs
}

// LookupTool finds a tool by name.
func LookupTool(name string) (ToolSpec, error) {
	tool, err := imaging.ParseTool(name)
	if err != nil {
		return ToolSpec{}, err
	}
	for _, spec := range toolSpecs {
		if spec.Tool == tool {
			return spec, nil
		}
	}
	return ToolSpec{}, fmt.Errorf("tool %s is not registered", tool)
}

// AcceptedTypes lists the upload media types the tool accepts.
func (s ToolSpec) AcceptedTypes() []string {
	return imaging.AcceptedMediaTypes(s.Tool)
}

// Params converts stored preferences into validated transform parameters.
func (s ToolSpec) Params(prefs models.ToolPreferences) (imaging.Params, error) {
	var params imaging.Params
	switch s.Tool {
	case imaging.ToolRounded:
		params = imaging.RoundedParams{Radius: prefs.Radius, Background: imaging.Background(prefs.Background)}
	case imaging.ToolSquare:
		params = imaging.SquareParams{Background: imaging.Background(prefs.Background)}
	case imaging.ToolScale:
		factor := prefs.Scale
		if prefs.UseCustomScale {
			factor = prefs.CustomScale
		}
		params = imaging.ScaleParams{Factor: factor}
	default:
		return nil, fmt.Errorf("tool %s has no parameters", s.Tool)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Info is the catalogue entry for the tool.
func (s ToolSpec) Info() models.ToolInfo {
	info := models.ToolInfo{
		Tool:          string(s.Tool),
		Title:         s.Title,
		Description:   s.Description,
		AcceptedTypes: s.AcceptedTypes(),
	}
	switch s.Tool {
	case imaging.ToolRounded:
		info.RadiusPresets = imaging.RadiusPresets
		info.Backgrounds = []string{string(imaging.BackgroundWhite), string(imaging.BackgroundBlack), string(imaging.BackgroundTransparent)}
	case imaging.ToolSquare:
		info.Backgrounds = []string{string(imaging.BackgroundWhite), string(imaging.BackgroundBlack)}
	case imaging.ToolScale:
		info.ScaleSteps = imaging.ScaleSteps
	}
	return info
}
