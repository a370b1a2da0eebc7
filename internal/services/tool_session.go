package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codyseavey/imgtools/internal/imaging"
	"github.com/codyseavey/imgtools/internal/metrics"
	"github.com/codyseavey/imgtools/internal/models"
)

// ExportResult is a finished PNG ready to be saved under Filename.
type ExportResult struct {
	Filename string
	PNG      []byte
	Width    int
	Height   int
}

// ToolSession owns the single live asset of one tool instance together with
// its current parameters and the last successful output. Every parameter
// change re-runs the pipeline; outputs are replaced wholesale and only when
// they belong to the newest render.
type ToolSession struct {
	ID   string
	Spec ToolSpec

	mu        sync.Mutex
	asset     *imaging.DecodedAsset
	prefs     models.ToolPreferences
	params    imaging.Params
	output    *imaging.RenderedOutput
	outputFor imaging.Params
	lastErr   error

	compositor *imaging.Compositor
	telemetry  Telemetry
}

// NewToolSession creates an empty session. Preferences that do not form valid
// parameters are replaced by the tool defaults.
func NewToolSession(spec ToolSpec, prefs models.ToolPreferences, telemetry Telemetry) *ToolSession {
	params, err := spec.Params(prefs)
	if err != nil {
		prefs = spec.Defaults
		params, _ = spec.Params(prefs)
	}
	prefs.Tool = string(spec.Tool)

	return &ToolSession{
		Spec:       spec,
		prefs:      prefs,
		params:     params,
		compositor: imaging.NewCompositor(),
		telemetry:  telemetry,
	}
}

// Load decodes an upload and makes it the session's asset. On failure the
// session is returned to the empty state.
func (s *ToolSession) Load(name, mediaType string, data []byte) error {
	asset, err := imaging.Load(s.Spec.Tool, name, mediaType, data)
	metrics.AssetLoadsTotal.WithLabelValues(string(s.Spec.Tool), assetKindLabel(asset), loadResultLabel(err)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.output, s.outputFor, s.lastErr = nil, nil, nil
	if err != nil {
		s.asset = nil
		return err
	}
	s.asset = asset
	return nil
}

// Cancel discards the asset and any output. It is safe to call repeatedly.
func (s *ToolSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asset = nil
	s.output, s.outputFor, s.lastErr = nil, nil, nil
}

// Asset returns the live asset, or nil when the session is empty.
func (s *ToolSession) Asset() *imaging.DecodedAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

// Preferences returns the parameters as the user chose them.
func (s *ToolSession) Preferences() models.ToolPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Params returns the current transform parameters.
func (s *ToolSession) Params() imaging.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetPreferences validates and applies new parameters. Invalid values leave
// the session unchanged.
func (s *ToolSession) SetPreferences(prefs models.ToolPreferences) error {
	params, err := s.Spec.Params(prefs)
	if err != nil {
		return err
	}
	prefs.Tool = string(s.Spec.Tool)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	s.params = params
	return nil
}

// Output returns the last successful output, if any.
func (s *ToolSession) Output() *imaging.RenderedOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Render runs plan, composite and encode for the current asset and
// parameters. A failed render keeps the previous output in place.
func (s *ToolSession) Render(ctx context.Context) (*imaging.RenderedOutput, error) {
	s.mu.Lock()
	asset, params := s.asset, s.params
	s.mu.Unlock()
	return s.renderAndPublish(ctx, asset, params)
}

// renderAndPublish renders exactly the given asset and parameters, so callers
// that derive names from params stay consistent with the pixels.
func (s *ToolSession) renderAndPublish(ctx context.Context, asset *imaging.DecodedAsset, params imaging.Params) (*imaging.RenderedOutput, error) {
	start := time.Now()
	out, err := s.render(ctx, asset, params)
	if err == nil {
		err = s.publish(asset, params, out)
	}

	tool := string(s.Spec.Tool)
	metrics.RendersTotal.WithLabelValues(tool, renderResultLabel(err)).Inc()
	metrics.RenderDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.OutputPixels.WithLabelValues(tool).Observe(float64(out.Width * out.Height))
	return out, nil
}

// publish installs out as the session output unless the asset has since been
// replaced or a newer render overtook it.
func (s *ToolSession) publish(asset *imaging.DecodedAsset, params imaging.Params, out *imaging.RenderedOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asset != asset || out.Generation != s.compositor.Generation() {
		return imaging.ErrSuperseded
	}
	s.output, s.outputFor, s.lastErr = out, params, nil
	return nil
}

func (s *ToolSession) render(ctx context.Context, asset *imaging.DecodedAsset, params imaging.Params) (*imaging.RenderedOutput, error) {
	out, err := s.compose(ctx, asset, params)
	if err != nil && !errors.Is(err, imaging.ErrSuperseded) {
		s.mu.Lock()
		if s.asset == asset {
			s.lastErr = err
		}
		s.mu.Unlock()
	}
	return out, err
}

func (s *ToolSession) compose(ctx context.Context, asset *imaging.DecodedAsset, params imaging.Params) (*imaging.RenderedOutput, error) {
	plan, err := imaging.Plan(asset, params)
	if err != nil {
		return nil, err
	}
	surface, err := s.compositor.Render(ctx, asset, plan)
	if err != nil {
		return nil, err
	}
	return imaging.Encode(surface)
}

// Export returns the PNG for the current parameters, rendering it first when
// the last output is stale, and emits the tool's export event.
func (s *ToolSession) Export(ctx context.Context) (*ExportResult, error) {
	s.mu.Lock()
	asset, params, out := s.asset, s.params, s.output
	current := out != nil && s.outputFor == params
	s.mu.Unlock()

	if asset == nil {
		return nil, &imaging.ValidationError{Field: "file", Reason: "no image loaded"}
	}
	if !current {
		var err error
		if out, err = s.renderAndPublish(ctx, asset, params); err != nil {
			return nil, err
		}
	}

	result := &ExportResult{
		Filename: imaging.ExportFilename(asset.Name, params),
		PNG:      out.PNG,
		Width:    out.Width,
		Height:   out.Height,
	}

	if s.telemetry != nil {
		s.telemetry.ExportCompleted(models.ExportEvent{
			Event:      s.Spec.EventName,
			Tool:       string(s.Spec.Tool),
			Filename:   result.Filename,
			Width:      result.Width,
			Height:     result.Height,
			Bytes:      len(result.PNG),
			ExportedAt: time.Now(),
		})
	}
	return result, nil
}

// Snapshot returns the API view of the session.
func (s *ToolSession) Snapshot() models.SessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := models.SessionResponse{
		ID:     s.ID,
		Tool:   string(s.Spec.Tool),
		Params: s.prefs,
	}
	if s.asset != nil {
		resp.Asset = &models.AssetInfo{
			Name:      s.asset.Name,
			Kind:      string(s.asset.Kind),
			MediaType: s.asset.MediaType,
			Width:     s.asset.Width,
			Height:    s.asset.Height,
		}
	}
	if s.output != nil && s.asset != nil {
		resp.Output = &models.OutputInfo{
			Width:    s.output.Width,
			Height:   s.output.Height,
			Bytes:    len(s.output.PNG),
			Filename: imaging.ExportFilename(s.asset.Name, s.outputFor),
		}
	}
	if s.lastErr != nil {
		resp.Error = s.lastErr.Error()
	}
	return resp
}

func assetKindLabel(asset *imaging.DecodedAsset) string {
	if asset == nil {
		return "unknown"
	}
	return string(asset.Kind)
}

func loadResultLabel(err error) string {
	var (
		validationErr *imaging.ValidationError
		decodeErr     *imaging.DecodeError
		parseErr      *imaging.ParseError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &parseErr):
		return "parse"
	}
	return "failed"
}

func renderResultLabel(err error) string {
	var (
		validationErr *imaging.ValidationError
		surfaceErr    *imaging.SurfaceError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, imaging.ErrSuperseded):
		return "superseded"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &surfaceErr):
		return "surface"
	}
	return "failed"
}
