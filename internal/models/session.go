package models

// ToolInfo describes a tool in the catalogue.
type ToolInfo struct {
	Tool          string    `json:"tool"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	AcceptedTypes []string  `json:"accepted_types"`
	RadiusPresets []int     `json:"radius_presets,omitempty"`
	ScaleSteps    []float64 `json:"scale_steps,omitempty"`
	Backgrounds   []string  `json:"backgrounds,omitempty"`
}

type AssetInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	MediaType string `json:"media_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type OutputInfo struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int    `json:"bytes"`
	Filename string `json:"filename"`
}

// SessionResponse is the API view of a tool session
type SessionResponse struct {
	ID     string          `json:"id"`
	Tool   string          `json:"tool"`
	Asset  *AssetInfo      `json:"asset"`
	Params ToolPreferences `json:"params"`
	Output *OutputInfo     `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ExportResponse is returned when an export is archived instead of downloaded
type ExportResponse struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int    `json:"bytes"`
}
