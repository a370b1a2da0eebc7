package models

import (
	"time"
)

// ToolPreference is one persisted key-value default for a tool. Values are
// stored JSON-encoded.
type ToolPreference struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Tool      string    `json:"tool" gorm:"not null;uniqueIndex:idx_tool_pref_key"`
	Key       string    `json:"key" gorm:"column:pref_key;not null;uniqueIndex:idx_tool_pref_key"`
	Value     string    `json:"value" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolPreferences is the set of user-chosen defaults for one tool. Only the
// fields relevant to the tool are used.
type ToolPreferences struct {
	Tool           string  `json:"tool"`
	Radius         int     `json:"radius"`
	Background     string  `json:"background,omitempty"`
	Scale          float64 `json:"scale,omitempty"`
	CustomScale    float64 `json:"custom_scale,omitempty"`
	UseCustomScale bool    `json:"use_custom_scale,omitempty"`
}

// UpdateParamsRequest changes some or all of a session's parameters.
type UpdateParamsRequest struct {
	Radius         *int     `json:"radius"`
	Background     *string  `json:"background"`
	Scale          *float64 `json:"scale"`
	CustomScale    *float64 `json:"custom_scale"`
	UseCustomScale *bool    `json:"use_custom_scale"`
}

// Apply merges the fields set in the request into prefs.
func (r UpdateParamsRequest) Apply(prefs ToolPreferences) ToolPreferences {
	if r.Radius != nil {
		prefs.Radius = *r.Radius
	}
	if r.Background != nil {
		prefs.Background = *r.Background
	}
	if r.Scale != nil {
		prefs.Scale = *r.Scale
		prefs.UseCustomScale = false
	}
	if r.CustomScale != nil {
		prefs.CustomScale = *r.CustomScale
	}
	if r.UseCustomScale != nil {
		prefs.UseCustomScale = *r.UseCustomScale
	}
	return prefs
}
