package services

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/imgtools/internal/imaging"
	"github.com/codyseavey/imgtools/internal/models"
)

// Preference keys, kept compatible with the values the web client stores
// locally so both can share defaults.
const (
	prefRoundedRadius     = "roundedTool_radius"
	prefRoundedBackground = "roundedTool_background"
	prefSquareBackground  = "squareTool_backgroundColor"
	prefScale             = "svgTool_scale"
	prefCustomScale       = "svgTool_customScale"

	scaleCustomValue = "custom"
)

// PreferenceService persists each tool's last-used parameters. Missing or
// unreadable values fall back to the tool defaults.
type PreferenceService struct {
	db *gorm.DB
}

// NewPreferenceService creates a preference store backed by db. A nil db
// always yields the defaults and discards writes.
func NewPreferenceService(db *gorm.DB) *PreferenceService {
	return &PreferenceService{db: db}
}

// Load returns the stored preferences for the tool merged over its defaults.
func (s *PreferenceService) Load(spec ToolSpec) models.ToolPreferences {
	prefs := spec.Defaults
	if s.db == nil {
		return prefs
	}

	var rows []models.ToolPreference
	if err := s.db.Where("tool = ?", string(spec.Tool)).Find(&rows).Error; err != nil {
		log.Printf("Warning: failed to load %s preferences: %v", spec.Tool, err)
		return prefs
	}
	for _, row := range rows {
		if err := applyPreference(spec, &prefs, row.Key, row.Value); err != nil {
			log.Printf("Warning: ignoring stored preference %s=%q: %v", row.Key, row.Value, err)
		}
	}
	return prefs
}

// Save writes every preference of the tool, replacing previous values.
func (s *PreferenceService) Save(spec ToolSpec, prefs models.ToolPreferences) error {
	if s.db == nil {
		return nil
	}
	rows, err := encodePreferences(spec, prefs)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tool"}, {Name: "pref_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}

func encodePreferences(spec ToolSpec, prefs models.ToolPreferences) ([]models.ToolPreference, error) {
	values := map[string]any{}
	switch spec.Tool {
	case imaging.ToolRounded:
		values[prefRoundedRadius] = prefs.Radius
		values[prefRoundedBackground] = prefs.Background
	case imaging.ToolSquare:
		values[prefSquareBackground] = prefs.Background
	case imaging.ToolScale:
		if prefs.UseCustomScale {
			values[prefScale] = scaleCustomValue
		} else {
			values[prefScale] = prefs.Scale
		}
		values[prefCustomScale] = prefs.CustomScale
	}

	rows := make([]models.ToolPreference, 0, len(values))
	for key, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode preference %s: %w", key, err)
		}
		rows = append(rows, models.ToolPreference{
			Tool:  string(spec.Tool),
			Key:   key,
			Value: string(encoded),
		})
	}
	return rows, nil
}

// applyPreference decodes one stored value into prefs. Values that would not
// form valid parameters are rejected so the default stays in effect.
func applyPreference(spec ToolSpec, prefs *models.ToolPreferences, key, value string) error {
	switch key {
	case prefRoundedRadius:
		var radius int
		if err := json.Unmarshal([]byte(value), &radius); err != nil {
			return err
		}
		if radius < 0 {
			return fmt.Errorf("negative radius")
		}
		prefs.Radius = radius

	case prefRoundedBackground, prefSquareBackground:
		var background string
		if err := json.Unmarshal([]byte(value), &background); err != nil {
			return err
		}
		candidate := *prefs
		candidate.Background = background
		if _, err := spec.Params(candidate); err != nil {
			return err
		}
		prefs.Background = background

	case prefScale:
		var choice any
		if err := json.Unmarshal([]byte(value), &choice); err != nil {
			return err
		}
		switch v := choice.(type) {
		case string:
			if v != scaleCustomValue {
				return fmt.Errorf("unknown scale choice %q", v)
			}
			prefs.UseCustomScale = true
		case float64:
			if err := (imaging.ScaleParams{Factor: v}).Validate(); err != nil {
				return err
			}
			prefs.Scale = v
			prefs.UseCustomScale = false
		default:
			return fmt.Errorf("unexpected scale value %T", choice)
		}

	case prefCustomScale:
		var factor float64
		if err := json.Unmarshal([]byte(value), &factor); err != nil {
			return err
		}
		if err := (imaging.ScaleParams{Factor: factor}).Validate(); err != nil {
			return err
		}
		prefs.CustomScale = factor

	default:
		return fmt.Errorf("unknown preference key")
	}
	return nil
}
