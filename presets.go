package pbrsky

import (
	"encoding/json"
	"fmt"
	"os"
)

// SkyPreset is the on-disk form of a sky's settings and sun. A missing sun means a
// scene without one.
type SkyPreset struct {
	Sky SkyComponent       `json:"sky"`
	Sun *SunLightComponent `json:"sun,omitempty"`
}

func PresetOf(s *SkyState) SkyPreset {
	p := SkyPreset{Sky: s.Sky}
	if s.Sun != nil {
		sun := *s.Sun
		p.Sun = &sun
	}
	return p
}

// Apply copies the preset into a sky. The next frame recomputes if the physical
// settings differ.
func (p SkyPreset) Apply(s *SkyState) {
	s.Sky = p.Sky
	s.Sun = nil
	if p.Sun != nil {
		sun := *p.Sun
		s.Sun = &sun
	}
}

func SaveSkyPreset(s *SkyState, filename string) error {
	bytes, err := json.MarshalIndent(PresetOf(s), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0644)
}

func LoadSkyPreset(filename string) (SkyPreset, error) {
	var preset SkyPreset
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return preset, err
	}
	if err := json.Unmarshal(bytes, &preset); err != nil {
		return preset, fmt.Errorf("failed to parse sky preset %s: %w", filename, err)
	}
	return preset, nil
}
