// Package content serves the static patient-facing material: symptoms,
// nearby medical centres and the assistant greeting.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultDocument []byte

// Location is a point on the map.
type Location struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// MapView is the initial viewport of the medical centre map.
type MapView struct {
	Center Location `yaml:"center" json:"center"`
	Zoom   int      `yaml:"zoom" json:"zoom"`
}

// MedicalCenter is a clinic shown on the map.
type MedicalCenter struct {
	Name    string  `yaml:"name" json:"name"`
	Address string  `yaml:"address" json:"address"`
	Lat     float64 `yaml:"lat" json:"lat"`
	Lng     float64 `yaml:"lng" json:"lng"`
}

// Content is the full document.
type Content struct {
	Greeting string `yaml:"greeting" json:"greeting"`
	Footer   string `yaml:"footer" json:"footer"`
	// VoiceActivation acknowledges the sidebar voice button. Optional.
	VoiceActivation string          `yaml:"voice_activation" json:"voice_activation"`
	Symptoms        []string        `yaml:"symptoms" json:"symptoms"`
	Map             MapView         `yaml:"map" json:"map"`
	MedicalCenters  []MedicalCenter `yaml:"medical_centers" json:"medical_centers"`
}

// Default returns the embedded document.
func Default() (*Content, error) {
	return Parse(defaultDocument)
}

// Load reads the document at path, or the embedded one when path is empty.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Content) validate() error {
	var errs []error
	if c.Greeting == "" {
		errs = append(errs, errors.New("greeting is required"))
	}
	if len(c.Symptoms) == 0 {
		errs = append(errs, errors.New("at least one symptom is required"))
	}
	if c.Map.Zoom < 1 || c.Map.Zoom > 20 {
		errs = append(errs, fmt.Errorf("map zoom %d out of range", c.Map.Zoom))
	}
	for i, mc := range c.MedicalCenters {
		if mc.Name == "" {
			errs = append(errs, fmt.Errorf("medical_centers[%d]: name is required", i))
		}
	}
	return errors.Join(errs...)
}
