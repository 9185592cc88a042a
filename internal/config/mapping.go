package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadMappingFile reads an axis/button/hat layout from a yaml file. Axis entries
// without an output range get the full -100..100 range.
func LoadMappingFile(path string) (MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MappingConfig{}, fmt.Errorf("error reading mapping file: %w", err)
	}
	return ParseMapping(data)
}

func ParseMapping(data []byte) (MappingConfig, error) {
	mappingCfg := MappingConfig{}
	err := yaml.Unmarshal(data, &mappingCfg)
	if err != nil {
		return MappingConfig{}, fmt.Errorf("error parsing mapping: %w", err)
	}

	if len(mappingCfg.Axes) == 0 {
		return MappingConfig{}, fmt.Errorf("mapping has no axes")
	}

	for i := range mappingCfg.Axes {
		axis := &mappingCfg.Axes[i]
		if axis.Axis < 0 || axis.Axis > 255 {
			return MappingConfig{}, fmt.Errorf("axis %d out of range 0..255", axis.Axis)
		}
		if axis.DeadZone < 0 || axis.DeadZone >= 1 {
			return MappingConfig{}, fmt.Errorf("axis %d deadzone %.3f must be in [0, 1)", axis.Axis, axis.DeadZone)
		}
		if axis.Min == 0 && axis.Max == 0 {
			axis.Min = -100
			axis.Max = 100
		}
	}

	if mappingCfg.Buttons == nil {
		mappingCfg.Buttons = map[int]string{}
	}
	if mappingCfg.Hats == nil {
		mappingCfg.Hats = map[int]string{}
	}
	return mappingCfg, nil
}
