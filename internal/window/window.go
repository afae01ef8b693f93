// Package window loads the curated deployment window table and resolves each
// window to a contiguous slice of the merged legacy order.
package window

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeploymentWindow names the first and last legacy event of one deployment
// and the stream its events belong to.
type DeploymentWindow struct {
	StartID  string `yaml:"start" json:"start"`
	EndID    string `yaml:"end" json:"end"`
	StreamID string `yaml:"stream" json:"stream"`
}

type table struct {
	Windows []DeploymentWindow `yaml:"windows"`
}

// Parse decodes a YAML (or JSON) window table.
func Parse(data []byte) ([]DeploymentWindow, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode window table: %w", err)
	}
	for i, w := range t.Windows {
		switch {
		case w.StartID == "":
			return nil, fmt.Errorf("window %d: missing start", i)
		case w.EndID == "":
			return nil, fmt.Errorf("window %d: missing end", i)
		case w.StreamID == "":
			return nil, fmt.Errorf("window %d: missing stream", i)
		}
	}
	return t.Windows, nil
}

// LoadFile reads and parses a window table from disk.
func LoadFile(path string) ([]DeploymentWindow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read window table: %w", err)
	}
	ws, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ws, nil
}
