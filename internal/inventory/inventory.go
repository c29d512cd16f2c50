// Package inventory manages the registered-instance file: a YAML map of
// symbolic names to connection targets, so batch commands can address
// instances by name.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Entry is one registered instance.
type Entry struct {
	Host     string `yaml:"host"`
	Instance string `yaml:"instance,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
}

// File is the on-disk inventory shape.
type File struct {
	Instances map[string]Entry `yaml:"instances"`
}

// DefaultPath returns the inventory location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "sqlops", "instances.yaml"), nil
}

// Load reads the inventory file. A missing file is an empty inventory, not
// an error.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{Instances: map[string]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory %s: %w", path, err)
	}

	f := &File{}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}
	if f.Instances == nil {
		f.Instances = map[string]Entry{}
	}
	return f, nil
}

// Names returns the registered names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Instances))
	for name := range f.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a registered name to its connection target.
func (f *File) Resolve(name string) (models.Target, bool) {
	entry, ok := f.Instances[name]
	if !ok {
		return models.Target{}, false
	}
	return models.Target{Host: entry.Host, Instance: entry.Instance, Port: entry.Port}, true
}

// ResolveTargets turns a mixed list of registered names and raw designators
// into connection targets. Unregistered values are parsed as
// `host[\instance][:port]`.
func (f *File) ResolveTargets(designators []string) ([]models.Target, error) {
	targets := make([]models.Target, 0, len(designators))
	for _, d := range designators {
		if t, ok := f.Resolve(d); ok {
			targets = append(targets, t)
			continue
		}
		t, err := models.ParseTarget(d)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
