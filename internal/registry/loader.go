package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"batchd/internal/config"
	"batchd/pkg/types"
)

// modelExts are artifact extensions picked up by LoadDir.
var modelExts = map[string]struct{}{
	".onnx":   {},
	".plan":   {},
	".engine": {},
}

// FromConfig converts declared models into registry entries.
func FromConfig(models []config.ModelConfig) []types.Model {
	out := make([]types.Model, 0, len(models))
	for _, m := range models {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		mdl := types.Model{
			ID:           m.ID,
			Name:         name,
			Inputs:       append([]string(nil), m.Inputs...),
			MaxBatchSize: m.MaxBatchSize,
			MaxInFlight:  m.MaxInFlight,
		}
		if m.MaxLatencyMS != nil {
			v := *m.MaxLatencyMS
			mdl.MaxLatencyMS = &v
		}
		if len(m.InputWidths) > 0 {
			mdl.InputWidths = make(map[string]int, len(m.InputWidths))
			for k, w := range m.InputWidths {
				mdl.InputWidths[k] = w
			}
		}
		out = append(out, mdl)
	}
	return out
}

// LoadDir scans a directory for model artifacts (*.onnx, *.plan, *.engine).
// ID is the file name without extension; Path is the absolute file path.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := modelExts[ext]; !ok {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{ID: id, Name: id, Path: filepath.Join(abs, name)})
	}
	return models, nil
}

// Merge combines declared and scanned models. Declared entries win on id
// collisions but inherit the scanned path. The result is sorted by id.
func Merge(declared, scanned []types.Model) []types.Model {
	byID := make(map[string]types.Model, len(declared)+len(scanned))
	for _, m := range scanned {
		byID[m.ID] = m
	}
	for _, m := range declared {
		if prev, ok := byID[m.ID]; ok && m.Path == "" {
			m.Path = prev.Path
		}
		byID[m.ID] = m
	}
	out := make([]types.Model, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
