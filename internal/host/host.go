// Package host discovers a plugin-based installation on disk: its core
// version, the configured plugin type directories and every installed plugin.
package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"plugup/internal/domain"
)

// PluginType maps a plugin type to the directory its plugins live in.
type PluginType struct {
	Name string
	Dir  string
}

// Plugin is an installed plugin found during a scan.
type Plugin struct {
	Component   string
	Type        string
	Name        string
	Dir         string
	Version     domain.Version
	Release     string
	DisplayName string
}

// Installation is the result of scanning a host root.
type Installation struct {
	Root    string
	Version domain.Version
	Branch  string
	Release string

	types   []PluginType
	plugins []Plugin
	index   map[string]int
}

// Plugins returns installed plugins in plugin type order, then by name.
func (i *Installation) Plugins() []Plugin {
	out := make([]Plugin, len(i.plugins))
	copy(out, i.plugins)
	return out
}

// Components returns the component names of all installed plugins.
func (i *Installation) Components() []string {
	out := make([]string, 0, len(i.plugins))
	for _, p := range i.plugins {
		out = append(out, p.Component)
	}
	return out
}

// Plugin looks up an installed plugin. Bare names resolve to activity modules.
func (i *Installation) Plugin(component string) (Plugin, bool) {
	normalized, err := domain.NormalizeComponent(component)
	if err != nil {
		return Plugin{}, false
	}
	idx, ok := i.index[normalized]
	if !ok {
		return Plugin{}, false
	}
	return i.plugins[idx], true
}

// PluginTypeDir returns the absolute directory plugins of the given type are
// installed into.
func (i *Installation) PluginTypeDir(pluginType string) (string, bool) {
	for _, t := range i.types {
		if t.Name == pluginType {
			return t.Dir, true
		}
	}
	return "", false
}

// Types returns the configured plugin types in order.
func (i *Installation) Types() []PluginType {
	out := make([]PluginType, len(i.types))
	copy(out, i.types)
	return out
}

// ParsePluginTypes parses "type=relative/dir" entries against root. Order is
// preserved; duplicate types are rejected.
func ParsePluginTypes(root string, entries []string) ([]PluginType, error) {
	seen := make(map[string]bool, len(entries))
	types := make([]PluginType, 0, len(entries))
	for _, entry := range entries {
		name, dir, ok := strings.Cut(strings.TrimSpace(entry), "=")
		name = strings.TrimSpace(name)
		dir = strings.TrimSpace(dir)
		if !ok || name == "" || dir == "" {
			return nil, fmt.Errorf("invalid plugin type %q: expected type=dir", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate plugin type %q", name)
		}
		if filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			return nil, fmt.Errorf("plugin type %q directory must be inside the root: %s", name, dir)
		}
		seen[name] = true
		types = append(types, PluginType{Name: name, Dir: filepath.Join(root, filepath.FromSlash(dir))})
	}
	return types, nil
}

// Writable reports whether files can be created in dir.
func Writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".plugup-probe-")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
