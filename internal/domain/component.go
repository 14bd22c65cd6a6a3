package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	pluginTypeRegex = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	pluginNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// SplitComponent splits a frankenstyle component name into plugin type and
// plugin name. A bare name without a type prefix is an activity module, so
// "forum" and "mod_forum" both yield ("mod", "forum"). Core subsystems are
// not plugins and are rejected.
func SplitComponent(component string) (string, string, error) {
	component = strings.ToLower(strings.TrimSpace(component))
	if component == "" {
		return "", "", invalidComponentError(component, "blank")
	}
	if component == "core" || strings.HasPrefix(component, "core_") {
		return "", "", invalidComponentError(component, "core subsystems are not plugins")
	}

	pluginType, name, found := strings.Cut(component, "_")
	if !found {
		pluginType, name = "mod", component
	}
	if !pluginTypeRegex.MatchString(pluginType) {
		return "", "", invalidComponentError(component, "bad plugin type")
	}
	if !pluginNameRegex.MatchString(name) {
		return "", "", invalidComponentError(component, "bad plugin name")
	}
	return pluginType, name, nil
}

// NormalizeComponent returns the canonical "type_name" form.
func NormalizeComponent(component string) (string, error) {
	pluginType, name, err := SplitComponent(component)
	if err != nil {
		return "", err
	}
	return pluginType + "_" + name, nil
}

// Target is a user request for a single plugin, optionally pinned to a version.
type Target struct {
	Component string
	Version   Version
}

// Pinned reports whether a specific version was requested.
func (t Target) Pinned() bool {
	return !t.Version.IsZero()
}

// String renders the target back in "name[:version]" form.
func (t Target) String() string {
	if t.Pinned() {
		return fmt.Sprintf("%s:%s", t.Component, t.Version)
	}
	return t.Component
}

// ParseTarget parses "name" or "name:version", e.g. "mod_forum:2025041400".
// An empty version after the colon asks for the latest update.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	name, rawVersion, pinned := strings.Cut(raw, ":")
	component, err := NormalizeComponent(name)
	if err != nil {
		return Target{}, err
	}
	target := Target{Component: component}
	if !pinned || strings.TrimSpace(rawVersion) == "" {
		return target, nil
	}
	version, err := ParseVersion(rawVersion)
	if err != nil {
		return Target{}, invalidTargetError(raw, err)
	}
	if version.IsZero() {
		return Target{}, invalidTargetError(raw, fmt.Errorf("version must be positive"))
	}
	target.Version = version
	return target, nil
}
