package domain

// UpdateCandidate describes one available release of a plugin as reported
// by the update feed. Values are immutable once produced.
type UpdateCandidate struct {
	Component   string   `json:"component" yaml:"component"`
	Version     Version  `json:"version" yaml:"version"`
	Release     string   `json:"release,omitempty" yaml:"release,omitempty"`
	Maturity    Maturity `json:"maturity,omitempty" yaml:"maturity,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Download    string   `json:"download,omitempty" yaml:"download,omitempty"`
	DownloadMD5 string   `json:"downloadmd5,omitempty" yaml:"downloadmd5,omitempty"`
}

// RemoteInstallable is a package confirmed installable for a candidate.
// TargetDir is the absolute directory the plugin will occupy.
type RemoteInstallable struct {
	Component   string
	Version     Version
	Release     string
	Maturity    Maturity
	DownloadURL string
	DownloadMD5 string
	TargetDir   string
}

// Name returns the plugin part of the component ("forum" for "mod_forum").
func (r RemoteInstallable) Name() string {
	_, name, err := SplitComponent(r.Component)
	if err != nil {
		return r.Component
	}
	return name
}
