package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"plugup/internal/domain"
)

const maxDirectorySize = 1 << 20

// PluginInfo is the install metadata of one plugin version from the
// plugin directory.
type PluginInfo struct {
	Component   string
	Version     domain.Version
	Release     string
	Maturity    domain.Maturity
	DownloadURL string
	DownloadMD5 string
}

// DirectoryClient looks up plugin versions in the plugin directory.
type DirectoryClient struct {
	url        string
	httpClient *http.Client
}

// NewDirectoryClient creates a client for the directory at directoryURL.
func NewDirectoryClient(directoryURL string, opts ...ClientOption) *DirectoryClient {
	return &DirectoryClient{
		url:        directoryURL,
		httpClient: newHTTPClient(DefaultTimeout, opts),
	}
}

type directoryResponse struct {
	Status     string `json:"status"`
	PluginInfo *struct {
		Component string          `json:"component"`
		Version   json.RawMessage `json:"version"`
	} `json:"pluginfo"`
}

type directoryVersion struct {
	Version     domain.Version  `json:"version"`
	Release     string          `json:"release"`
	Maturity    domain.Maturity `json:"maturity"`
	DownloadURL string          `json:"downloadurl"`
	DownloadMD5 string          `json:"downloadmd5"`
}

// Lookup returns install metadata for component at version. A nil result
// means the directory cannot serve it; network failures are logged and also
// reported as nil. Only context cancellation is returned as an error.
func (c *DirectoryClient) Lookup(ctx context.Context, component string, version domain.Version, branch string) (*PluginInfo, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("plugin", component+"@"+version.String())
	if branch != "" {
		q.Set("branch", branch)
	}
	endpoint := c.url
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("plugin directory unreachable", "component", component, "error", err)
		return nil, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Info("plugin directory has no entry", "component", component, "version", version, "error", statusError(resp))
		return nil, nil
	}

	var body directoryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDirectorySize)).Decode(&body); err != nil {
		log.Warn("plugin directory answered with invalid JSON", "component", component, "error", err)
		return nil, nil
	}
	if !strings.EqualFold(body.Status, "OK") || body.PluginInfo == nil {
		log.Info("plugin directory refused lookup", "component", component, "version", version, "status", body.Status)
		return nil, nil
	}

	var v directoryVersion
	if raw := strings.TrimSpace(string(body.PluginInfo.Version)); !strings.HasPrefix(raw, "{") {
		log.Info("plugin directory has no such version", "component", component, "version", version)
		return nil, nil
	}
	if err := json.Unmarshal(body.PluginInfo.Version, &v); err != nil {
		log.Warn("plugin directory version entry is malformed", "component", component, "error", err)
		return nil, nil
	}
	if v.DownloadURL == "" {
		return nil, nil
	}

	info := &PluginInfo{
		Component:   body.PluginInfo.Component,
		Version:     v.Version,
		Release:     v.Release,
		Maturity:    v.Maturity,
		DownloadURL: v.DownloadURL,
		DownloadMD5: v.DownloadMD5,
	}
	if info.Component == "" {
		info.Component = component
	}
	if info.Version.IsZero() {
		info.Version = version
	}
	return info, nil
}
