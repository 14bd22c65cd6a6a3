package update

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"plugup/internal/domain"
)

// maxFeedSize caps the response body read from the feed.
const maxFeedSize = 32 << 20

// PluginVersion is one installed plugin reported to the feed.
type PluginVersion struct {
	Component string
	Version   domain.Version
}

// FeedRequest describes the installation asking for updates.
type FeedRequest struct {
	Version domain.Version
	Branch  string
	Plugins []PluginVersion
}

// FeedResponse is a decoded, validated update feed answer.
type FeedResponse struct {
	APIVersion    string
	Status        string
	Provider      string
	ForBranch     string
	ForVersion    string
	Ticket        string
	TimeGenerated time.Time
	// Updates lists candidates grouped by component. Components appear in
	// request order, followed by any the feed added, sorted by name.
	Updates []domain.UpdateCandidate
}

// FeedClient queries the update feed.
type FeedClient struct {
	url        string
	httpClient *http.Client
}

// NewFeedClient creates a client for the feed at feedURL.
func NewFeedClient(feedURL string, opts ...ClientOption) *FeedClient {
	return &FeedClient{
		url:        feedURL,
		httpClient: newHTTPClient(DefaultTimeout, opts),
	}
}

// Fetch posts the inventory and returns the available updates.
func (c *FeedClient) Fetch(ctx context.Context, req FeedRequest) (*FeedResponse, error) {
	form := url.Values{}
	form.Set("format", "json")
	form.Set("version", req.Version.String())
	form.Set("branch", req.Branch)
	for _, p := range req.Plugins {
		form.Add("plugins[]", p.Component+"@"+p.Version.String())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	log.Debug("fetching update feed", "url", c.url, "plugins", len(req.Plugins), "branch", req.Branch)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetworkFailure, err)
	}
	return decodeFeed(body, req.Plugins)
}

type rawFeed struct {
	APIVersion    looseString     `json:"apiver"`
	Status        string          `json:"status"`
	Provider      string          `json:"provider"`
	ForBranch     looseString     `json:"forbranch"`
	ForVersion    looseString     `json:"forversion"`
	Ticket        string          `json:"ticket"`
	TimeGenerated looseString     `json:"timegenerated"`
	Updates       json.RawMessage `json:"updates"`
}

type rawUpdate struct {
	Version     domain.Version   `json:"version"`
	Release     *string          `json:"release"`
	Maturity    *domain.Maturity `json:"maturity"`
	URL         *string          `json:"url"`
	Download    *string          `json:"download"`
	DownloadMD5 *string          `json:"downloadmd5"`
}

func decodeFeed(body []byte, requested []PluginVersion) (*FeedResponse, error) {
	if err := ValidateFeed(body); err != nil {
		return nil, err
	}
	var raw rawFeed
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	if !strings.EqualFold(raw.Status, "OK") {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidFeed, raw.Status)
	}

	grouped := map[string][]rawUpdate{}
	if trimmed := bytes.TrimSpace(raw.Updates); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &grouped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
		}
	}

	out := &FeedResponse{
		APIVersion: string(raw.APIVersion),
		Status:     raw.Status,
		Provider:   raw.Provider,
		ForBranch:  string(raw.ForBranch),
		ForVersion: string(raw.ForVersion),
		Ticket:     raw.Ticket,
	}
	if sec, err := strconv.ParseInt(string(raw.TimeGenerated), 10, 64); err == nil && sec > 0 {
		out.TimeGenerated = time.Unix(sec, 0).UTC()
	}

	for _, component := range feedOrder(grouped, requested) {
		if component == "core" || strings.HasPrefix(component, "core_") {
			continue
		}
		for _, u := range grouped[component] {
			out.Updates = append(out.Updates, u.candidate(component))
		}
	}
	return out, nil
}

func feedOrder(grouped map[string][]rawUpdate, requested []PluginVersion) []string {
	order := make([]string, 0, len(grouped))
	seen := make(map[string]bool, len(grouped))
	for _, p := range requested {
		if _, ok := grouped[p.Component]; ok && !seen[p.Component] {
			seen[p.Component] = true
			order = append(order, p.Component)
		}
	}
	var extra []string
	for component := range grouped {
		if !seen[component] {
			extra = append(extra, component)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func (u rawUpdate) candidate(component string) domain.UpdateCandidate {
	c := domain.UpdateCandidate{
		Component:   component,
		Version:     u.Version,
		Release:     deref(u.Release),
		URL:         deref(u.URL),
		Download:    deref(u.Download),
		DownloadMD5: deref(u.DownloadMD5),
	}
	if u.Maturity != nil {
		c.Maturity = *u.Maturity
	}
	return c
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// looseString accepts JSON strings and numbers.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(raw)
	return nil
}
