// Package manager is the concrete plugin manager behind the selector's
// capability interfaces. It combines the scanned installation, the state
// database and the remote update service.
package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"plugup/internal/debug"
	"plugup/internal/domain"
	appErrors "plugup/internal/errors"
	"plugup/internal/host"
	"plugup/internal/selector"
	"plugup/internal/store"
	"plugup/internal/update"
)

var log = debug.L("manager")

var (
	_ selector.UpdateFeed             = (*Manager)(nil)
	_ selector.InstallabilityResolver = (*Manager)(nil)
	_ selector.Installer              = (*Manager)(nil)
)

// FeedFetcher retrieves the update feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, req update.FeedRequest) (*update.FeedResponse, error)
}

// DirectoryLookup resolves install metadata for one plugin version.
type DirectoryLookup interface {
	Lookup(ctx context.Context, component string, version domain.Version, branch string) (*update.PluginInfo, error)
}

// PackageInstaller installs a batch of packages.
type PackageInstaller interface {
	Install(ctx context.Context, batch []domain.RemoteInstallable) error
}

// StateStore is the subset of the state database the manager uses.
type StateStore interface {
	ReplaceUpdates(ctx context.Context, state store.FetchState, updates []domain.UpdateCandidate) error
	Updates(ctx context.Context, component string) ([]domain.UpdateCandidate, error)
	LastFetch(ctx context.Context) (store.FetchState, bool, error)
	RecordInstall(ctx context.Context, records []store.InstallRecord) error
}

// Options wires a Manager. Directory may be nil, in which case remote
// install metadata comes from the cached feed.
type Options struct {
	Installation *host.Installation
	Store        StateStore
	Feed         FeedFetcher
	Directory    DirectoryLookup
	Installer    PackageInstaller
}

// Manager implements selector.UpdateFeed, selector.InstallabilityResolver
// and selector.Installer.
type Manager struct {
	inst      *host.Installation
	store     StateStore
	feed      FeedFetcher
	directory DirectoryLookup
	installer PackageInstaller

	now        func() time.Time
	newBatchID func() string
	writable   func(dir string) bool
}

// New creates a Manager.
func New(opts Options) *Manager {
	return &Manager{
		inst:       opts.Installation,
		store:      opts.Store,
		feed:       opts.Feed,
		directory:  opts.Directory,
		installer:  opts.Installer,
		now:        time.Now,
		newBatchID: uuid.NewString,
		writable:   host.Writable,
	}
}

// Installation returns the scanned host.
func (m *Manager) Installation() *host.Installation {
	return m.inst
}

// DisplayName returns the human name of an installed plugin, falling back
// to the component name.
func (m *Manager) DisplayName(component string) string {
	if p, ok := m.inst.Plugin(component); ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return component
}

// LastFetch reports when the feed was last fetched.
func (m *Manager) LastFetch(ctx context.Context) (store.FetchState, bool, error) {
	return m.store.LastFetch(ctx)
}

// Fetch refreshes the cached update feed for every installed plugin.
func (m *Manager) Fetch(ctx context.Context) error {
	req := update.FeedRequest{
		Version: m.inst.Version,
		Branch:  m.inst.Branch,
	}
	for _, p := range m.inst.Plugins() {
		req.Plugins = append(req.Plugins, update.PluginVersion{Component: p.Component, Version: p.Version})
	}

	resp, err := m.feed.Fetch(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if errors.Is(err, update.ErrInvalidFeed) {
			return appErrors.New(appErrors.CodeInvalidFeed, fmt.Sprintf("update feed rejected: %v", err), err)
		}
		return appErrors.New(appErrors.CodeFetchFailed, fmt.Sprintf("fetching updates failed: %v", err), err)
	}

	state := store.FetchState{
		FetchedAt: m.now(),
		Provider:  resp.Provider,
		ForBranch: resp.ForBranch,
		Ticket:    resp.Ticket,
	}
	if err := m.store.ReplaceUpdates(ctx, state, resp.Updates); err != nil {
		return err
	}
	log.Info("update feed cached", "updates", len(resp.Updates), "provider", resp.Provider)
	return nil
}

// Candidates returns cached updates for an installed plugin that are newer
// than its installed version, in feed order.
func (m *Manager) Candidates(ctx context.Context, component string) ([]domain.UpdateCandidate, error) {
	p, ok := m.inst.Plugin(component)
	if !ok {
		return nil, nil
	}
	cached, err := m.store.Updates(ctx, p.Component)
	if err != nil {
		return nil, err
	}
	var out []domain.UpdateCandidate
	for _, u := range cached {
		if u.Version.Newer(p.Version) {
			out = append(out, u)
		}
	}
	return out, nil
}

// IsInstallable reports whether version v of component can be installed
// remotely. A false result is not an error.
func (m *Manager) IsInstallable(ctx context.Context, component string, v domain.Version) (bool, error) {
	pluginType, _, err := domain.SplitComponent(component)
	if err != nil {
		log.Info("not installable: invalid component", "component", component)
		return false, nil
	}
	dir, ok := m.inst.PluginTypeDir(pluginType)
	if !ok {
		log.Info("not installable: unknown plugin type", "component", component, "type", pluginType)
		return false, nil
	}
	if !m.writable(dir) {
		log.Info("not installable: plugin directory not writable", "component", component, "dir", dir)
		return false, nil
	}
	if p, installed := m.inst.Plugin(component); installed && !v.Newer(p.Version) {
		log.Info("not installable: not newer than installed", "component", component, "version", v, "installed", p.Version)
		return false, nil
	}
	u, found, err := m.cachedUpdate(ctx, component, v)
	if err != nil {
		return false, err
	}
	if !found || u.Download == "" {
		log.Info("not installable: no downloadable update cached", "component", component, "version", v)
		return false, nil
	}
	return true, nil
}

// RemoteInfo resolves install metadata for version v of component. A nil
// result means it cannot be installed remotely.
func (m *Manager) RemoteInfo(ctx context.Context, component string, v domain.Version) (*domain.RemoteInstallable, error) {
	normalized, err := domain.NormalizeComponent(component)
	if err != nil {
		return nil, nil
	}
	pluginType, name, _ := domain.SplitComponent(normalized)
	dir, ok := m.inst.PluginTypeDir(pluginType)
	if !ok {
		return nil, nil
	}
	target := filepath.Join(dir, name)
	if p, installed := m.inst.Plugin(normalized); installed {
		target = p.Dir
	}

	if m.directory != nil {
		info, err := m.directory.Lookup(ctx, normalized, v, m.inst.Branch)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, nil
		}
		if info.Version != v {
			log.Warn("plugin directory returned a different version", "component", normalized, "want", v, "got", info.Version)
			return nil, nil
		}
		return &domain.RemoteInstallable{
			Component:   normalized,
			Version:     info.Version,
			Release:     info.Release,
			Maturity:    info.Maturity,
			DownloadURL: info.DownloadURL,
			DownloadMD5: info.DownloadMD5,
			TargetDir:   target,
		}, nil
	}

	u, found, err := m.cachedUpdate(ctx, normalized, v)
	if err != nil {
		return nil, err
	}
	if !found || u.Download == "" {
		return nil, nil
	}
	return &domain.RemoteInstallable{
		Component:   normalized,
		Version:     u.Version,
		Release:     u.Release,
		Maturity:    u.Maturity,
		DownloadURL: u.Download,
		DownloadMD5: u.DownloadMD5,
		TargetDir:   target,
	}, nil
}

// InstallBatch installs every package and records the outcome under a new
// batch ID.
func (m *Manager) InstallBatch(ctx context.Context, batch []domain.RemoteInstallable) error {
	if len(batch) == 0 {
		return nil
	}
	batchID := m.newBatchID()
	log.Info("installing batch", "batch", batchID, "plugins", len(batch))

	installErr := m.installer.Install(ctx, batch)

	at := m.now()
	records := make([]store.InstallRecord, 0, len(batch))
	for _, pkg := range batch {
		records = append(records, store.InstallRecord{
			BatchID:     batchID,
			Component:   pkg.Component,
			Version:     pkg.Version,
			InstalledAt: at,
			Success:     installErr == nil,
		})
	}
	// The install outcome stands even if it cannot be recorded.
	if err := m.store.RecordInstall(context.WithoutCancel(ctx), records); err != nil {
		log.Warn("could not record install batch", "batch", batchID, "error", err)
	}
	return installErr
}

func (m *Manager) cachedUpdate(ctx context.Context, component string, v domain.Version) (domain.UpdateCandidate, bool, error) {
	normalized, err := domain.NormalizeComponent(component)
	if err != nil {
		return domain.UpdateCandidate{}, false, nil
	}
	cached, err := m.store.Updates(ctx, normalized)
	if err != nil {
		return domain.UpdateCandidate{}, false, err
	}
	for _, u := range cached {
		if u.Version == v {
			return u, true, nil
		}
	}
	return domain.UpdateCandidate{}, false, nil
}
