package selector

import (
	"context"
	"fmt"

	"plugup/internal/domain"
	appErrors "plugup/internal/errors"
)

// UpdateFeed exposes the cached update metadata of the plugin manager.
type UpdateFeed interface {
	// Fetch refreshes the cached update metadata.
	Fetch(ctx context.Context) error
	// Candidates lists the available updates for a component in feed order.
	Candidates(ctx context.Context, component string) ([]domain.UpdateCandidate, error)
}

// InstallabilityResolver decides whether a version can be installed remotely
// and produces its install metadata.
type InstallabilityResolver interface {
	IsInstallable(ctx context.Context, component string, version domain.Version) (bool, error)
	// RemoteInfo returns nil when no install metadata is available.
	RemoteInfo(ctx context.Context, component string, version domain.Version) (*domain.RemoteInstallable, error)
}

// Installer installs a complete batch of packages.
type Installer interface {
	InstallBatch(ctx context.Context, batch []domain.RemoteInstallable) error
}

// ResolveInstallable asks the resolver whether the candidate can be installed
// and, only if so, for its remote metadata. A nil result without error means
// the candidate cannot be updated remotely.
func ResolveInstallable(ctx context.Context, candidate domain.UpdateCandidate, resolver InstallabilityResolver) (*domain.RemoteInstallable, error) {
	ok, err := resolver.IsInstallable(ctx, candidate.Component, candidate.Version)
	if err != nil {
		return nil, fmt.Errorf("check %s (%s): %w", candidate.Component, candidate.Version, err)
	}
	if !ok {
		return nil, nil
	}
	info, err := resolver.RemoteInfo(ctx, candidate.Component, candidate.Version)
	if err != nil {
		return nil, fmt.Errorf("remote info for %s (%s): %w", candidate.Component, candidate.Version, err)
	}
	return info, nil
}

// InstallAll hands the whole batch to the installer in a single call.
func InstallAll(ctx context.Context, installables []domain.RemoteInstallable, installer Installer) error {
	if err := installer.InstallBatch(ctx, installables); err != nil {
		return appErrors.New(
			appErrors.CodeInstallFailed,
			fmt.Sprintf("plugin manager returned an unsuccessful result while installing the plugins: %v", err),
			err,
		)
	}
	return nil
}
