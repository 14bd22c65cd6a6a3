package selector

import (
	"context"
	"fmt"

	"plugup/internal/domain"
	appErrors "plugup/internal/errors"
)

// Progress receives per-candidate events while a batch is prepared.
type Progress interface {
	Preparing(candidate domain.UpdateCandidate)
	Ready(candidate domain.UpdateCandidate, installable domain.RemoteInstallable)
	Skipped(candidate domain.UpdateCandidate)
}

// Options control batch preparation.
type Options struct {
	// Strict aborts preparation at the first candidate that cannot be
	// updated remotely.
	Strict   bool
	Progress Progress
}

// Batch is the outcome of preparing a set of candidates.
type Batch struct {
	Installables []domain.RemoteInstallable
	Skipped      []domain.UpdateCandidate
}

// Empty reports whether there is nothing to install.
func (b Batch) Empty() bool {
	return len(b.Installables) == 0
}

// Prepare resolves every candidate in order. Each resolution finishes
// before the candidate is reported ready or skipped.
func Prepare(ctx context.Context, candidates []domain.UpdateCandidate, resolver InstallabilityResolver, opts Options) (Batch, error) {
	progress := opts.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	var batch Batch
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		progress.Preparing(candidate)

		installable, err := ResolveInstallable(ctx, candidate, resolver)
		if err != nil {
			return Batch{}, err
		}
		if installable == nil {
			progress.Skipped(candidate)
			batch.Skipped = append(batch.Skipped, candidate)
			if opts.Strict {
				return Batch{}, unresolvableError(candidate)
			}
			continue
		}
		progress.Ready(candidate, *installable)
		batch.Installables = append(batch.Installables, *installable)
	}
	return batch, nil
}

func unresolvableError(candidate domain.UpdateCandidate) error {
	return appErrors.New(
		appErrors.CodeUnresolvableRemote,
		fmt.Sprintf("stopped because %s cannot be updated remotely", candidate.Component),
		nil,
	)
}

type nopProgress struct{}

func (nopProgress) Preparing(domain.UpdateCandidate)                       {}
func (nopProgress) Ready(domain.UpdateCandidate, domain.RemoteInstallable) {}
func (nopProgress) Skipped(domain.UpdateCandidate)                         {}
