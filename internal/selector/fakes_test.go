package selector

import (
	"context"
	"fmt"

	"plugup/internal/domain"
)

func cand(component string, version domain.Version) domain.UpdateCandidate {
	return domain.UpdateCandidate{Component: component, Version: version}
}

type key struct {
	component string
	version   domain.Version
}

// fakeResolver answers from fixed tables and records every call.
type fakeResolver struct {
	installable map[key]bool
	remote      map[key]*domain.RemoteInstallable
	err         error

	installableCalls []key
	remoteCalls      []key
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		installable: make(map[key]bool),
		remote:      make(map[key]*domain.RemoteInstallable),
	}
}

// allow marks the candidate installable with matching remote info.
func (f *fakeResolver) allow(c domain.UpdateCandidate) {
	k := key{c.Component, c.Version}
	f.installable[k] = true
	f.remote[k] = &domain.RemoteInstallable{Component: c.Component, Version: c.Version, DownloadURL: "https://example.test/" + c.Component + ".zip"}
}

func (f *fakeResolver) IsInstallable(_ context.Context, component string, version domain.Version) (bool, error) {
	k := key{component, version}
	f.installableCalls = append(f.installableCalls, k)
	if f.err != nil {
		return false, f.err
	}
	return f.installable[k], nil
}

func (f *fakeResolver) RemoteInfo(_ context.Context, component string, version domain.Version) (*domain.RemoteInstallable, error) {
	k := key{component, version}
	f.remoteCalls = append(f.remoteCalls, k)
	return f.remote[k], nil
}

type fakeInstaller struct {
	calls [][]domain.RemoteInstallable
	err   error
}

func (f *fakeInstaller) InstallBatch(_ context.Context, batch []domain.RemoteInstallable) error {
	f.calls = append(f.calls, append([]domain.RemoteInstallable(nil), batch...))
	return f.err
}

type fakeFeed struct {
	candidates map[string][]domain.UpdateCandidate
	failFor    string
	asked      []string
}

func (f *fakeFeed) Fetch(context.Context) error { return nil }

func (f *fakeFeed) Candidates(_ context.Context, component string) ([]domain.UpdateCandidate, error) {
	f.asked = append(f.asked, component)
	if component == f.failFor {
		return nil, fmt.Errorf("cache unreadable")
	}
	return f.candidates[component], nil
}

type recordingProgress struct {
	events []string
}

func (p *recordingProgress) Preparing(c domain.UpdateCandidate) {
	p.events = append(p.events, "preparing "+c.Component)
}

func (p *recordingProgress) Ready(c domain.UpdateCandidate, _ domain.RemoteInstallable) {
	p.events = append(p.events, "ready "+c.Component)
}

func (p *recordingProgress) Skipped(c domain.UpdateCandidate) {
	p.events = append(p.events, "skipped "+c.Component)
}
