// Package selector picks the update to apply for each plugin and turns the
// picks into an installable batch.
//
// All plugin-manager work (fetching the feed, checking installability,
// installing) happens behind the UpdateFeed, InstallabilityResolver and
// Installer interfaces. The selector itself is pure apart from those calls.
package selector

import (
	"context"
	"fmt"

	"plugup/internal/domain"
)

// SelectLatest returns the candidate with the highest version. The current
// maximum is only replaced by a strictly greater version, so among equal
// versions the first one encountered wins.
func SelectLatest(candidates []domain.UpdateCandidate) (domain.UpdateCandidate, bool) {
	if len(candidates) == 0 {
		return domain.UpdateCandidate{}, false
	}
	latest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Version > latest.Version {
			latest = c
		}
	}
	return latest, true
}

// SelectExact returns the first candidate whose version equals target.
func SelectExact(candidates []domain.UpdateCandidate, target domain.Version) (domain.UpdateCandidate, bool) {
	for _, c := range candidates {
		if c.Version == target {
			return c, true
		}
	}
	return domain.UpdateCandidate{}, false
}

// Group holds the candidates considered for one component.
type Group struct {
	Component  string
	Candidates []domain.UpdateCandidate
}

// Entry is one line of a report.
type Entry struct {
	Component string
	Update    domain.UpdateCandidate
}

// Report maps components to their chosen update, in input order.
type Report struct {
	entries []Entry
	index   map[string]int
}

// BuildReport applies SelectLatest to every group. Groups without
// candidates are left out.
func BuildReport(groups []Group) Report {
	r := Report{index: make(map[string]int, len(groups))}
	for _, g := range groups {
		latest, ok := SelectLatest(g.Candidates)
		if !ok {
			continue
		}
		if i, seen := r.index[g.Component]; seen {
			// A repeated component keeps its first position; the later
			// group only wins with a strictly greater version.
			if latest.Version > r.entries[i].Update.Version {
				r.entries[i].Update = latest
			}
			continue
		}
		r.index[g.Component] = len(r.entries)
		r.entries = append(r.entries, Entry{Component: g.Component, Update: latest})
	}
	return r
}

// Entries returns the report lines in order.
func (r Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Updates returns the chosen candidates in order.
func (r Report) Updates() []domain.UpdateCandidate {
	updates := make([]domain.UpdateCandidate, 0, len(r.entries))
	for _, e := range r.entries {
		updates = append(updates, e.Update)
	}
	return updates
}

// Lookup returns the chosen update for a component.
func (r Report) Lookup(component string) (domain.UpdateCandidate, bool) {
	i, ok := r.index[component]
	if !ok {
		return domain.UpdateCandidate{}, false
	}
	return r.entries[i].Update, true
}

// Len returns the number of components with an update.
func (r Report) Len() int {
	return len(r.entries)
}

// Gather asks the feed for the candidates of every component, in order, and
// builds the report from them.
func Gather(ctx context.Context, feed UpdateFeed, components []string) (Report, error) {
	groups := make([]Group, 0, len(components))
	for _, component := range components {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		candidates, err := feed.Candidates(ctx, component)
		if err != nil {
			return Report{}, fmt.Errorf("list updates for %s: %w", component, err)
		}
		groups = append(groups, Group{Component: component, Candidates: candidates})
	}
	return BuildReport(groups), nil
}
