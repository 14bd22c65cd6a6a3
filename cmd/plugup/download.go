package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"plugup/internal/config"
	"plugup/internal/domain"
	appErrors "plugup/internal/errors"
	"plugup/internal/render"
	"plugup/internal/selector"
)

const upgradeNote = "Plugins have been installed. Please run the host upgrade script (admin/cli/upgrade.php) or visit site administration in a browser to upgrade the database."

func newDownloadCmd(a *app) *cobra.Command {
	var (
		custom string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and install available plugin updates",
		Example: `  plugup download
  plugup download --custom mod_forum
  plugup download -c mod_forum:2025041400 --strict-all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("strict-all") {
				strict = config.GetBool(config.KeyDownloadStrict)
			}
			return a.runDownload(cmd.Context(), cmd.OutOrStdout(), custom, strict)
		},
	}
	cmd.Flags().StringVarP(&custom, "custom", "c", "", `only update this plugin, as "name" or "name:version"`)
	cmd.Flags().BoolVar(&strict, "strict-all", false, "abort if any plugin cannot be updated remotely")
	return cmd
}

func (a *app) runDownload(ctx context.Context, out io.Writer, custom string, strict bool) error {
	var target *domain.Target
	if strings.TrimSpace(custom) != "" {
		t, err := domain.ParseTarget(custom)
		if err != nil {
			return appErrors.New(appErrors.CodeInvalidArgument, err.Error(), err)
		}
		target = &t
	}

	m, release, err := a.newManager(ctx)
	if err != nil {
		return err
	}
	defer release()

	candidates, err := selectCandidates(ctx, m, target)
	if err != nil {
		if appErrors.IsFatal(err) {
			return err
		}
		log.Info("no matching update", "reason", err)
		candidates = nil
	}
	if len(candidates) == 0 {
		_, _ = fmt.Fprintln(out, "Nothing to install.")
		return nil
	}

	styles := render.NewStyles(out, config.GetBool(config.KeyOutputColor))
	batch, err := selector.Prepare(ctx, candidates, m, selector.Options{
		Strict:   strict,
		Progress: render.NewProgress(out, styles),
	})
	if err != nil {
		return err
	}
	if len(batch.Skipped) > 0 {
		log.Warn("some plugins cannot be updated remotely", "skipped", len(batch.Skipped))
	}
	if batch.Empty() {
		_, _ = fmt.Fprintln(out, "Nothing to install.")
		return nil
	}

	_, _ = fmt.Fprint(out, "Installing...")
	if err := selector.InstallAll(ctx, batch.Installables, m); err != nil {
		_, _ = fmt.Fprintln(out)
		return err
	}
	_, _ = fmt.Fprintln(out, styles.OK())
	render.WriteNote(out, upgradeNote)
	return nil
}

// selectCandidates picks the updates to install: the latest update of every
// installed plugin, or the single update a target asks for.
func selectCandidates(ctx context.Context, m pluginManager, target *domain.Target) ([]domain.UpdateCandidate, error) {
	if target == nil {
		report, err := selector.Gather(ctx, m, m.Installation().Components())
		if err != nil {
			return nil, err
		}
		return report.Updates(), nil
	}

	if _, ok := m.Installation().Plugin(target.Component); !ok {
		return nil, appErrors.New(appErrors.CodeUnknownComponent, fmt.Sprintf("plugin %q not found", target.Component), nil)
	}
	candidates, err := m.Candidates(ctx, target.Component)
	if err != nil {
		return nil, err
	}

	var (
		chosen domain.UpdateCandidate
		ok     bool
	)
	if target.Pinned() {
		chosen, ok = selector.SelectExact(candidates, target.Version)
	} else {
		chosen, ok = selector.SelectLatest(candidates)
	}
	if !ok {
		return nil, appErrors.New(appErrors.CodeNoCandidates, fmt.Sprintf("no update available for %s", target), nil)
	}
	return []domain.UpdateCandidate{chosen}, nil
}
