package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plugup/internal/config"
	appErrors "plugup/internal/errors"
	"plugup/internal/render"
	"plugup/internal/selector"
)

func newFetchCmd(a *app) *cobra.Command {
	output := render.FormatText
	refresh := true

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the update feed and report available plugin updates",
		Example: `  plugup fetch
  plugup fetch --fetch=false -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("output") {
				configured, err := render.ParseFormat(config.GetString(config.KeyOutputFormat))
				if err != nil {
					return appErrors.New(appErrors.CodeInvalidArgument, err.Error(), err)
				}
				output = configured
			}
			return a.runFetch(cmd.Context(), cmd.OutOrStdout(), output, refresh)
		},
	}
	cmd.Flags().VarP(&output, "output", "o", "output format")
	cmd.Flags().BoolVar(&refresh, "fetch", true, "refresh the update feed; false reports from the last fetch")
	return cmd
}

func (a *app) runFetch(ctx context.Context, out io.Writer, format render.Format, refresh bool) error {
	m, release, err := a.newManager(ctx)
	if err != nil {
		return err
	}
	defer release()

	styles := render.NewStyles(out, config.GetBool(config.KeyOutputColor))
	// Structured formats own stdout.
	chatty := !format.Structured()

	if refresh {
		if chatty {
			_, _ = fmt.Fprint(out, "Fetching updates...")
		}
		if err := m.Fetch(ctx); err != nil {
			if chatty {
				_, _ = fmt.Fprintln(out)
			}
			return err
		}
		if chatty {
			_, _ = fmt.Fprintln(out, styles.Done())
		}
	} else {
		if chatty {
			_, _ = fmt.Fprintln(out, "Fetching skipped.")
		}
		state, ok, err := m.LastFetch(ctx)
		if err != nil {
			return err
		}
		if ok {
			log.Info("reporting from cached feed", "fetched_at", state.FetchedAt, "provider", state.Provider)
		} else {
			log.Warn("update feed has never been fetched; run fetch without --fetch=false")
		}
	}

	if format == render.FormatNone {
		_, _ = fmt.Fprintln(out, "Finish")
		return nil
	}

	report, err := selector.Gather(ctx, m, m.Installation().Components())
	if err != nil {
		return err
	}
	return render.WriteReport(out, format, render.Records(report, m.DisplayName))
}
