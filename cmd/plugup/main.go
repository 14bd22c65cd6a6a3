package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"plugup/internal/config"
	"plugup/internal/debug"
	appErrors "plugup/internal/errors"
	"plugup/internal/host"
	"plugup/internal/manager"
	"plugup/internal/selector"
	"plugup/internal/store"
	"plugup/internal/update"
)

var log = debug.L("cli")

// pluginManager is what the commands need from the concrete manager.
type pluginManager interface {
	selector.UpdateFeed
	selector.InstallabilityResolver
	selector.Installer
	Installation() *host.Installation
	DisplayName(component string) string
	LastFetch(ctx context.Context) (store.FetchState, bool, error)
}

// managerFactory builds the manager once configuration is loaded. The
// returned func releases its resources.
type managerFactory func(ctx context.Context) (pluginManager, func(), error)

type app struct {
	out        io.Writer
	errOut     io.Writer
	newManager managerFactory

	root       string
	configPath string
	debug      bool
	logLevel   string
	logFormat  string
	noColor    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	a := &app{out: os.Stdout, errOut: os.Stderr, newManager: openManager}
	err := newRootCmd(a).ExecuteContext(ctx)
	debug.Close()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plugup",
		Short:         "Fetch and install plugin updates for a host installation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.root, "root", "", "installation root directory (default from config, \".\")")
	flags.StringVar(&a.configPath, "config", "", "config file to use instead of .plugup/config.yaml discovery")
	flags.BoolVar(&a.debug, "debug", false, "write a debug log to ~/.plugup/debug.log")
	flags.StringVar(&a.logLevel, "loglevel", "", "console log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "logformat", "", "console log format: text or json")
	flags.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	cmd.AddCommand(newFetchCmd(a), newDownloadCmd(a), newVersionCmd())
	return cmd
}

// setup loads configuration, applies flag overrides and starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	var opts []config.Option
	if a.configPath != "" {
		opts = append(opts, config.WithProjectConfig(a.configPath))
	}
	if err := config.Initialize(opts...); err != nil {
		return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("load configuration: %v", err), err)
	}

	flags := cmd.Flags()
	overrides := map[string]any{}
	if flags.Changed("root") {
		overrides[config.KeyHostRoot] = a.root
	}
	if flags.Changed("loglevel") {
		overrides[config.KeyLogLevel] = a.logLevel
	}
	if flags.Changed("logformat") {
		overrides[config.KeyLogFormat] = a.logFormat
	}
	if flags.Changed("no-color") {
		overrides[config.KeyOutputColor] = !a.noColor
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		return appErrors.New(appErrors.CodeConfigurationError, err.Error(), err)
	}

	err := debug.Init(debug.Options{
		Debug:  a.debug,
		Level:  config.GetString(config.KeyLogLevel),
		Format: config.GetString(config.KeyLogFormat),
		Stderr: a.errOut,
	})
	if err != nil {
		return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("configure logging: %v", err), err)
	}
	log.Debug("configuration loaded", "root", config.GetString(config.KeyHostRoot), "database", config.GetString(config.KeyDatabaseDriver))
	return nil
}

// openManager wires the concrete manager from configuration.
func openManager(ctx context.Context) (pluginManager, func(), error) {
	inst, err := host.Scan(ctx, host.Options{
		Root:        config.GetString(config.KeyHostRoot),
		PluginTypes: config.GetStringSlice(config.KeyHostPluginTypes),
		Version:     config.GetString(config.KeyHostVersion),
		Branch:      config.GetString(config.KeyHostBranch),
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Driver: config.GetString(config.KeyDatabaseDriver),
		Path:   config.GetString(config.KeyDatabasePath),
		DSN:    config.GetString(config.KeyDatabaseDSN),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	timeout := config.GetDuration(config.KeyFeedTimeout)
	opts := manager.Options{
		Installation: inst,
		Store:        st,
		Feed:         update.NewFeedClient(config.GetString(config.KeyFeedURL), update.WithTimeout(timeout)),
		Installer:    update.NewInstaller(update.WithDownloadTimeout(config.GetDuration(config.KeyDownloadTimeout))),
	}
	if url := config.GetString(config.KeyDirectoryURL); url != "" {
		opts.Directory = update.NewDirectoryClient(url, update.WithTimeout(timeout))
	}

	release := func() {
		if err := st.Close(); err != nil {
			log.Warn("closing state database failed", "error", err)
		}
	}
	return manager.New(opts), release, nil
}
