package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyHostRoot        = "host.root"
	KeyHostVersion     = "host.version"
	KeyHostBranch      = "host.branch"
	KeyHostPluginTypes = "host.plugin-types"

	KeyDatabaseDriver = "database.driver"
	KeyDatabasePath   = "database.path"
	KeyDatabaseDSN    = "database.dsn"

	KeyFeedURL      = "feed.url"
	KeyFeedTimeout  = "feed.timeout"
	KeyDirectoryURL = "directory.url"

	KeyDownloadTimeout = "download.timeout"
	KeyDownloadStrict  = "download.strict"

	KeyOutputFormat = "output.format"
	KeyOutputColor  = "output.color"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
)

const (
	// DefaultFeedURL is the public plugin update feed.
	DefaultFeedURL = "https://download.moodle.org/api/1.3/updates.php"
	// DefaultDirectoryURL is the public plugin directory info endpoint.
	DefaultDirectoryURL = "https://download.moodle.org/api/1.3/pluginfo.php"
	// DefaultFeedTimeout bounds a single feed or directory request.
	DefaultFeedTimeout = 30 * time.Second

	dirName        = ".plugup"
	configFileName = "config.yaml"
	envPrefix      = "PLUGUP"
)

// DefaultPluginTypes lists plugin types and their directories relative to
// the installation root, in the order plugins are reported.
var DefaultPluginTypes = []string{
	"mod=mod",
	"antivirus=lib/antivirus",
	"availability=availability/condition",
	"qtype=question/type",
	"qbehaviour=question/behaviour",
	"qformat=question/format",
	"filter=filter",
	"editor=lib/editor",
	"enrol=enrol",
	"auth=auth",
	"tool=admin/tool",
	"logstore=admin/tool/log/store",
	"block=blocks",
	"format=course/format",
	"report=report",
	"gradeexport=grade/export",
	"gradeimport=grade/import",
	"gradereport=grade/report",
	"repository=repository",
	"portfolio=portfolio",
	"theme=theme",
	"local=local",
}

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice fetches a list configuration value, initializing on demand.
func GetStringSlice(key string) []string {
	v, err := getViper()
	if err != nil {
		return nil
	}
	return v.GetStringSlice(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := setDefaults(v); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// StateDir returns ~/.plugup, where user config, state and logs live.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func defaultUserConfigPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, dirName, configFileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) error {
	stateDir, err := StateDir()
	if err != nil {
		return err
	}
	v.SetDefault(KeyHostRoot, ".")
	v.SetDefault(KeyHostVersion, "")
	v.SetDefault(KeyHostBranch, "")
	v.SetDefault(KeyHostPluginTypes, DefaultPluginTypes)
	v.SetDefault(KeyDatabaseDriver, "sqlite")
	v.SetDefault(KeyDatabasePath, filepath.Join(stateDir, "state.db"))
	v.SetDefault(KeyDatabaseDSN, "")
	v.SetDefault(KeyFeedURL, DefaultFeedURL)
	v.SetDefault(KeyFeedTimeout, DefaultFeedTimeout)
	v.SetDefault(KeyDirectoryURL, DefaultDirectoryURL)
	v.SetDefault(KeyDownloadTimeout, time.Duration(0))
	v.SetDefault(KeyDownloadStrict, false)
	v.SetDefault(KeyOutputFormat, "text")
	v.SetDefault(KeyOutputColor, true)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	return nil
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages and
// initializes from an empty temp directory. Returns a cleanup function.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml")))
	return reset
}
