package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestInitializeLoadsDefaults(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyOutputFormat); got != "text" {
		t.Fatalf("expected default %s to be text, got %q", KeyOutputFormat, got)
	}
	if got := GetString(KeyDatabaseDriver); got != "sqlite" {
		t.Fatalf("expected default %s to be sqlite, got %q", KeyDatabaseDriver, got)
	}
	if got := GetString(KeyDatabasePath); !strings.HasSuffix(got, filepath.Join(".plugup", "state.db")) {
		t.Fatalf("expected default %s under ~/.plugup, got %q", KeyDatabasePath, got)
	}
	if got := GetString(KeyFeedURL); got != DefaultFeedURL {
		t.Fatalf("expected default feed url, got %q", got)
	}
	if got := GetDuration(KeyFeedTimeout); got != 30*time.Second {
		t.Fatalf("expected default %s to be 30s, got %v", KeyFeedTimeout, got)
	}
	if GetBool(KeyDownloadStrict) {
		t.Fatalf("expected default %s to be false", KeyDownloadStrict)
	}
	if !GetBool(KeyOutputColor) {
		t.Fatalf("expected default %s to be true", KeyOutputColor)
	}
	if got := GetStringSlice(KeyHostPluginTypes); !reflect.DeepEqual(got, DefaultPluginTypes) {
		t.Fatalf("expected default plugin types, got %v", got)
	}
}

func TestProjectConfigOverridesUser(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "site", "public")
	mustMkdir(t, projectDir)
	projectCfg := filepath.Join(tmp, "site", ".plugup", "config.yaml")
	writeFile(t, projectCfg, `
output:
  format: table
host:
  root: /var/www/site
download:
  strict: true
`)

	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
output:
  format: json
host:
  root: /srv/other
feed:
  timeout: 5s
download:
  strict: false
`)

	if err := Initialize(
		WithWorkingDir(projectDir),
		WithUserConfig(userCfg),
	); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyOutputFormat); got != "table" {
		t.Fatalf("expected project config to win for %s, got %q", KeyOutputFormat, got)
	}
	if got := GetString(KeyHostRoot); got != "/var/www/site" {
		t.Fatalf("expected project host root, got %q", got)
	}
	if !GetBool(KeyDownloadStrict) {
		t.Fatalf("expected download.strict to be true after merging project config")
	}
	if got := GetDuration(KeyFeedTimeout); got != 5*time.Second {
		t.Fatalf("expected user feed timeout to survive, got %v", got)
	}
}

func TestEnvironmentAndOverridesPrecedence(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, "explicit.yaml")
	writeFile(t, projectCfg, `
output:
  format: yaml
database:
  path: /project/state.db
`)

	t.Setenv("PLUGUP_OUTPUT_FORMAT", "json")
	t.Setenv("PLUGUP_DATABASE_PATH", "/env/state.db")
	t.Setenv("PLUGUP_HOST_PLUGIN_TYPES", "mod=mod block=blocks")

	if err := Initialize(
		WithWorkingDir(tmp),
		WithUserConfig(filepath.Join(tmp, "missing.yaml")),
		WithProjectConfig(projectCfg),
	); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyOutputFormat); got != "json" {
		t.Fatalf("expected environment variable to override %s, got %q", KeyOutputFormat, got)
	}
	if got := GetString(KeyDatabasePath); got != "/env/state.db" {
		t.Fatalf("expected env override for %s, got %q", KeyDatabasePath, got)
	}
	if got := GetStringSlice(KeyHostPluginTypes); !reflect.DeepEqual(got, []string{"mod=mod", "block=blocks"}) {
		t.Fatalf("expected env plugin types, got %v", got)
	}

	overrides := map[string]any{
		KeyOutputFormat: "none",
		KeyHostRoot:     "/flag/root",
	}
	if err := ApplyOverrides(overrides); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}

	if got := GetString(KeyOutputFormat); got != "none" {
		t.Fatalf("expected CLI override for %s, got %q", KeyOutputFormat, got)
	}
	if got := GetString(KeyHostRoot); got != "/flag/root" {
		t.Fatalf("expected CLI override for %s, got %q", KeyHostRoot, got)
	}
}

func TestInitializeRejectsMalformedConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, "output: [unterminated\n")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err == nil {
		t.Fatal("expected parse error for malformed user config")
	}
}

func TestEmptyConfigFileIsIgnored(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, "\n   \n")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if got := GetString(KeyLogLevel); got != "warn" {
		t.Fatalf("expected default log level, got %q", got)
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
