package host

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"plugup/internal/domain"
	appErrors "plugup/internal/errors"
)

var testTypes = []string{"mod=mod", "block=blocks", "local=local"}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "version.php"), `<?php
defined('MOODLE_INTERNAL') || die();
$version  = 2024100700.00;
$release  = '4.5 (Build: 20241007)';
$branch   = '405';
$maturity = MATURITY_STABLE;
`)
	writeFile(t, filepath.Join(root, "mod", "forum", "version.php"), `<?php
$plugin->version   = 2024100700;
$plugin->requires  = 2024100100;
$plugin->component = 'mod_forum';
`)
	writeFile(t, filepath.Join(root, "mod", "forum", "lang", "en", "forum.php"), `<?php
$string['modulename'] = 'Forum';
$string['pluginname'] = 'Forum';
`)
	writeFile(t, filepath.Join(root, "mod", "attendance", "version.php"), `<?php
$plugin->version  = 2023020107;
$plugin->release  = '4.1.3';
`)
	writeFile(t, filepath.Join(root, "blocks", "xp", "version.php"), `<?php
$plugin->component = "block_xp";
$plugin->version = '2024072401';
`)
	writeFile(t, filepath.Join(root, "blocks", "xp", "lang", "en", "block_xp.php"), `<?php
$string['pluginname'] = 'Level Up XP! It\'s fun';
`)
	// Not a plugin: no version.php.
	if err := os.MkdirAll(filepath.Join(root, "blocks", "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestScanReadsCoreAndPlugins(t *testing.T) {
	root := newSite(t)
	inst, err := Scan(context.Background(), Options{Root: root, PluginTypes: testTypes})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if inst.Version != 2024100700 {
		t.Errorf("core version = %d, want 2024100700", inst.Version)
	}
	if inst.Branch != "405" {
		t.Errorf("branch = %q, want 405", inst.Branch)
	}
	if inst.Release != "4.5 (Build: 20241007)" {
		t.Errorf("release = %q", inst.Release)
	}

	want := []string{"mod_attendance", "mod_forum", "block_xp"}
	if got := inst.Components(); !reflect.DeepEqual(got, want) {
		t.Fatalf("components = %v, want %v", got, want)
	}

	forum, ok := inst.Plugin("forum")
	if !ok {
		t.Fatal("bare name should resolve to mod_forum")
	}
	if forum.DisplayName != "Forum" || forum.Version != 2024100700 {
		t.Errorf("unexpected forum plugin: %+v", forum)
	}

	att, _ := inst.Plugin("mod_attendance")
	if att.DisplayName != "mod_attendance" {
		t.Errorf("missing language pack should fall back to component, got %q", att.DisplayName)
	}
	if att.Release != "4.1.3" {
		t.Errorf("release = %q", att.Release)
	}

	xp, _ := inst.Plugin("block_xp")
	if xp.DisplayName != "Level Up XP! It's fun" {
		t.Errorf("display name = %q", xp.DisplayName)
	}
	if xp.Version != domain.Version(2024072401) {
		t.Errorf("quoted version = %d", xp.Version)
	}

	if _, ok := inst.Plugin("block_scratch"); ok {
		t.Error("directory without version.php must not be a plugin")
	}
	if dir, ok := inst.PluginTypeDir("block"); !ok || dir != filepath.Join(root, "blocks") {
		t.Errorf("PluginTypeDir(block) = %q, %v", dir, ok)
	}
	if _, ok := inst.PluginTypeDir("theme"); ok {
		t.Error("unconfigured type should be unknown")
	}
}

func TestScanConfigOverridesCore(t *testing.T) {
	root := newSite(t)
	inst, err := Scan(context.Background(), Options{Root: root, PluginTypes: testTypes, Version: "2025041400", Branch: "500"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if inst.Version != 2025041400 || inst.Branch != "500" {
		t.Fatalf("overrides not applied: %d %s", inst.Version, inst.Branch)
	}
}

func TestScanMissingCoreVersion(t *testing.T) {
	root := t.TempDir()
	_, err := Scan(context.Background(), Options{Root: root, PluginTypes: testTypes})
	if !appErrors.IsCode(err, appErrors.CodeHostInvalid) {
		t.Fatalf("expected host_invalid, got %v", err)
	}

	inst, err := Scan(context.Background(), Options{Root: root, PluginTypes: testTypes, Version: "2024100700", Branch: "405"})
	if err != nil {
		t.Fatalf("explicit version and branch should suffice: %v", err)
	}
	if len(inst.Plugins()) != 0 {
		t.Fatalf("expected no plugins, got %d", len(inst.Plugins()))
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), Options{Root: filepath.Join(t.TempDir(), "nope")})
	if !appErrors.IsCode(err, appErrors.CodeHostInvalid) {
		t.Fatalf("expected host_invalid, got %v", err)
	}
}

func TestParsePluginTypes(t *testing.T) {
	types, err := ParsePluginTypes("/site", []string{"mod=mod", " tool = admin/tool "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []PluginType{
		{Name: "mod", Dir: filepath.Join("/site", "mod")},
		{Name: "tool", Dir: filepath.Join("/site", "admin", "tool")},
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("types = %+v, want %+v", types, want)
	}

	for _, bad := range [][]string{
		{"mod"},
		{"=mod"},
		{"mod=mod", "mod=other"},
		{"mod=../outside"},
		{"mod=/abs"},
	} {
		if _, err := ParsePluginTypes("/site", bad); err == nil {
			t.Errorf("ParsePluginTypes(%v) should fail", bad)
		}
	}
}

func TestWritable(t *testing.T) {
	dir := t.TempDir()
	if !Writable(dir) {
		t.Fatal("temp dir should be writable")
	}
	if Writable(filepath.Join(dir, "missing")) {
		t.Fatal("missing dir should not be writable")
	}
}
