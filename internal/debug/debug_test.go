package debug

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetForTest() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	enabled = false
	root = slog.NewTextHandler(io.Discard, nil)
}

func useTempLogPath(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, LogDirName, LogFileName)
	origGetLogPath := getLogPath
	getLogPath = func() (string, error) {
		return logPath, nil
	}
	t.Cleanup(func() {
		getLogPath = origGetLogPath
		Close()
		resetForTest()
	})
	return logPath
}

func TestInit_Disabled(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	var stderr bytes.Buffer
	if err := Init(Options{Level: "warn", Stderr: &stderr}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Enabled() {
		t.Error("Enabled() should return false without Debug")
	}

	logger := L("fetch")
	logger.Info("hidden")
	logger.Warn("shown", "plugin", "mod_forum")

	out := stderr.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "component=fetch") || !strings.Contains(out, "plugin=mod_forum") {
		t.Errorf("unexpected stderr output: %s", out)
	}
}

func TestInit_Enabled(t *testing.T) {
	resetForTest()
	logPath := useTempLogPath(t)

	if err := Init(Options{Debug: true, Level: "error", Stderr: io.Discard}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !Enabled() {
		t.Error("Enabled() should return true with Debug")
	}

	L("manager").Debug("resolving", "version", 2025041400)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	contentStr := string(content)
	if !strings.Contains(contentStr, "debug log started") {
		t.Error("Log file should contain startup message")
	}
	if !strings.Contains(contentStr, "msg=resolving") || !strings.Contains(contentStr, "version=2025041400") {
		t.Errorf("Log file should contain debug record, got: %s", contentStr)
	}
}

func TestInit_TruncatesExistingLog(t *testing.T) {
	resetForTest()
	logPath := useTempLogPath(t)

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("old content from previous run\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := Init(Options{Debug: true, Stderr: io.Discard}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(content), "old content") {
		t.Error("log file should be truncated on Init")
	}
}

func TestLoggerCreatedBeforeInitFollowsConfiguration(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	logger := L("early").With("run", "a")

	var stderr bytes.Buffer
	if err := Init(Options{Level: "info", Format: "json", Stderr: &stderr}); err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")

	out := stderr.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"component":"early"`) || !strings.Contains(out, `"run":"a"`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestInitRejectsBadSettings(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	if err := Init(Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := Init(Options{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelWarn,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	resetForTest()
	Close()
	Close()
}
