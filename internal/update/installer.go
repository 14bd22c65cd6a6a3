package update

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: the distribution service publishes MD5 package checksums
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plugup/internal/domain"
)

// Error variables for installer-specific errors.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrChecksumMismatch = errors.New("checksum verification failed")
	ErrDownloadFailed   = errors.New("download failed")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrInvalidPackage   = errors.New("invalid plugin package")
)

const (
	backupSuffix = ".backup"
	stagePrefix  = ".plugup-stage-"
	versionFile  = "version.php"
)

// rename is a variable so tests can inject swap failures.
var rename = os.Rename

// Installer downloads plugin packages and installs them as one batch.
type Installer struct {
	httpClient *http.Client
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithInstallerHTTPClient sets a custom HTTP client for package downloads.
func WithInstallerHTTPClient(client *http.Client) InstallerOption {
	return func(i *Installer) {
		i.httpClient = client
	}
}

// WithDownloadTimeout bounds each package download. Zero means no timeout.
func WithDownloadTimeout(timeout time.Duration) InstallerOption {
	return func(i *Installer) {
		i.httpClient.Timeout = timeout
	}
}

// NewInstaller creates an installer.
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{
		httpClient: &http.Client{
			Timeout: 0, // No timeout for downloads
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type staged struct {
	pkg      domain.RemoteInstallable
	stageDir string
	dir      string
	backup   string
	swapped  bool
}

// Install stages every package of the batch and only then swaps them into
// place. If any package fails to stage nothing is touched. If a swap fails,
// plugins swapped so far are restored from their backups.
func (i *Installer) Install(ctx context.Context, batch []domain.RemoteInstallable) error {
	if len(batch) == 0 {
		return nil
	}
	if err := checkBatch(batch); err != nil {
		return err
	}

	var stages []*staged
	defer func() {
		for _, s := range stages {
			_ = os.RemoveAll(s.stageDir)
		}
	}()

	for _, pkg := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := i.stage(ctx, pkg)
		if s != nil {
			stages = append(stages, s)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", pkg.Component, err)
		}
		log.Debug("staged package", "component", pkg.Component, "version", pkg.Version, "dir", s.dir)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	for idx, s := range stages {
		if err := swap(s); err != nil {
			rollback(stages[:idx])
			return err
		}
	}
	for _, s := range stages {
		if s.backup != "" {
			_ = os.RemoveAll(s.backup)
		}
	}
	return nil
}

func checkBatch(batch []domain.RemoteInstallable) error {
	seen := make(map[string]string, len(batch))
	for _, pkg := range batch {
		if pkg.TargetDir == "" || !filepath.IsAbs(pkg.TargetDir) {
			return fmt.Errorf("%w: %s has no absolute target directory", ErrInvalidPackage, pkg.Component)
		}
		if pkg.DownloadURL == "" {
			return fmt.Errorf("%w: %s has no download URL", ErrInvalidPackage, pkg.Component)
		}
		target := filepath.Clean(pkg.TargetDir)
		if other, dup := seen[target]; dup {
			return fmt.Errorf("%w: %s and %s share %s", ErrInvalidPackage, other, pkg.Component, target)
		}
		seen[target] = pkg.Component
	}
	return nil
}

func (i *Installer) stage(ctx context.Context, pkg domain.RemoteInstallable) (*staged, error) {
	parent := filepath.Dir(filepath.Clean(pkg.TargetDir))
	if err := checkWritePermission(parent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	dir, err := os.MkdirTemp(parent, stagePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	s := &staged{pkg: pkg, stageDir: dir}

	archive := filepath.Join(dir, "package")
	if err := i.download(ctx, pkg.DownloadURL, archive); err != nil {
		return s, err
	}
	if pkg.DownloadMD5 != "" {
		if err := VerifyChecksum(archive, pkg.DownloadMD5); err != nil {
			return s, err
		}
	}

	extractDir := filepath.Join(dir, "extract")
	if err := extractArchive(archive, extractDir); err != nil {
		return s, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	pluginDir, err := validatePackage(extractDir, pkg.Name())
	if err != nil {
		return s, err
	}
	s.dir = pluginDir
	return s, nil
}

func (i *Installer) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	//nolint:gosec // G304: destination is inside our staging directory
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create package file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return out.Close()
}

// validatePackage checks that the archive held a single directory named
// after the plugin containing a version.php, and returns its path.
func validatePackage(extractDir, name string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	var roots []fs.DirEntry
	for _, e := range entries {
		if e.Name() == "__MACOSX" {
			continue
		}
		roots = append(roots, e)
	}
	if len(roots) != 1 || !roots[0].IsDir() {
		return "", fmt.Errorf("%w: expected a single top-level directory %q", ErrInvalidPackage, name)
	}
	if roots[0].Name() != name {
		return "", fmt.Errorf("%w: top-level directory is %q, expected %q", ErrInvalidPackage, roots[0].Name(), name)
	}
	dir := filepath.Join(extractDir, name)
	if _, err := os.Stat(filepath.Join(dir, versionFile)); err != nil {
		return "", fmt.Errorf("%w: %s missing", ErrInvalidPackage, versionFile)
	}
	return dir, nil
}

func swap(s *staged) error {
	target := filepath.Clean(s.pkg.TargetDir)
	_, err := os.Lstat(target)
	switch {
	case err == nil:
		backup := target + backupSuffix
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("remove stale backup %s: %w", backup, err)
		}
		if err := rename(target, backup); err != nil {
			return fmt.Errorf("backup %s: %w", target, err)
		}
		s.backup = backup
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if err := rename(s.dir, target); err != nil {
		if s.backup != "" {
			_ = os.Rename(s.backup, target)
			s.backup = ""
		}
		return fmt.Errorf("install %s: %w", s.pkg.Component, err)
	}
	s.swapped = true
	log.Info("installed plugin", "component", s.pkg.Component, "version", s.pkg.Version, "dir", target)
	return nil
}

// rollback restores swapped plugins in reverse order.
func rollback(stages []*staged) {
	for idx := len(stages) - 1; idx >= 0; idx-- {
		s := stages[idx]
		if !s.swapped {
			continue
		}
		target := filepath.Clean(s.pkg.TargetDir)
		if err := os.RemoveAll(target); err != nil {
			log.Error("rollback: remove new plugin", "component", s.pkg.Component, "error", err)
			continue
		}
		if s.backup == "" {
			continue
		}
		if err := os.Rename(s.backup, target); err != nil {
			log.Error("rollback: restore backup", "component", s.pkg.Component, "backup", s.backup, "error", err)
			continue
		}
		s.backup = ""
		log.Warn("rolled back plugin", "component", s.pkg.Component)
	}
}

// checkWritePermission verifies the current process can write to dir.
func checkWritePermission(dir string) error {
	testFile := filepath.Join(dir, ".plugup-write-test")

	//nolint:gosec // G304: Path is constructed from the plugin type directory
	f, err := os.Create(testFile)
	if err != nil {
		return err
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return nil
}

// VerifyChecksum verifies a file against an expected MD5 checksum.
func VerifyChecksum(path, expected string) error {
	//nolint:gosec // G304: Path comes from caller; this is intentional for checksum verification
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	//nolint:gosec // G401: MD5 is what the distribution service publishes
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}

	return nil
}
