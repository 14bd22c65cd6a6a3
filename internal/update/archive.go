package update

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// extractArchive unpacks a zip or tar.gz archive into destDir, detecting
// the format from its leading bytes.
func extractArchive(path, destDir string) error {
	//nolint:gosec // G304: archive lives in our staging directory
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("read archive header: %w", err)
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}

	//nolint:gosec // G301: extracted plugin directories need standard permissions
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, zipMagic):
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat archive: %w", err)
		}
		return extractZip(f, info.Size(), destDir)
	case bytes.HasPrefix(head, gzipMagic):
		return extractTarball(f, destDir)
	default:
		return fmt.Errorf("unsupported archive format")
	}
}

func extractZip(r io.ReaderAt, size int64, destDir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("read zip: %w", err)
	}
	for _, f := range zr.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			//nolint:gosec // G301: extracted plugin directories need standard permissions
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Name, err)
			}
			err = writeExtracted(target, rc, mode)
			_ = rc.Close()
			if err != nil {
				return err
			}
		default:
			log.Debug("skipping non-regular archive entry", "name", f.Name)
		}
	}
	return nil
}

// extractTarball extracts a .tar.gz archive into destDir.
func extractTarball(r io.Reader, destDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			//nolint:gosec // G301: extracted plugin directories need standard permissions
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeExtracted(target, tr, header.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			log.Debug("skipping non-regular archive entry", "name", header.Name)
		}
	}
	return nil
}

func writeExtracted(target string, r io.Reader, mode os.FileMode) error {
	//nolint:gosec // G301: extracted plugin directories need standard permissions
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	perm := os.FileMode(0644)
	if mode&0100 != 0 {
		perm = 0755
	}
	//nolint:gosec // G304: target is validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	//nolint:gosec // G110: plugin packages come from a checksummed source
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract file: %w", err)
	}
	return out.Close()
}

// safeJoin resolves an archive entry name below destDir, rejecting entries
// that would escape it.
func safeJoin(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return filepath.Join(destDir, clean), nil
}
