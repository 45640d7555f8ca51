package core

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/pathutil"

	"github.com/bodgit/sevenzip"
	"github.com/charmbracelet/log"
	"github.com/nwaples/rardecode/v2"
	"github.com/ulikunitz/xz"
)

// defaultFileMode is used when an archive entry carries no Unix permissions
const defaultFileMode fs.FileMode = 0o755

// Extractor unpacks downloaded archives into the cache
type Extractor struct {
	log *log.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{log: logger}
}

// DetectArchive returns the archive format of path based on its suffix (case-insensitive)
func DetectArchive(path string) (domain.ArchiveKind, error) {
	switch strings.ToLower(pathutil.Ext(path)) {
	case ".zip":
		return domain.ArchiveZip, nil
	case ".7z", ".7zip":
		return domain.ArchiveSevenZip, nil
	case ".rar":
		return domain.ArchiveRar, nil
	case ".tar.gz":
		return domain.ArchiveTarGz, nil
	case ".tar.xz":
		return domain.ArchiveTarXz, nil
	default:
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedArchive, path)
	}
}

// Extract unpacks archivePath into destDir and folds every name in the
// resulting tree to lowercase.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) error {
	kind, err := DetectArchive(archivePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	e.log.Debug("extracting", "archive", filepath.Base(archivePath), "format", kind)

	switch kind {
	case domain.ArchiveZip:
		err = e.extractZip(ctx, archivePath, destDir)
	case domain.ArchiveSevenZip:
		err = e.extract7z(ctx, archivePath, destDir)
	case domain.ArchiveRar:
		err = e.extractRar(ctx, archivePath, destDir)
	case domain.ArchiveTarGz:
		err = e.extractTarGz(ctx, archivePath, destDir)
	case domain.ArchiveTarXz:
		err = e.extractTarXz(ctx, archivePath, destDir)
	}
	if err != nil {
		return err
	}

	if err := pathutil.LowercaseTree(destDir); err != nil {
		return fmt.Errorf("lowercasing %s: %w", destDir, err)
	}
	return nil
}

// extractZip tries the archive's own permissions first. Some archives mark
// directories read-only, which breaks writing their children; the retry pass
// wipes the destination and forces writable directories.
func (e *Extractor) extractZip(ctx context.Context, archivePath, destDir string) error {
	err := e.extractZipPass(ctx, archivePath, destDir, false)
	if err == nil || ctx.Err() != nil {
		return err
	}

	e.log.Warn("zip extraction failed, retrying with explicit permissions", "archive", filepath.Base(archivePath), "err", err)

	if err := wipeDir(destDir); err != nil {
		return err
	}
	if err := e.extractZipPass(ctx, archivePath, destDir, true); err != nil {
		return fmt.Errorf("extracting %s: %w", archivePath, err)
	}
	return nil
}

func (e *Extractor) extractZipPass(ctx context.Context, archivePath, destDir string, explicit bool) (err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip: %w", cerr)
		}
	}()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.extractZipFile(f, destDir, explicit); err != nil {
			return err
		}
	}

	return nil
}

// extractZipFile extracts a single file from a ZIP archive
func (e *Extractor) extractZipFile(f *zip.File, destDir string, explicit bool) (err error) {
	destPath, err := sanitizePath(destDir, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		mode := f.Mode().Perm()
		if explicit || mode == 0 {
			mode = 0o755
		}
		return os.MkdirAll(destPath, mode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening file %s in archive: %w", f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing archive entry %s: %w", f.Name, cerr)
		}
	}()

	return writeFile(destPath, rc, entryMode(f.Mode()))
}

func (e *Extractor) extract7z(ctx context.Context, archivePath, destDir string) (err error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening 7z: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing 7z: %w", cerr)
		}
	}()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extract7zFile(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extract7zFile(f *sevenzip.File, destDir string) (err error) {
	destPath, err := sanitizePath(destDir, pathutil.ToSlash(f.Name))
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening file %s in archive: %w", f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing archive entry %s: %w", f.Name, cerr)
		}
	}()

	return writeFile(destPath, rc, entryMode(f.Mode()))
}

func (e *Extractor) extractRar(ctx context.Context, archivePath, destDir string) (err error) {
	r, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening rar: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing rar: %w", cerr)
		}
	}()

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if first {
				return fmt.Errorf("%w: %s: %v", domain.ErrRarHeaderNotFound, archivePath, err)
			}
			return fmt.Errorf("reading rar header: %w", err)
		}
		first = false

		if hdr.IsDir || !hdr.Mode().IsRegular() {
			continue
		}

		destPath, err := sanitizePath(destDir, pathutil.ToSlash(hdr.Name))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", hdr.Name, err)
		}
		if err := writeFile(destPath, r, entryMode(hdr.Mode())); err != nil {
			return err
		}
	}
}

func (e *Extractor) extractTarGz(ctx context.Context, archivePath, destDir string) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", archivePath, cerr)
		}
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer func() {
		if cerr := gz.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing gzip stream: %w", cerr)
		}
	}()

	return extractTar(ctx, tar.NewReader(gz), destDir)
}

func (e *Extractor) extractTarXz(ctx context.Context, archivePath, destDir string) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", archivePath, cerr)
		}
	}()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening xz stream: %w", err)
	}

	return extractTar(ctx, tar.NewReader(xr), destDir)
}

// extractTar writes regular files and directories; links and devices are skipped
func extractTar(ctx context.Context, tr *tar.Reader, destDir string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		destPath, err := sanitizePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", destPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", hdr.Name, err)
			}
			if err := writeFile(destPath, tr, entryMode(hdr.FileInfo().Mode())); err != nil {
				return err
			}
		}
	}
}

func writeFile(destPath string, r io.Reader, mode fs.FileMode) (err error) {
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing file %s: %w", destPath, cerr)
		}
	}()

	if _, err = io.Copy(out, r); err != nil {
		return fmt.Errorf("writing file %s: %w", destPath, err)
	}
	return nil
}

// entryMode keeps the archived permissions but never produces an unreadable file
func entryMode(m fs.FileMode) fs.FileMode {
	perm := m.Perm()
	if perm == 0 {
		return defaultFileMode
	}
	return perm | 0o600
}

// wipeDir empties dir, restoring write permission on the way so read-only
// leftovers from a failed pass can be removed.
func wipeDir(dir string) error {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(p, 0o755)
		}
		return nil
	})
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("wiping %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recreating %s: %w", dir, err)
	}
	return nil
}

// sanitizePath ensures the extracted file path is within the destination directory
// This prevents "zip slip" attacks where malicious archives contain paths like "../../../etc/passwd"
func sanitizePath(destDir, filePath string) (string, error) {
	destPath := filepath.Join(destDir, filepath.Clean(filePath))
	if !pathutil.IsWithin(destDir, destPath) {
		return "", fmt.Errorf("path traversal detected: %s", filePath)
	}
	return destPath, nil
}
