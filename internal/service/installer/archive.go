package installer

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
)

var errUnsafeArchivePath = errors.New("archive entry escapes destination")

// extractTarXz unpacks a .tar.xz archive into destDir, preserving file modes.
// Entry paths are validated so a crafted archive cannot write outside destDir.
func extractTarXz(archivePath, destDir string) error {
	archive, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = archive.Close()
	}()

	xzReader, err := xz.NewReader(archive)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}

	tarReader := tar.NewReader(xzReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if err = extractEntry(tarReader, header, destDir); err != nil {
			return err
		}
	}
}

// extractEntry writes a single tar entry below destDir.
func extractEntry(tarReader *tar.Reader, header *tar.Header, destDir string) error {
	target, err := safeJoin(destDir, header.Name)
	if err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err = os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
			return fmt.Errorf("create directory %s: %w", header.Name, err)
		}
	case tar.TypeSymlink:
		if _, err = safeJoin(filepath.Dir(target), header.Linkname); err != nil {
			return err
		}

		if err = os.Symlink(header.Linkname, target); err != nil {
			return fmt.Errorf("create symlink %s: %w", header.Name, err)
		}
	case tar.TypeReg:
		if err = writeEntryFile(tarReader, header, target); err != nil {
			return err
		}
	default:
		// Hard links, devices and the like do not appear in upstream
		// archives; skip them rather than fail mid-extraction.
	}

	return nil
}

func writeEntryFile(tarReader *tar.Reader, header *tar.Header, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create parent for %s: %w", header.Name, err)
	}

	outputFile, err := os.OpenFile(filepath.Clean(target),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(header.Mode))
	if err != nil {
		return fmt.Errorf("create file %s: %w", header.Name, err)
	}

	//nolint:gosec // Upstream archives are size-bounded; decompression happens either way.
	if _, err = io.Copy(outputFile, tarReader); err != nil {
		_ = outputFile.Close()

		return fmt.Errorf("extract file %s: %w", header.Name, err)
	}

	if err = outputFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", header.Name, err)
	}

	return nil
}

// safeJoin joins name below base and rejects traversal outside of it.
func safeJoin(base, name string) (string, error) {
	target := filepath.Join(base, name)
	if target != base && !strings.HasPrefix(target, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, errUnsafeArchivePath)
	}

	return target, nil
}
