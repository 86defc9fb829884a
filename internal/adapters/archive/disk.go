package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/util/hashing"
)

// DiskArchive keeps upload descriptors on disk under descriptors/<2-char prefix>/<digest>.
type DiskArchive struct {
	root string
}

var _ services.DescriptorArchive = (*DiskArchive)(nil)

// NewDiskArchive creates the descriptor directory below dataDir.
func NewDiskArchive(dataDir string) (*DiskArchive, error) {
	root := filepath.Join(dataDir, "descriptors")
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &DiskArchive{root: root}, nil
}

// Store writes r to a temp file while hashing it, then renames it into
// place. Identical payloads share one file.
func (a *DiskArchive) Store(r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(filepath.Join(a.root, "tmp"), "descriptor-*")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hw := hashing.NewWriter(tmp)
	size, err := io.Copy(hw, r)
	if err != nil {
		return "", 0, fmt.Errorf("writing descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("closing temp file: %w", err)
	}
	digest := hw.Sum()

	dir := filepath.Join(a.root, hashing.PrefixDir(digest))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating archive subdirectory: %w", err)
	}

	final := filepath.Join(dir, digest)
	if _, err := os.Stat(final); err == nil {
		os.Remove(tmpPath)
		success = true
		return digest, size, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", 0, fmt.Errorf("checking archived descriptor: %w", err)
	}

	if err := os.Rename(tmpPath, final); err != nil {
		// Lost a race against an identical upload.
		if _, statErr := os.Stat(final); statErr == nil {
			os.Remove(tmpPath)
			success = true
			return digest, size, nil
		}
		return "", 0, fmt.Errorf("moving descriptor into archive: %w", err)
	}

	success = true
	return digest, size, nil
}

func (a *DiskArchive) Open(digest string) (io.ReadCloser, error) {
	if !hashing.IsHexDigest(digest) {
		return nil, fmt.Errorf("%w: descriptor %s", services.ErrNotFound, digest)
	}
	f, err := os.Open(a.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: descriptor %s", services.ErrNotFound, digest)
		}
		return nil, fmt.Errorf("opening descriptor: %w", err)
	}
	return f, nil
}

func (a *DiskArchive) Exists(digest string) bool {
	if !hashing.IsHexDigest(digest) {
		return false
	}
	_, err := os.Stat(a.path(digest))
	return err == nil
}

func (a *DiskArchive) path(digest string) string {
	return filepath.Join(a.root, hashing.PrefixDir(digest), digest)
}
