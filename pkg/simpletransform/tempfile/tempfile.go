// Package tempfile provides process-scoped temporary storage for
// transformation work: a managed subdirectory of the OS temp root, named
// long-life subdirectories exempt from short-interval cleanup, and helpers
// for materializing streams into unique temp files.
//
// The provider is constructed once at startup and shared by reference.
// Directories are created lazily and race-safely; an external cleanup job
// purges aged contents, which is out of scope here.
package tempfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

const (
	// managedDirName is the subdirectory of the temp root managed by this
	// provider and subject to periodic cleanup.
	managedDirName = "simple-transform"

	// longLifePrefix prefixes long-life directories, which cleanup jobs
	// purge on a longer interval.
	longLifePrefix = "longLife_"

	// maxRetries bounds the create-then-recheck loop for directory
	// creation races.
	maxRetries = 3
)

// Provider supplies temp directories and files rooted under a single temp
// root. The zero value is not usable; construct with New.
type Provider struct {
	root string
}

// New creates a provider rooted at root. An empty root selects the OS temp
// directory.
func New(root string) (*Provider, error) {
	if root == "" {
		root = os.TempDir()
	}
	if root == "" {
		return nil, fmt.Errorf("%w: system temp directory unavailable", simpletransform.ErrNotConfigured)
	}
	return &Provider{root: root}, nil
}

// SystemTempDir returns the temp root this provider is rooted at.
func (p *Provider) SystemTempDir() string {
	return p.root
}

// TempDir returns the managed temp directory, creating it on first access.
func (p *Provider) TempDir() (string, error) {
	return p.ensureDir(filepath.Join(p.root, managedDirName))
}

// LongLifeTempDir returns a long-life temp directory scoped by the given
// key. Independent callers with the same key receive the identical path.
func (p *Provider) LongLifeTempDir(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: long-life directory key is required", simpletransform.ErrInvalidArgument)
	}
	managed, err := p.TempDir()
	if err != nil {
		return "", err
	}
	return p.ensureDir(filepath.Join(managed, longLifePrefix+sanitizeKey(key)))
}

// ensureDir creates dir race-safely: creation failure is re-checked
// against existence before concluding failure, bounded by maxRetries.
// Multiple concurrent callers all succeed logically.
func (p *Provider) ensureDir(dir string) (string, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := os.MkdirAll(dir, 0755)
		if err == nil {
			return dir, nil
		}
		lastErr = err

		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			// Lost the creation race to another caller.
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: failed to create directory %s after %d attempts: %v",
		simpletransform.ErrNotConfigured, dir, maxRetries, lastErr)
}

// NewTempFile creates a uniquely named empty file with the given prefix and
// suffix in dir, or in the managed temp directory when dir is empty.
func (p *Provider) NewTempFile(prefix, suffix, dir string) (string, error) {
	if dir == "" {
		managed, err := p.TempDir()
		if err != nil {
			return "", err
		}
		dir = managed
	}

	file, err := os.CreateTemp(dir, prefix+"*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp file %s: %w", path, err)
	}
	return path, nil
}

// MaterializeStream drains the stream fully into a newly created unique
// temp file and returns its path. On any copy failure the partial file is
// deleted and the failure propagated. The source stream and the
// destination file are both released on every exit path.
func (p *Provider) MaterializeStream(reader io.ReadCloser, prefix, suffix string) (path string, err error) {
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close source stream: %w", closeErr)
			if path != "" {
				os.Remove(path)
				path = ""
			}
		}
	}()

	managed, err := p.TempDir()
	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp(managed, prefix+"*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path = file.Name()

	_, copyErr := io.Copy(file, reader)
	if closeErr := file.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(path)
		return "", fmt.Errorf("materialize stream to %s: %w", path, copyErr)
	}
	return path, nil
}

// sanitizeKey maps an arbitrary caller key to a filesystem-safe directory
// component while keeping it discoverable.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
