package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// Handler is a filesystem implementation of the
// simpletransform.ReferenceHandler interface. References created by this
// handler use file:// URIs under the configured base directory; Read,
// Write, Exists and Delete additionally accept bare absolute paths.
type Handler struct {
	baseDir string
}

// Config options for the filesystem handler
type Config struct {
	BaseDir string // Base directory for newly created references
}

// New creates a new filesystem reference handler
func New(config Config) (*Handler, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Handler{baseDir: config.BaseDir}, nil
}

// CreateReference generates a unique file reference for the given name.
func (h *Handler) CreateReference(ctx context.Context, name, mediaType string) (simpletransform.ContentReference, error) {
	path := filepath.Join(h.baseDir, simpletransform.UniqueName(name))
	return simpletransform.NewContentReference("file://"+path, mediaType), nil
}

// Exists reports whether the referenced file is present.
func (h *Handler) Exists(ctx context.Context, ref simpletransform.ContentReference) (bool, error) {
	path, err := h.resolve(ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, h.storageError("exists", ref.URI, err)
	}
	return true, nil
}

// Read opens the referenced file for streaming. With deleteOnClose set, the
// file is removed best-effort when the stream is closed.
func (h *Handler) Read(ctx context.Context, ref simpletransform.ContentReference, deleteOnClose bool) (io.ReadCloser, error) {
	path, err := h.resolve(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, h.storageError("read", ref.URI, simpletransform.ErrReferenceNotFound)
	} else if err != nil {
		return nil, h.storageError("read", ref.URI, err)
	}

	if deleteOnClose {
		return &deleteOnCloseReader{ReadCloser: file, path: path}, nil
	}
	return file, nil
}

// Write stores the stream under the reference. Content goes to a temp file
// in the target directory first and is renamed into place once fully
// written, so a partially written object never satisfies Exists.
func (h *Handler) Write(ctx context.Context, reader io.Reader, ref simpletransform.ContentReference) (int64, error) {
	path, err := h.resolve(ref)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, h.storageError("write", ref.URI, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".partial-*")
	if err != nil {
		return 0, h.storageError("write", ref.URI, err)
	}

	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, h.storageError("write", ref.URI, err)
	}

	if ref.Size != nil && *ref.Size != written {
		os.Remove(tmp.Name())
		return written, h.storageError("write", ref.URI,
			fmt.Errorf("size mismatch: reference declares %d bytes, wrote %d", *ref.Size, written))
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, h.storageError("write", ref.URI, err)
	}
	return written, nil
}

// WriteFile stores the file at path under the reference.
func (h *Handler) WriteFile(ctx context.Context, path string, ref simpletransform.ContentReference) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, h.storageError("write_file", ref.URI, err)
	}
	defer file.Close()
	return h.Write(ctx, file, ref)
}

// Delete removes the referenced file. An absent file is not an error.
func (h *Handler) Delete(ctx context.Context, ref simpletransform.ContentReference) error {
	path, err := h.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return h.storageError("delete", ref.URI, err)
	}
	return nil
}

// resolve maps a reference URI to a local filesystem path. Both file://
// URIs and bare paths are accepted; callers produce both forms.
func (h *Handler) resolve(ref simpletransform.ContentReference) (string, error) {
	uri := ref.URI
	if uri == "" {
		return "", h.storageError("resolve", ref.URI, simpletransform.ErrInvalidArgument)
	}
	path := strings.TrimPrefix(uri, "file://")
	if path == "" {
		return "", h.storageError("resolve", ref.URI, simpletransform.ErrInvalidArgument)
	}
	return path, nil
}

func (h *Handler) storageError(op, uri string, err error) error {
	return &simpletransform.StorageError{Backend: "fs", URI: uri, Op: op, Err: err}
}

// deleteOnCloseReader removes the underlying file after the stream is
// closed. Removal is best-effort: a failed delete does not fail the close.
type deleteOnCloseReader struct {
	io.ReadCloser
	path string
}

func (r *deleteOnCloseReader) Close() error {
	err := r.ReadCloser.Close()
	os.Remove(r.path)
	return err
}

var _ simpletransform.ReferenceHandler = (*Handler)(nil)
