package memory

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// Handler is an in-memory implementation of the
// simpletransform.ReferenceHandler interface, intended for tests and local
// development. References use mem:// URIs.
type Handler struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory reference handler
func New() *Handler {
	return &Handler{objects: make(map[string][]byte)}
}

// CreateReference generates a unique in-memory reference for the given name.
func (h *Handler) CreateReference(ctx context.Context, name, mediaType string) (simpletransform.ContentReference, error) {
	return simpletransform.NewContentReference("mem://"+simpletransform.UniqueName(name), mediaType), nil
}

// Exists reports whether the referenced object is present.
func (h *Handler) Exists(ctx context.Context, ref simpletransform.ContentReference) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.objects[h.key(ref)]
	return ok, nil
}

// Read opens the referenced object for streaming.
func (h *Handler) Read(ctx context.Context, ref simpletransform.ContentReference, deleteOnClose bool) (io.ReadCloser, error) {
	h.mu.RLock()
	data, ok := h.objects[h.key(ref)]
	h.mu.RUnlock()
	if !ok {
		return nil, &simpletransform.StorageError{Backend: "memory", URI: ref.URI, Op: "read", Err: simpletransform.ErrReferenceNotFound}
	}

	reader := io.NopCloser(bytes.NewReader(data))
	if deleteOnClose {
		return &deleteOnCloseReader{ReadCloser: reader, handler: h, ref: ref}, nil
	}
	return reader, nil
}

// Write stores the stream's content under the reference. The object map is
// only updated after the full stream has been read, so a mid-stream failure
// leaves no truncated object behind.
func (h *Handler) Write(ctx context.Context, reader io.Reader, ref simpletransform.ContentReference) (int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, &simpletransform.StorageError{Backend: "memory", URI: ref.URI, Op: "write", Err: err}
	}

	h.mu.Lock()
	h.objects[h.key(ref)] = data
	h.mu.Unlock()
	return int64(len(data)), nil
}

// WriteFile stores the file at path under the reference.
func (h *Handler) WriteFile(ctx context.Context, path string, ref simpletransform.ContentReference) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, &simpletransform.StorageError{Backend: "memory", URI: ref.URI, Op: "write_file", Err: err}
	}
	defer file.Close()
	return h.Write(ctx, file, ref)
}

// Delete removes the referenced object. An absent object is not an error.
func (h *Handler) Delete(ctx context.Context, ref simpletransform.ContentReference) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.objects, h.key(ref))
	return nil
}

func (h *Handler) key(ref simpletransform.ContentReference) string {
	return strings.TrimPrefix(ref.URI, "mem://")
}

type deleteOnCloseReader struct {
	io.ReadCloser
	handler *Handler
	ref     simpletransform.ContentReference
}

func (r *deleteOnCloseReader) Close() error {
	err := r.ReadCloser.Close()
	r.handler.Delete(context.Background(), r.ref)
	return err
}

var _ simpletransform.ReferenceHandler = (*Handler)(nil)
