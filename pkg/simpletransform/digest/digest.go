// Package digest implements a content-digest transformer. It consumes the
// source stream exactly once, computes a cryptographic digest, and writes
// the fixed-width lowercase hex encoding to the target reference.
package digest

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// DefaultAlgorithm is used when the request options carry no algorithm.
const DefaultAlgorithm = "SHA-256"

// Worker computes content digests. It implements
// simpletransform.Transformer; the algorithm is selected per request via
// the "algorithm" option.
type Worker struct {
	source simpletransform.ReferenceHandler
	target simpletransform.ReferenceHandler
}

// NewWorker creates a digest worker reading sources through source and
// writing hex digests through target.
func NewWorker(source, target simpletransform.ReferenceHandler) (*Worker, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: source and target handlers are required", simpletransform.ErrInvalidArgument)
	}
	return &Worker{source: source, target: target}, nil
}

// Transform computes the digest of the source content and stores its hex
// encoding under the target reference.
func (w *Worker) Transform(ctx context.Context, source, target simpletransform.ContentReference, options map[string]string, reporter simpletransform.ProgressReporter) error {
	algorithm := options[simpletransform.OptionHashAlgorithm]
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	reader, err := w.source.Read(ctx, source, false)
	if err != nil {
		return fmt.Errorf("read source %s: %w", source.URI, err)
	}

	digest, err := HashStream(reader, algorithm)
	if err != nil {
		return err
	}

	if err := reporter.OnProgress(ctx, 0.5); err != nil {
		return err
	}

	if _, err := w.target.Write(ctx, strings.NewReader(digest), target); err != nil {
		return fmt.Errorf("write digest to %s: %w", target.URI, err)
	}
	return nil
}

// HashStream fully consumes and closes the source exactly once and returns
// the digest as fixed-width lowercase hex. A 16-byte digest always yields
// 32 hex characters; leading zero bytes are never dropped.
func HashStream(source io.ReadCloser, algorithm string) (string, error) {
	if source == nil {
		return "", fmt.Errorf("%w: source stream is required", simpletransform.ErrInvalidArgument)
	}
	defer source.Close()

	if algorithm == "" {
		return "", fmt.Errorf("%w: algorithm is required", simpletransform.ErrInvalidArgument)
	}
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(hasher, source); err != nil {
		return "", fmt.Errorf("hash source stream: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// newHasher maps an algorithm identifier to a hash constructor. Names are
// matched case-insensitively with dashes ignored, so "SHA-256", "sha256"
// and "Sha-256" all select SHA-256.
func newHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(strings.ReplaceAll(algorithm, "-", "")) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", simpletransform.ErrUnsupportedAlgorithm, algorithm)
	}
}

var _ simpletransform.Transformer = (*Worker)(nil)
