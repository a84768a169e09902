package simpletransform

import (
	"context"
	"io"
)

// ReferenceHandler defines the interface for storage backends. Each handler
// owns one backend and is the only component allowed to interpret the URIs
// of the references it creates.
type ReferenceHandler interface {
	// CreateReference generates a new reference whose URI is unique under
	// normal operation. The URI's basename contains both the prefix (text
	// before the last ".") and the suffix (the last "." onward) of the
	// given name.
	CreateReference(ctx context.Context, name, mediaType string) (ContentReference, error)

	// Exists reports whether the reference resolves to a stored object.
	Exists(ctx context.Context, ref ContentReference) (bool, error)

	// Read opens the referenced object for streaming. If deleteOnClose is
	// set, the object is removed best-effort once the returned stream is
	// closed. Concurrent reads of the same reference with deleteOnClose
	// set are not supported.
	Read(ctx context.Context, ref ContentReference, deleteOnClose bool) (io.ReadCloser, error)

	// Write stores the stream's content under the reference and returns
	// the number of bytes written. On partial failure the backend leaves
	// no reference that reports Exists yet contains truncated data.
	Write(ctx context.Context, reader io.Reader, ref ContentReference) (int64, error)

	// WriteFile stores the file at path under the reference.
	WriteFile(ctx context.Context, path string, ref ContentReference) (int64, error)

	// Delete removes the referenced object. Deleting an absent object is
	// not an error.
	Delete(ctx context.Context, ref ContentReference) error
}

// Transformer defines the interface for transformation worker variants. A
// transformer reads the source fully through its handler, produces the
// target content through the target's handler, and returns an error on any
// unrecoverable internal failure. The reporter is for intermediate progress
// only; the caller owns the started and terminal notifications.
type Transformer interface {
	Transform(ctx context.Context, source, target ContentReference, options map[string]string, reporter ProgressReporter) error
}

// ProgressReporter is the callback surface a transformer uses to announce
// start, fractional progress, and completion for one request. No ordering
// constraint is imposed on progress values; transformers decide
// monotonicity.
type ProgressReporter interface {
	OnStarted(ctx context.Context) error
	OnProgress(ctx context.Context, fraction float64) error
	OnComplete(ctx context.Context) error
}

// MessageProducer sends messages back to the submitter's side of the bus.
// Implementations are provided by transport adapters.
type MessageProducer interface {
	Send(ctx context.Context, message any) error
}
