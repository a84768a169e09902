package simpletransform

import (
	"github.com/google/uuid"
)

// TransformStatus is the domain type for transformation lifecycle states.
type TransformStatus string

// Transformation status constants (typed).
const (
	StatusInProgress TransformStatus = "IN_PROGRESS"
	StatusComplete   TransformStatus = "COMPLETE"
	StatusFailed     TransformStatus = "FAILED"
)

// IsValid returns true if the status is a known transformation status.
func (s TransformStatus) IsValid() bool {
	switch s {
	case StatusInProgress, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no further replies may follow this status.
func (s TransformStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Option keys interpreted by specific transformer variants. The core treats
// options as an opaque pass-through bag.
const (
	// OptionSourceOffset is a temporal offset (HH:MM:SS[.ms]) into the
	// source media, interpreted by the ffmpeg transformer.
	OptionSourceOffset = "offset"

	// OptionSourceDuration is a temporal duration (HH:MM:SS[.ms]) limiting
	// the transformed portion, interpreted by the ffmpeg transformer.
	OptionSourceDuration = "duration"

	// OptionHashAlgorithm selects the digest algorithm (e.g. "SHA-256"),
	// interpreted by the digest transformer.
	OptionHashAlgorithm = "algorithm"
)

// ContentReference identifies an addressable unit of content by an opaque
// backend-specific locator, its media type, and an optional byte size.
// The URI uniquely identifies exactly one location in exactly one backend
// and is never parsed outside the owning handler.
type ContentReference struct {
	URI       string `json:"uri"`
	MediaType string `json:"media_type"`
	Size      *int64 `json:"size,omitempty"`
}

// NewContentReference creates a reference for an existing locator.
func NewContentReference(uri, mediaType string) ContentReference {
	return ContentReference{URI: uri, MediaType: mediaType}
}

// WithSize returns a copy of the reference carrying a known byte size.
func (r ContentReference) WithSize(size int64) ContentReference {
	r.Size = &size
	return r
}

// TransformationRequest is one deferred unit of transformation work. It is
// created once by the submitter, consumed at-most-once by one node, and
// never mutated.
type TransformationRequest struct {
	RequestID string            `json:"request_id"`
	SourceRef ContentReference  `json:"source_content_reference"`
	TargetRef ContentReference  `json:"target_content_reference"`
	Options   map[string]string `json:"options,omitempty"`
}

// NewTransformationRequest creates a request with a generated request id.
func NewTransformationRequest(source, target ContentReference, options map[string]string) TransformationRequest {
	return TransformationRequest{
		RequestID: uuid.New().String(),
		SourceRef: source,
		TargetRef: target,
		Options:   options,
	}
}

// TransformationReply reports the status of a request back to its submitter.
// Progress is present only for IN_PROGRESS replies and ErrorDetail only for
// FAILED replies. Replies are append-only: none is revised or withdrawn.
type TransformationReply struct {
	RequestID   string          `json:"request_id"`
	Status      TransformStatus `json:"status"`
	Progress    *float64        `json:"progress,omitempty"`
	ErrorDetail string          `json:"error_detail,omitempty"`
}
