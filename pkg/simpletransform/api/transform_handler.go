// Package api exposes transformation submission and reply polling over
// HTTP. It is a thin adapter: requests go onto the bus, replies are read
// from an in-memory ReplyLog fed by the reply queue.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// TransformHandler handles HTTP requests for transformations
type TransformHandler struct {
	producer simpletransform.MessageProducer
	replies  *ReplyLog
}

// NewTransformHandler creates a handler submitting requests through
// producer and serving replies from replies.
func NewTransformHandler(producer simpletransform.MessageProducer, replies *ReplyLog) *TransformHandler {
	return &TransformHandler{producer: producer, replies: replies}
}

// Routes returns the routes for transformations
func (h *TransformHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.SubmitTransformation)
	r.Get("/{requestID}/replies", h.GetReplies)

	return r
}

// SubmitRequest is the request body for submitting a transformation
type SubmitRequest struct {
	SourceRef simpletransform.ContentReference `json:"source_content_reference"`
	TargetRef simpletransform.ContentReference `json:"target_content_reference"`
	Options   map[string]string                `json:"options,omitempty"`
}

// SubmitResponse is the response body for a submitted transformation
type SubmitResponse struct {
	RequestID string `json:"request_id"`
}

// RepliesResponse is the response body for the reply stream of one request
type RepliesResponse struct {
	RequestID string                                `json:"request_id"`
	Replies   []simpletransform.TransformationReply `json:"replies"`
}

// SubmitTransformation enqueues a new transformation request
func (h *TransformHandler) SubmitTransformation(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.SourceRef.URI == "" || req.TargetRef.URI == "" {
		http.Error(w, "source and target content references are required", http.StatusBadRequest)
		return
	}

	request := simpletransform.NewTransformationRequest(req.SourceRef, req.TargetRef, req.Options)
	if err := h.producer.Send(r.Context(), request); err != nil {
		slog.Error("Failed to enqueue transformation request", "request_id", request.RequestID, "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, SubmitResponse{RequestID: request.RequestID})
}

// GetReplies returns the replies observed so far for a request
func (h *TransformHandler) GetReplies(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	replies, known := h.replies.Replies(requestID)
	if !known {
		http.Error(w, "unknown request id", http.StatusNotFound)
		return
	}

	render.JSON(w, r, RepliesResponse{RequestID: requestID, Replies: replies})
}
