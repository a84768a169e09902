package simpletransform

import (
	"context"
	"fmt"
	"log/slog"
)

// ReplyReporter is a ProgressReporter bound to one request's correlation
// id. Each callback emits one TransformationReply through the producer; the
// request id is carried explicitly rather than captured in a closure.
type ReplyReporter struct {
	requestID string
	producer  MessageProducer
	logger    *slog.Logger
}

// NewReplyReporter creates a reporter emitting replies for the given
// request id.
func NewReplyReporter(requestID string, producer MessageProducer, logger *slog.Logger) *ReplyReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyReporter{requestID: requestID, producer: producer, logger: logger}
}

// OnStarted emits an IN_PROGRESS reply with no progress value.
func (r *ReplyReporter) OnStarted(ctx context.Context) error {
	r.logger.Debug("transformation started", "request_id", r.requestID)
	return r.send(ctx, TransformationReply{
		RequestID: r.requestID,
		Status:    StatusInProgress,
	})
}

// OnProgress emits an IN_PROGRESS reply carrying the given fraction.
func (r *ReplyReporter) OnProgress(ctx context.Context, fraction float64) error {
	r.logger.Debug("transformation progress", "request_id", r.requestID, "fraction", fraction)
	return r.send(ctx, TransformationReply{
		RequestID: r.requestID,
		Status:    StatusInProgress,
		Progress:  &fraction,
	})
}

// OnComplete emits the terminal COMPLETE reply.
func (r *ReplyReporter) OnComplete(ctx context.Context) error {
	r.logger.Debug("transformation complete", "request_id", r.requestID)
	return r.send(ctx, TransformationReply{
		RequestID: r.requestID,
		Status:    StatusComplete,
	})
}

// OnFailed emits the terminal FAILED reply with error detail.
func (r *ReplyReporter) OnFailed(ctx context.Context, cause error) error {
	detail := "transformation failed"
	if cause != nil {
		detail = cause.Error()
	}
	return r.send(ctx, TransformationReply{
		RequestID:   r.requestID,
		Status:      StatusFailed,
		ErrorDetail: detail,
	})
}

func (r *ReplyReporter) send(ctx context.Context, reply TransformationReply) error {
	if err := r.producer.Send(ctx, reply); err != nil {
		return fmt.Errorf("send %s reply for request %s: %w", reply.Status, r.requestID, err)
	}
	return nil
}

var _ ProgressReporter = (*ReplyReporter)(nil)
