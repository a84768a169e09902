package simpletransform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TransformationNode drives one transformer on behalf of request messages
// and translates progress into reply messages. It holds no shared mutable
// state across requests; each request's reply sequence is ordered only with
// respect to itself.
type TransformationNode struct {
	worker   Transformer
	producer MessageProducer
	logger   *slog.Logger
}

// NodeOption applies optional configuration to a TransformationNode.
type NodeOption func(*TransformationNode)

// WithLogger sets the structured logger used by the node and its reporters.
func WithLogger(logger *slog.Logger) NodeOption {
	return func(n *TransformationNode) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewTransformationNode creates a node that runs the given transformer and
// emits replies through the given producer.
func NewTransformationNode(worker Transformer, producer MessageProducer, opts ...NodeOption) (*TransformationNode, error) {
	if worker == nil {
		return nil, fmt.Errorf("%w: transformer is required", ErrInvalidArgument)
	}
	if producer == nil {
		return nil, fmt.Errorf("%w: message producer is required", ErrInvalidArgument)
	}

	node := &TransformationNode{
		worker:   worker,
		producer: producer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(node)
		}
	}
	return node, nil
}

// HandleMessage is the dispatch entry point for a transport adapter. It
// accepts TransformationRequest messages; anything else is rejected.
func (n *TransformationNode) HandleMessage(ctx context.Context, message any) error {
	request, ok := message.(TransformationRequest)
	if !ok {
		if p, ok := message.(*TransformationRequest); ok && p != nil {
			request = *p
		} else {
			return fmt.Errorf("%w: unexpected message type %T", ErrInvalidArgument, message)
		}
	}
	return n.Process(ctx, request)
}

// Process runs one request to a terminal state on the calling goroutine.
// The transform is a coarse, potentially slow operation; cancellation of an
// in-flight transform is the collaborator's responsibility.
//
// A failing transform always surfaces as a FAILED terminal reply with error
// detail. It is never silently dropped.
func (n *TransformationNode) Process(ctx context.Context, request TransformationRequest) error {
	n.logger.Info("processing transformation request",
		"request_id", request.RequestID,
		"source", request.SourceRef.URI,
		"target", request.TargetRef.URI)

	reporter := NewReplyReporter(request.RequestID, n.producer, n.logger)

	if err := reporter.OnStarted(ctx); err != nil {
		return fmt.Errorf("report started for request %s: %w", request.RequestID, err)
	}

	if err := n.worker.Transform(ctx, request.SourceRef, request.TargetRef, request.Options, reporter); err != nil {
		n.logger.Error("transformation failed",
			"request_id", request.RequestID,
			"error", err)
		if sendErr := reporter.OnFailed(ctx, err); sendErr != nil {
			return errors.Join(&TransformError{RequestID: request.RequestID, Err: err}, sendErr)
		}
		return &TransformError{RequestID: request.RequestID, Err: err}
	}

	if err := reporter.OnComplete(ctx); err != nil {
		return fmt.Errorf("report complete for request %s: %w", request.RequestID, err)
	}
	return nil
}
