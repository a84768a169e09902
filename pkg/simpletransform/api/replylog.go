package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// ReplyLog records TransformationReply messages in memory, keyed by
// request id, so HTTP clients can poll the asynchronous reply stream.
// Replies themselves remain fire-and-forget events; the log is an adapter
// convenience, not a persistent store. Entries for requests beyond the
// configured capacity are evicted oldest-first.
type ReplyLog struct {
	mu       sync.RWMutex
	replies  map[string][]simpletransform.TransformationReply
	order    []string
	capacity int
}

// DefaultReplyLogCapacity bounds the number of requests retained.
const DefaultReplyLogCapacity = 1024

// NewReplyLog creates a reply log retaining up to capacity requests. A
// non-positive capacity selects the default.
func NewReplyLog(capacity int) *ReplyLog {
	if capacity <= 0 {
		capacity = DefaultReplyLogCapacity
	}
	return &ReplyLog{
		replies:  make(map[string][]simpletransform.TransformationReply),
		capacity: capacity,
	}
}

// Record appends a reply. It is registered as the reply-queue handler on
// the bus dispatcher.
func (l *ReplyLog) Record(ctx context.Context, message any) error {
	reply, ok := message.(simpletransform.TransformationReply)
	if !ok {
		if p, ok := message.(*simpletransform.TransformationReply); ok && p != nil {
			reply = *p
		} else {
			return fmt.Errorf("%w: unexpected message type %T", simpletransform.ErrInvalidArgument, message)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.replies[reply.RequestID]; !seen {
		l.order = append(l.order, reply.RequestID)
		for len(l.order) > l.capacity {
			evicted := l.order[0]
			l.order = l.order[1:]
			delete(l.replies, evicted)
		}
	}
	l.replies[reply.RequestID] = append(l.replies[reply.RequestID], reply)
	return nil
}

// Send implements simpletransform.MessageProducer so a node can emit
// replies directly into the log in embedded setups.
func (l *ReplyLog) Send(ctx context.Context, message any) error {
	return l.Record(ctx, message)
}

// Replies returns the replies observed so far for a request, in emission
// order, and whether the request id is known to the log.
func (l *ReplyLog) Replies(requestID string) ([]simpletransform.TransformationReply, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	replies, ok := l.replies[requestID]
	out := make([]simpletransform.TransformationReply, len(replies))
	copy(out, replies)
	return out, ok
}

var _ simpletransform.MessageProducer = (*ReplyLog)(nil)
