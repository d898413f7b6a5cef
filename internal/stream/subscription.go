package stream

import (
	"context"
	"io"

	"github.com/rusthing/capturer/internal/broadcast"
	"github.com/rusthing/capturer/internal/metrics"
)

// Subscription wraps a bus receive endpoint as a lazy, finite byte
// sequence for one HTTP client (component C7): it yields the cached
// format header first (if any), then live chunks, and ends when the bus
// closes. Not safe for concurrent use; each HTTP handler owns exactly one.
type Subscription struct {
	url           string
	sub           *broadcast.Subscription
	header        *headerCell
	firstReporter chan<- []byte

	initialPending bool
	released       bool
}

// Next returns the next chunk to send to the HTTP peer. It returns io.EOF
// once the underlying bus has closed and fully drained for this
// subscriber; any other error comes from ctx.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	if s.initialPending {
		s.initialPending = false
		if b, ok := s.header.Get(); ok {
			return b, nil
		}
		return s.nextLive(ctx, true)
	}
	return s.nextLive(ctx, false)
}

func (s *Subscription) nextLive(ctx context.Context, reportFirst bool) ([]byte, error) {
	for {
		res, err := s.sub.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if res.Closed {
			return nil, io.EOF
		}
		if res.Lagged > 0 {
			// Not an error to the HTTP peer: silently resume.
			metrics.BusLaggedTotal.WithLabelValues(s.url).Inc()
			continue
		}
		if reportFirst && s.firstReporter != nil {
			clone := make([]byte, len(res.Chunk))
			copy(clone, res.Chunk)
			select {
			case s.firstReporter <- clone:
			default:
			}
		}
		return res.Chunk, nil
	}
}

// Release returns the subscription's receive endpoint to its bus,
// decrementing ReceiverCount. Call when the HTTP peer disconnects. Safe
// to call more than once.
func (s *Subscription) Release() {
	if s.released {
		return
	}
	s.released = true
	s.sub.Release()
	metrics.SubscribersActive.Dec()
}
