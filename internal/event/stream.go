package event

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// defaultBufferSize is the per-subscriber channel buffer used when the
// caller does not configure one.
const defaultBufferSize = 64

// Stream is a multi-subscriber event fan-out with a terminal completion
// signal.
//
// Publish delivers an event to every current subscriber in publish order.
// The publisher never blocks on a subscriber: an event that does not fit
// in a subscriber's buffer is dropped for that subscriber only. Complete
// closes every subscriber channel and marks the stream finished;
// subscribers attaching afterwards receive an already-closed channel so
// they observe immediate termination instead of hanging.
type Stream struct {
	log     *slog.Logger
	bufSize int

	mu        sync.Mutex
	subs      map[string]chan Event
	completed bool
}

// NewStream creates a broadcast stream. A bufSize of zero or less selects
// the default per-subscriber buffer.
func NewStream(log *slog.Logger, bufSize int) *Stream {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	return &Stream{
		log:     log.With("component", "events"),
		bufSize: bufSize,
		subs:    make(map[string]chan Event),
	}
}

// Subscribe registers a new observer.
//
// The returned channel receives events until Complete is called, at which
// point it is closed. The returned function removes the subscription; it
// is safe to call more than once or after completion.
func (s *Stream) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		ch := make(chan Event)
		close(ch)

		return ch, func() {}
	}

	key := ulid.Make().String()
	ch := make(chan Event, s.bufSize)
	s.subs[key] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if sub, ok := s.subs[key]; ok {
			delete(s.subs, key)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers an event to all subscribers. Publishing on a completed
// stream is a no-op.
func (s *Stream) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return
	}

	for key, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow observers must never stall the reader loop.
			s.log.Warn("Dropping event for slow subscriber", "subscriber", key)
		}
	}
}

// Complete terminates the stream. All subscriber channels are closed and
// no further events are delivered. Safe to call multiple times.
func (s *Stream) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return
	}

	s.completed = true

	for key, ch := range s.subs {
		delete(s.subs, key)
		close(ch)
	}
}
