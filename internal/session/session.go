package session

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/streamrpc/msgpackrpc-go/internal/config"
	"github.com/streamrpc/msgpackrpc-go/internal/errors"
	"github.com/streamrpc/msgpackrpc-go/internal/event"
	"github.com/streamrpc/msgpackrpc-go/internal/stream"
	"github.com/streamrpc/msgpackrpc-go/internal/wire"
)

// defaultReadBufferSize is the reader loop's buffer size when the caller
// does not configure one.
const defaultReadBufferSize = 4096

// Session multiplexes concurrent calls and inbound events over one
// byte-stream connection.
//
// A dedicated goroutine reads and decodes inbound frames, routing each
// response to the pending call that produced it and broadcasting
// notifications and protocol errors to event subscribers. Call, Start,
// and Stop may be invoked concurrently from any goroutine.
//
// Lock order is fixed: the connection state lock is the outer lock, the
// pending-call table lock the inner one. The table has its own lock so
// response correlation never serializes against unrelated state checks.
type Session struct {
	log     *slog.Logger
	dialer  stream.Dialer
	events  *event.Stream
	mirror  bool
	readBuf int

	// Connection state. Held for reading by Call, for writing by Start
	// and teardown, so no frame is ever written to a closing connection.
	stateMu sync.RWMutex
	running bool
	conn    stream.Conn

	// Serializes frame writes so concurrent calls never interleave bytes.
	writeMu sync.Mutex

	// Call identifier counter, wrapping at the uint32 boundary.
	idMu   sync.Mutex
	nextID uint32

	// Correlation table: in-flight call id to its completion channel.
	pendingMu sync.Mutex
	pending   map[uint32]chan *wire.Response

	// Reader goroutine supervision and teardown broadcast.
	reader    *errgroup.Group
	errMu     sync.RWMutex
	fatalErr  error
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a session. The connection is not opened until Start.
func New(log *slog.Logger, opts *config.Options) *Session {
	if opts == nil {
		opts = &config.Options{}
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &stream.NetDialer{}
	}

	readBuf := opts.ReadBufferSize
	if readBuf <= 0 {
		readBuf = defaultReadBufferSize
	}

	return &Session{
		log:     log.With("component", "session"),
		dialer:  dialer,
		events:  event.NewStream(log, opts.EventBufferSize),
		mirror:  opts.ResponseEvents,
		readBuf: readBuf,
		pending: make(map[uint32]chan *wire.Response),
		done:    make(chan struct{}),
	}
}

// Events returns the broadcast stream for this session.
func (s *Session) Events() *event.Stream {
	return s.events
}

// Done returns a channel closed when the session tears down, whether by
// Stop or by transport failure.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal transport or decode error that ended the reader
// loop, if any. It is nil after a clean Stop.
func (s *Session) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.fatalErr
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}

	s.errMu.Unlock()
}

func (s *Session) closeDone() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Start opens the connection and launches the reader loop.
//
// Starting a running session returns ErrAlreadyConnected. On dial
// failure the error is both broadcast and returned, and the session
// remains stopped.
func (s *Session) Start(ctx context.Context, addr string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.running {
		return errors.ErrAlreadyConnected
	}

	s.log.Debug("Connecting", "addr", addr)

	conn, err := s.dialer.Dial(ctx, addr)
	if err != nil {
		connectErr := &errors.ConnectError{Addr: addr, Err: err}

		s.log.Error("Connect failed", "addr", addr, "error", err)
		s.events.Publish(&event.ProtocolError{Err: connectErr})

		return connectErr
	}

	s.conn = conn
	s.running = true

	s.reader = &errgroup.Group{}
	s.reader.Go(func() error {
		return s.readLoop(conn)
	})

	s.log.Info("Connected", "addr", addr)

	return nil
}

// Stop completes the event stream, resolves every pending call with a
// neutral response, closes the connection, and waits for the reader loop
// to exit. Stopping a stopped session is a no-op.
func (s *Session) Stop() error {
	s.log.Debug("Stopping session")

	s.events.Complete()
	s.teardown()

	if s.reader != nil {
		// The reader wakes from its blocking read once the connection
		// closes; nil here means Start never succeeded.
		_ = s.reader.Wait()
	}

	s.log.Info("Session stopped")

	return nil
}

// teardown transitions the session to stopped: drains the correlation
// table with neutral responses, closes the connection, and signals done.
// Shared by Stop and the reader's fatal-read path; idempotent.
func (s *Session) teardown() {
	s.stateMu.Lock()

	if !s.running {
		s.stateMu.Unlock()
		s.closeDone()

		return
	}

	s.running = false
	conn := s.conn
	s.conn = nil

	s.drainPending()
	s.stateMu.Unlock()

	// Closing done before the connection lets the reader tell a
	// deliberate stop apart from a transport failure.
	s.closeDone()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug("Connection close", "error", err)
		}
	}
}

// drainPending resolves every in-flight call with a neutral response so
// no caller hangs after the connection is gone. Called with stateMu held.
func (s *Session) drainPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	for id, ch := range s.pending {
		ch <- &wire.Response{ID: id}
	}

	clear(s.pending)
}

// nextCallID allocates a fresh call identifier. The counter wraps at the
// 32-bit boundary; an id still held by an in-flight call is skipped so
// identifiers stay unique among pending calls across the wrap.
func (s *Session) nextCallID() uint32 {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	for {
		id := s.nextID
		s.nextID++

		s.pendingMu.Lock()
		_, inFlight := s.pending[id]
		s.pendingMu.Unlock()

		if !inFlight {
			return id
		}
	}
}

// Call issues a request frame for method with params.
//
// With wait true it blocks until the matching response arrives, the
// session tears down (yielding a neutral response), or ctx is cancelled.
// With wait false it returns a neutral response as soon as the frame is
// written; no correlation entry is ever created.
func (s *Session) Call(ctx context.Context, method string, params []any, wait bool) (*wire.Response, error) {
	id := s.nextCallID()

	data, err := wire.EncodeRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	ch, err := s.transmit(id, data, wait)
	if err != nil {
		return nil, err
	}

	if !wait {
		return &wire.Response{ID: id}, nil
	}

	select {
	case resp := <-ch:
		return resp, nil

	case <-ctx.Done():
		s.removePending(id)

		return nil, ctx.Err()
	}
}

// transmit registers the pending call (when wait is set) and writes the
// frame under the state read lock, so the write can never race a
// teardown. Registration precedes the write: a response cannot arrive
// before its table entry exists.
func (s *Session) transmit(id uint32, data []byte, wait bool) (chan *wire.Response, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if !s.running || s.conn == nil {
		return nil, &errors.NotConnectedError{ID: id}
	}

	var ch chan *wire.Response

	if wait {
		ch = make(chan *wire.Response, 1)

		s.pendingMu.Lock()
		s.pending[id] = ch
		s.pendingMu.Unlock()
	}

	s.writeMu.Lock()
	n, err := s.conn.Write(data)
	s.writeMu.Unlock()

	if err != nil {
		s.removePending(id)

		writeErr := &errors.WriteError{ID: id, Err: err}

		s.log.Error("Write failed", "call_id", id, "error", err)
		s.events.Publish(&event.ProtocolError{Err: writeErr})

		return nil, writeErr
	}

	if n < len(data) {
		s.removePending(id)

		s.log.Error("Short write", "call_id", id, "wrote", n, "want", len(data))

		return nil, &errors.ShortWriteError{ID: id, Wrote: n, Want: len(data)}
	}

	s.log.Debug("Request sent", "call_id", id, "bytes", n)

	return ch, nil
}

func (s *Session) removePending(id uint32) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// PendingCount reports the number of in-flight calls.
func (s *Session) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	return len(s.pending)
}

// readLoop is the dedicated reader: it blocks on the connection, decodes
// every complete frame from each chunk, and routes frames until stopped
// or a fatal error.
func (s *Session) readLoop(conn stream.Conn) error {
	defer s.log.Debug("Reader loop stopped")

	buf := make([]byte, s.readBuf)

	var tail []byte

	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-s.done:
				// Deliberate stop closed the connection under us.
				return nil
			default:
			}

			lost := &errors.ConnectionLostError{Err: err}

			s.log.Error("Read failed", "error", err)
			s.events.Publish(&event.ProtocolError{Err: lost})
			s.setErr(lost)
			s.teardown()

			return lost
		}

		tail = append(tail, buf[:n]...)

		values, consumed, decodeErr := wire.DecodeAll(tail)

		// Frames decoded before a corruption point are still valid.
		for _, value := range values {
			s.route(value)
		}

		if decodeErr != nil {
			s.log.Error("Undecodable byte stream", "error", decodeErr)
			s.events.Publish(&event.ProtocolError{Err: decodeErr})
			s.setErr(decodeErr)
			s.closeDone()

			return decodeErr
		}

		remaining := len(tail) - consumed
		copy(tail, tail[consumed:])
		tail = tail[:remaining]
	}
}

// route dispatches one decoded frame. Malformed frames and inbound
// requests become observable broadcast errors; the loop continues.
func (s *Session) route(value any) {
	frame, err := wire.ParseFrame(value)
	if err != nil {
		s.log.Warn("Dropping malformed frame", "error", err)
		s.events.Publish(&event.ProtocolError{Raw: value, Err: err})

		return
	}

	switch f := frame.(type) {
	case *wire.Response:
		s.correlate(f)

	case *wire.Notification:
		s.log.Debug("Notification received", "method", f.Method)
		s.events.Publish(&event.Notification{Method: f.Method, Params: f.Params})

	case *wire.Request:
		// The client is not a server; surface and drop.
		s.log.Warn("Unexpected inbound request", "method", f.Method)
		s.events.Publish(&event.ProtocolError{
			Raw: value,
			Err: &errors.UnexpectedRequestError{Method: f.Method},
		})
	}
}

// correlate resolves the pending call matching a response. A response
// with no table entry was already resolved, for example at teardown, and
// is dropped silently.
func (s *Session) correlate(resp *wire.Response) {
	if s.mirror {
		s.events.Publish(&event.Response{ID: resp.ID, Error: resp.Error, Result: resp.Result})
	}

	s.pendingMu.Lock()

	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}

	s.pendingMu.Unlock()

	if !ok {
		return
	}

	s.log.Debug("Response correlated", "call_id", resp.ID)

	// Buffered and exclusively owned after removal, so this never blocks
	// and resolves exactly once.
	ch <- resp
}
