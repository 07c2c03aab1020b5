package session

import (
	"context"
	stderrors "errors"
	"log/slog"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/streamrpc/msgpackrpc-go/internal/config"
	"github.com/streamrpc/msgpackrpc-go/internal/errors"
	"github.com/streamrpc/msgpackrpc-go/internal/event"
	"github.com/streamrpc/msgpackrpc-go/internal/stream"
	"github.com/streamrpc/msgpackrpc-go/internal/wire"
)

type readResult struct {
	data []byte
	err  error
}

// mockConn is a scriptable byte-stream connection. Reads block on pushed
// chunks; writes are recorded for inspection.
type mockConn struct {
	mu         sync.Mutex
	writes     [][]byte
	writeErr   error
	shortWrite bool

	incoming  chan readResult
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		incoming: make(chan readResult, 32),
		closed:   make(chan struct{}),
	}
}

func (m *mockConn) Read(p []byte) (int, error) {
	select {
	case res := <-m.incoming:
		if res.err != nil {
			return 0, res.err
		}

		return copy(p, res.data), nil

	case <-m.closed:
		return 0, net.ErrClosed
	}
}

func (m *mockConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return 0, m.writeErr
	}

	if m.shortWrite {
		return len(p) / 2, nil
	}

	m.writes = append(m.writes, append([]byte(nil), p...))

	return len(p), nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})

	return nil
}

func (m *mockConn) push(t *testing.T, data []byte) {
	t.Helper()

	select {
	case m.incoming <- readResult{data: data}:
	case <-time.After(time.Second):
		t.Fatal("mock conn read queue full")
	}
}

func (m *mockConn) pushErr(t *testing.T, err error) {
	t.Helper()

	select {
	case m.incoming <- readResult{err: err}:
	case <-time.After(time.Second):
		t.Fatal("mock conn read queue full")
	}
}

// sentRequests decodes every request frame written so far into method→id.
func (m *mockConn) sentRequests(t *testing.T) map[string]uint32 {
	t.Helper()

	m.mu.Lock()

	var all []byte
	for _, w := range m.writes {
		all = append(all, w...)
	}

	m.mu.Unlock()

	values, _, err := wire.DecodeAll(all)
	require.NoError(t, err)

	out := make(map[string]uint32, len(values))

	for _, v := range values {
		frame, err := wire.ParseFrame(v)
		require.NoError(t, err)

		req, ok := frame.(*wire.Request)
		require.True(t, ok, "expected request frame, got %T", frame)

		out[req.Method] = req.ID
	}

	return out
}

type mockDialer struct {
	conn stream.Conn
	err  error
}

func (d *mockDialer) Dial(_ context.Context, _ string) (stream.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}

	return d.conn, nil
}

func encodeResponse(t *testing.T, id uint32, errVal, result any) []byte {
	t.Helper()

	data, err := msgpack.Marshal([]any{wire.TypeResponse, id, errVal, result})
	require.NoError(t, err)

	return data
}

func encodeNotification(t *testing.T, method string, params []any) []byte {
	t.Helper()

	data, err := msgpack.Marshal([]any{wire.TypeNotification, method, params})
	require.NoError(t, err)

	return data
}

func startedSession(t *testing.T, conn *mockConn, opts *config.Options) *Session {
	t.Helper()

	if opts == nil {
		opts = &config.Options{}
	}

	opts.Dialer = &mockDialer{conn: conn}

	s := New(slog.Default(), opts)
	require.NoError(t, s.Start(context.Background(), "mock"))
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func waitForEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")

		return nil
	}
}

func TestSession_CallBeforeStart(t *testing.T) {
	s := New(slog.Default(), nil)

	_, err := s.Call(context.Background(), "ping", nil, true)
	require.ErrorIs(t, err, errors.ErrNotConnected)

	var notConnected *errors.NotConnectedError

	require.ErrorAs(t, err, &notConnected)
}

func TestSession_StartWhileRunning(t *testing.T) {
	s := startedSession(t, newMockConn(), nil)

	err := s.Start(context.Background(), "mock")
	require.ErrorIs(t, err, errors.ErrAlreadyConnected)
}

func TestSession_ConnectFailure(t *testing.T) {
	dialErr := stderrors.New("no such socket")
	s := New(slog.Default(), &config.Options{Dialer: &mockDialer{err: dialErr}})

	events, cancel := s.Events().Subscribe()
	defer cancel()

	err := s.Start(context.Background(), "/tmp/missing.sock")

	var connectErr *errors.ConnectError

	require.ErrorAs(t, err, &connectErr)
	require.ErrorIs(t, err, dialErr)

	ev := waitForEvent(t, events).(*event.ProtocolError)
	require.ErrorAs(t, ev.Err, &connectErr)

	// State stayed stopped: calls still fail with not-connected.
	_, err = s.Call(context.Background(), "ping", nil, true)
	require.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestSession_ScrambledResponseCorrelation(t *testing.T) {
	const n = 16

	conn := newMockConn()
	s := startedSession(t, conn, nil)

	methods := make([]string, n)
	for i := range methods {
		methods[i] = "method_" + string(rune('a'+i))
	}

	type result struct {
		method string
		resp   *wire.Response
		err    error
	}

	results := make(chan result, n)

	for _, method := range methods {
		method := method
		go func() {
			resp, err := s.Call(context.Background(), method, []any{method}, true)
			results <- result{method: method, resp: resp, err: err}
		}()
	}

	require.Eventually(t, func() bool {
		return s.PendingCount() == n
	}, time.Second, time.Millisecond)

	// Echo ids back in reverse registration order, each carrying its
	// method name as the result.
	sent := conn.sentRequests(t)
	require.Len(t, sent, n)

	for i := len(methods) - 1; i >= 0; i-- {
		method := methods[i]
		conn.push(t, encodeResponse(t, sent[method], nil, method))
	}

	for j := 0; j < n; j++ {
		res := <-results
		require.NoError(t, res.err)
		require.Equal(t, sent[res.method], res.resp.ID, "response id belongs to a different call")
		require.Equal(t, res.method, res.resp.Result)
	}

	require.Zero(t, s.PendingCount())
}

func TestSession_NoWaitResolvesImmediately(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	resp, err := s.Call(context.Background(), "fire_and_forget", []any{1}, false)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.Nil(t, resp.Result)

	// No correlation entry exists, even before any peer activity.
	require.Zero(t, s.PendingCount())
	require.Len(t, conn.sentRequests(t), 1)
}

func TestSession_StopResolvesPendingNeutrally(t *testing.T) {
	const k = 5

	conn := newMockConn()
	s := startedSession(t, conn, nil)

	results := make(chan *wire.Response, k)

	for i := 0; i < k; i++ {
		i := i
		go func() {
			resp, err := s.Call(context.Background(), "hang", []any{i}, true)
			require.NoError(t, err)
			results <- resp
		}()
	}

	require.Eventually(t, func() bool {
		return s.PendingCount() == k
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())

	for j := 0; j < k; j++ {
		resp := <-results
		require.Nil(t, resp.Error)
		require.Nil(t, resp.Result)
	}

	require.Zero(t, s.PendingCount())
}

func TestSession_MalformedResponseIsRecoverable(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	// A three-element response frame, then a valid notification.
	bad, err := msgpack.Marshal([]any{wire.TypeResponse, 5, nil})
	require.NoError(t, err)

	conn.push(t, bad)
	conn.push(t, encodeNotification(t, "still_alive", []any{}))

	protoErr := waitForEvent(t, events).(*event.ProtocolError)

	var malformed *errors.MalformedFrameError

	require.ErrorAs(t, protoErr.Err, &malformed)

	// The reader survived and processed the next frame.
	notif := waitForEvent(t, events).(*event.Notification)
	require.Equal(t, "still_alive", notif.Method)
}

func TestSession_NotificationBroadcastVerbatim(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	conn.push(t, encodeNotification(t, "foo", []any{1, 2, 3}))

	notif := waitForEvent(t, events).(*event.Notification)
	require.Equal(t, "foo", notif.Method)
	require.Len(t, notif.Params, 3)

	for i, want := range []int{1, 2, 3} {
		require.EqualValues(t, want, notif.Params[i])
	}
}

func TestSession_UnexpectedInboundRequest(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	req, err := msgpack.Marshal([]any{wire.TypeRequest, 1, "compute", []any{}})
	require.NoError(t, err)
	conn.push(t, req)

	protoErr := waitForEvent(t, events).(*event.ProtocolError)

	var unexpected *errors.UnexpectedRequestError

	require.ErrorAs(t, protoErr.Err, &unexpected)
	require.Equal(t, "compute", unexpected.Method)
}

func TestSession_IDAllocationWrapsWithoutCollision(t *testing.T) {
	s := New(slog.Default(), nil)
	s.nextID = math.MaxUint32 - 1

	// Occupy id 0 so the wrap has to skip it.
	s.pending[0] = make(chan *wire.Response, 1)

	require.Equal(t, uint32(math.MaxUint32-1), s.nextCallID())
	require.Equal(t, uint32(math.MaxUint32), s.nextCallID())
	require.Equal(t, uint32(1), s.nextCallID(), "in-flight id 0 must be skipped across the wrap")
}

func TestSession_IDAllocationStrictlyIncreasingUnderConcurrency(t *testing.T) {
	s := New(slog.Default(), nil)

	const n = 200

	ids := make(chan uint32, n)

	var wg sync.WaitGroup

	for j := 0; j < n; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- s.nextCallID()
		}()
	}

	wg.Wait()
	close(ids)

	seen := make(map[uint32]bool, n)
	for id := range ids {
		require.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}

	require.Len(t, seen, n)
}

func TestSession_ReadErrorTearsDown(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	done := make(chan *wire.Response, 1)

	go func() {
		resp, err := s.Call(context.Background(), "hang", nil, true)
		require.NoError(t, err)
		done <- resp
	}()

	require.Eventually(t, func() bool {
		return s.PendingCount() == 1
	}, time.Second, time.Millisecond)

	conn.pushErr(t, stderrors.New("connection reset by peer"))

	protoErr := waitForEvent(t, events).(*event.ProtocolError)

	var lost *errors.ConnectionLostError

	require.ErrorAs(t, protoErr.Err, &lost)

	// Pending call resolved neutrally by teardown.
	resp := <-done
	require.Nil(t, resp.Error)
	require.Nil(t, resp.Result)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session should signal done after read failure")
	}

	require.ErrorAs(t, s.Err(), &lost)

	// No further writes succeed.
	_, err := s.Call(context.Background(), "after", nil, true)
	require.ErrorIs(t, err, errors.ErrNotConnected)

	// Exactly one connection-lost event was emitted.
	select {
	case extra := <-events:
		if pe, ok := extra.(*event.ProtocolError); ok {
			var again *errors.ConnectionLostError

			require.False(t, stderrors.As(pe.Err, &again), "duplicate connection-lost event")
		}
	default:
	}
}

func TestSession_DecodeFailureTerminatesReader(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	// 0xc1 is never valid MessagePack.
	conn.push(t, []byte{0xc1})

	protoErr := waitForEvent(t, events).(*event.ProtocolError)

	var decodeErr *errors.DecodeError

	require.ErrorAs(t, protoErr.Err, &decodeErr)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session should signal done after decode failure")
	}

	require.ErrorAs(t, s.Err(), &decodeErr)
}

func TestSession_WriteFailure(t *testing.T) {
	conn := newMockConn()
	conn.writeErr = stderrors.New("broken pipe")

	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	_, err := s.Call(context.Background(), "ping", nil, true)

	var writeErr *errors.WriteError

	require.ErrorAs(t, err, &writeErr)
	require.Zero(t, s.PendingCount(), "failed call must not leak a correlation entry")

	// The failure is also broadcast to observers.
	protoErr := waitForEvent(t, events).(*event.ProtocolError)
	require.ErrorAs(t, protoErr.Err, &writeErr)
}

func TestSession_ShortWrite(t *testing.T) {
	conn := newMockConn()
	conn.shortWrite = true

	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	_, err := s.Call(context.Background(), "ping", nil, true)

	var short *errors.ShortWriteError

	require.ErrorAs(t, err, &short)
	require.Zero(t, s.PendingCount())

	// Short writes surface to the caller only.
	select {
	case ev := <-events:
		t.Fatalf("unexpected broadcast event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_ResponseMirroring(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, &config.Options{ResponseEvents: true})

	events, cancel := s.Events().Subscribe()
	defer cancel()

	done := make(chan *wire.Response, 1)

	go func() {
		resp, err := s.Call(context.Background(), "eval", []any{"1+1"}, true)
		require.NoError(t, err)
		done <- resp
	}()

	require.Eventually(t, func() bool {
		return s.PendingCount() == 1
	}, time.Second, time.Millisecond)

	sent := conn.sentRequests(t)
	conn.push(t, encodeResponse(t, sent["eval"], nil, 2))

	mirrored := waitForEvent(t, events).(*event.Response)
	require.Equal(t, sent["eval"], mirrored.ID)
	require.EqualValues(t, 2, mirrored.Result)

	resp := <-done
	require.Equal(t, mirrored.ID, resp.ID)
}

func TestSession_UnmatchedResponseDroppedSilently(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	conn.push(t, encodeResponse(t, 999, nil, "stale"))
	conn.push(t, encodeNotification(t, "after", []any{}))

	// Only the notification surfaces; the stale response is dropped.
	notif := waitForEvent(t, events).(*event.Notification)
	require.Equal(t, "after", notif.Method)
}

func TestSession_PartialFrameAcrossReads(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	done := make(chan *wire.Response, 1)

	go func() {
		resp, err := s.Call(context.Background(), "split", nil, true)
		require.NoError(t, err)
		done <- resp
	}()

	require.Eventually(t, func() bool {
		return s.PendingCount() == 1
	}, time.Second, time.Millisecond)

	sent := conn.sentRequests(t)
	whole := encodeResponse(t, sent["split"], nil, "joined")

	cut := len(whole) / 2
	conn.push(t, whole[:cut])
	conn.push(t, whole[cut:])

	select {
	case resp := <-done:
		require.Equal(t, "joined", resp.Result)
	case <-time.After(time.Second):
		t.Fatal("call never resolved from a split frame")
	}
}

func TestSession_CallContextCancellation(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		_, err := s.Call(ctx, "hang", nil, true)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return s.PendingCount() == 1
	}, time.Second, time.Millisecond)

	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	require.Zero(t, s.PendingCount(), "abandoned call must clean up its entry")
}

func TestSession_StopIdempotent(t *testing.T) {
	conn := newMockConn()
	s := startedSession(t, conn, nil)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed after stop")
	}
}

func TestSession_StopConcurrentWithCalls(t *testing.T) {
	// Teardown racing issuance must never panic or hang; every call
	// either resolves neutrally or fails with not-connected.
	// Run with: go test -race
	for iter := 0; iter < 50; iter++ {
		conn := newMockConn()
		s := startedSession(t, conn, nil)

		var wg sync.WaitGroup

		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.Call(context.Background(), "racy", nil, true)
				if err != nil {
					require.ErrorIs(t, err, errors.ErrNotConnected)

					return
				}

				require.Nil(t, resp.Error)
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Stop()
		}()

		wg.Wait()
	}
}
