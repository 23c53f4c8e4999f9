// Package devtools implements C4 of the specification: a single
// WebSocket connection to one DevTools Target, multiplexing a
// request/response command protocol and an event fan-out over the one
// socket.
//
// Following Design Notes §9, a single reader goroutine is the only reader
// of the socket and owns two tables — in-flight waiters keyed by message
// id, and event subscribers keyed by method name. Session.Send is a
// request/response call layered on top of those tables: it writes its
// command frame under the session's write mutex and then waits for the
// reader to hand it the matching reply.
package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout is the default per-command reply timeout (spec §4.4).
const DefaultTimeout = 30 * time.Second

// Session is a logical bidirectional channel bound to one Target. It
// satisfies the invariants of spec §3's Session data model: every sent
// command gets a unique, monotonically increasing id; every reply is
// correlated to its waiter or handed to the event fan-out; at most one
// outbound writer runs at a time.
type Session struct {
	c *conn

	nextID int64 // atomic, monotonic starting at 1

	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[int64]chan *cdproto.Message
	subs    map[cdproto.MethodType]map[uint64]func(json.RawMessage)
	subSeq  uint64
	closed  bool
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc

	timeout time.Duration
	logger  *logrus.Logger
}

// Option configures a Session at Open time.
type Option func(*Session)

// WithTimeout overrides DefaultTimeout for every Send call. The timeout
// applies alongside any deadline on the ctx passed to Send; whichever
// expires first ends the call.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithLogger plugs a logrus.Logger into the session (ambient stack §3);
// nil leaves logrus.StandardLogger() in place.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebugFrames logs every inbound/outbound frame at debug level.
func WithDebugFrames() Option {
	return func(s *Session) {
		s.c.debugf = func(format string, args ...interface{}) {
			s.logger.Debugf(format, args...)
		}
	}
}

// Open dials wsURL and starts the session's reader loop.
func Open(ctx context.Context, wsURL string, opts ...Option) (*Session, error) {
	c, err := dial(ctx, wsURL)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		c:       c,
		waiters: make(map[int64]chan *cdproto.Message),
		subs:    make(map[cdproto.MethodType]map[uint64]func(json.RawMessage)),
		ctx:     sctx,
		cancel:  cancel,
		timeout: DefaultTimeout,
		logger:  logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}

	go s.readLoop()
	return s, nil
}

// Context is bound to the session's lifetime; it is cancelled the moment
// the connection closes (SPEC_FULL §6.4), so callers can select on it
// instead of polling.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) readLoop() {
	defer s.cancel()
	for {
		msg := new(cdproto.Message)
		if err := s.c.read(msg); err != nil {
			s.failAll(ErrConnectionClosed)
			return
		}

		switch {
		case msg.ID != 0:
			s.mu.Lock()
			ch, ok := s.waiters[msg.ID]
			delete(s.waiters, msg.ID)
			s.mu.Unlock()
			if ok {
				ch <- msg
			} else {
				s.logger.Warnf("devtools: reply for unknown id %d", msg.ID)
			}

		case msg.Method != "":
			s.dispatch(msg)

		default:
			s.logger.Warnf("devtools: malformed frame (no id, no method)")
		}
	}
}

func (s *Session) dispatch(msg *cdproto.Message) {
	s.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(s.subs[msg.Method]))
	for _, h := range s.subs[msg.Method] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	// Handlers run outside the write mutex and outside s.mu, per the
	// contract in Design Notes §9: they must be short and must not
	// re-enter Send on this same session synchronously.
	for _, h := range handlers {
		h(msg.Params)
	}
}

func (s *Session) failAll(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.lastErr = err
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Send serializes a command, assigns the next session id, and suspends
// until a matching reply arrives, ctx is done, or the session timeout
// elapses. It returns the raw "result" subtree on success.
//
// params may be any JSON-marshalable value: a generated cdproto param
// struct (these also satisfy easyjson.Marshaler, but Send only requires
// the stdlib json.Marshaler contract so that ad-hoc params — e.g. a
// map[string]string for a simple command — work too), or nil for
// parameterless commands.
func (s *Session) Send(ctx context.Context, method cdproto.MethodType, params interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	id := atomic.AddInt64(&s.nextID, 1)
	ch := make(chan *cdproto.Message, 1)
	s.waiters[id] = ch
	s.mu.Unlock()

	var paramsMsg easyjson.RawMessage
	if params != nil {
		var err error
		paramsMsg, err = marshalParams(params)
		if err != nil {
			s.removeWaiter(id)
			return nil, err
		}
	}

	msg := &cdproto.Message{ID: id, Method: method, Params: paramsMsg}

	s.writeMu.Lock()
	err := s.c.write(msg)
	s.writeMu.Unlock()
	if err != nil {
		s.removeWaiter(id)
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

	timeout := s.timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrConnectionClosed
		}
		if reply.Error != nil {
			return nil, &ChromiumError{Code: reply.Error.Code, Message: reply.Error.Message}
		}
		return json.RawMessage(reply.Result), nil
	case <-timer.C:
		s.removeWaiter(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		s.removeWaiter(id)
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrConnectionClosed
	}
}

func (s *Session) removeWaiter(id int64) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

// Subscribe registers handler for every event frame whose method matches.
// Events are delivered in the order the session receives them. It returns
// an unsubscribe func.
func (s *Session) Subscribe(method cdproto.MethodType, handler func(json.RawMessage)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.subSeq
	s.subSeq++
	if s.subs[method] == nil {
		s.subs[method] = make(map[uint64]func(json.RawMessage))
	}
	s.subs[method][id] = handler

	return func() {
		s.mu.Lock()
		delete(s.subs[method], id)
		s.mu.Unlock()
	}
}

// Close tears down the underlying connection, failing every in-flight
// waiter with ErrConnectionClosed.
func (s *Session) Close() error {
	s.failAll(ErrConnectionClosed)
	s.cancel()
	return s.c.Close()
}

// marshalParams renders params into the raw bytes cdproto.Message.Params
// expects. Generated cdproto param types go through the faster easyjson
// path; anything else falls back to encoding/json.
func marshalParams(params interface{}) (easyjson.RawMessage, error) {
	if m, ok := params.(easyjson.Marshaler); ok {
		b, err := easyjson.Marshal(m)
		if err != nil {
			return nil, err
		}
		return easyjson.RawMessage(b), nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return easyjson.RawMessage(b), nil
}
