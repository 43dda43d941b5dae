// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmkit-project/charmkit/lib/codec"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// HandlerFunc processes one call for a specific method. The request is
// fully decoded; method-specific fields the handler does not use are
// zero.
//
// Return a value to include in the terminal response, or an error for
// a failure response. If the returned value is nil, the response
// contains only {ok: true}. If non-nil, the value is marshaled as
// CBOR and placed in the response's "data" field. Returning
// wire.ErrRequiresMore (possibly wrapped) marks the failure as a
// streaming-contract violation rather than an operational error.
type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// Call is one in-flight request. Streaming handlers use Send to emit
// intermediate frames before returning their terminal result.
type Call struct {
	// Request is the decoded client request.
	Request *wire.Request

	conn   net.Conn
	logger *slog.Logger
}

// Stream reports whether the client asked for streamed intermediate
// frames.
func (c *Call) Stream() bool { return c.Request.Stream }

// Send emits one intermediate frame carrying v. Only valid when
// Stream() is true; calling it on a non-streaming call is a
// programming error and returns an error rather than corrupting the
// response sequence.
func (c *Call) Send(v any) error {
	if !c.Request.Stream {
		return fmt.Errorf("socket: Send on non-streaming call %q", c.Request.Method)
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("socket: marshaling frame: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(c.conn).Encode(wire.Frame{More: true, Data: data}); err != nil {
		return fmt.Errorf("socket: writing frame: %w", err)
	}
	return nil
}

// Server serves the charmkit CBOR protocol on a Unix socket. Each
// connection handles exactly one request-response cycle: the client
// writes a request, the server processes it and writes a (possibly
// frame-preceded) terminal response, then the connection closes.
//
// Methods are registered with Handle before calling Serve. Unknown
// methods receive an error response.
type Server struct {
	socketPath string
	handlers   map[string]HandlerFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight handlers for graceful
	// shutdown. Serve waits for all active connections to complete
	// before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath. Register
// methods with Handle before calling Serve.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]HandlerFunc),
		logger:     logger,
	}
}

// Handle registers a handler for the given method name. Panics if the
// method is already registered.
func (s *Server) Handle(method string, handler HandlerFunc) {
	if _, exists := s.handlers[method]; exists {
		panic(fmt.Sprintf("socket.Server: duplicate handler for method %q", method))
	}
	s.handlers[method] = handler
}

// Serve starts accepting connections on the Unix socket and
// dispatches requests to registered method handlers. Blocks until ctx
// is cancelled, then stops accepting new connections and waits for
// active handlers to complete.
//
// Any existing socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
// A well-behaved client sends the request immediately after
// connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for each response or frame write.
const writeTimeout = 10 * time.Second

// maxRequestSize is the maximum size of a single CBOR request. 1 MB
// is generous for any state or container operation.
const maxRequestSize = 1024 * 1024

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// Decode one CBOR request from the connection. CBOR is self-
	// delimiting so no framing protocol is needed. LimitReader
	// prevents a malicious client from exhausting memory.
	var request wire.Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err), false)
		return
	}

	if request.Method == "" {
		s.writeError(conn, "missing required field: method", false)
		return
	}

	handler, exists := s.handlers[request.Method]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown method %q", request.Method), false)
		return
	}

	// The streaming contract is enforced centrally so no handler can
	// accidentally truncate unbounded output for a buffered caller.
	if wire.StreamOnly(request.Method) && !request.Stream {
		s.writeError(conn, wire.ErrRequiresMore.Error(), true)
		return
	}

	callCtx := ctx
	if request.Stream {
		// Streaming calls may outlive the request read deadline by
		// any amount (hook scripts are unbounded). Clear it, and
		// cancel the handler's context if the client disconnects so
		// the underlying process is released promptly.
		conn.SetReadDeadline(time.Time{})

		var cancel context.CancelFunc
		callCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			<-watchDisconnect(conn)
			cancel()
		}()
	}

	call := &Call{Request: &request, conn: conn, logger: s.logger}
	result, err := handler(callCtx, call)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil && request.Stream {
			// Client gone mid-stream; nobody is reading the error.
			s.logger.Debug("client disconnected mid-stream",
				"method", request.Method,
			)
			return
		}
		s.logger.Debug("method failed",
			"method", request.Method,
			"error", err,
		)
		s.writeError(conn, err.Error(), errors.Is(err, wire.ErrRequiresMore))
		return
	}

	s.writeSuccess(conn, result)
}

// watchDisconnect monitors a connection for closure in a background
// goroutine. Returns a channel that is closed when the peer
// disconnects (the Read returns any error, including EOF). Streaming
// clients keep their write side open for exactly this purpose; a
// successful read would violate the one-request protocol and counts
// as a disconnect too.
func watchDisconnect(conn net.Conn) <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		buffer := make([]byte, 1)
		conn.Read(buffer)
		close(closed)
	}()
	return closed
}

// writeError sends a failure response: {ok: false, error: "..."},
// with requires_more set for streaming-contract violations. Write
// failures are logged at debug level; the connection is closing
// regardless, and the caller has already received the error.
func (s *Server) writeError(conn net.Conn, message string, requiresMore bool) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(wire.Response{
		OK:           false,
		Error:        message,
		RequiresMore: requiresMore,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends a success response. If result is nil, the
// response is {ok: true}. If non-nil, the value is marshaled as CBOR
// and placed in the "data" field: {ok: true, data: <cbor>}.
func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := wire.Response{OK: true}

	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err), false)
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
