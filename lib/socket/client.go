// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/charmkit-project/charmkit/lib/codec"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// dialTimeout is the maximum time to wait for a connection to the
// daemon socket. This is separate from the server's read/write
// timeouts; it covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long a buffered Call waits for the
// terminal response after writing the request. Matched to the
// server's readTimeout + writeTimeout plus headroom for handler
// execution. Streaming calls have no read deadline: hook scripts are
// unbounded and cancellation belongs to the caller's context.
const responseReadTimeout = 45 * time.Second

// maxResponseSize is the maximum size of a single CBOR reply.
// Matches the server's maxRequestSize for symmetry.
const maxResponseSize = 1024 * 1024

// CallError is returned when the daemon responds with ok=false. It
// wraps the daemon's error message and the method that failed.
type CallError struct {
	Method  string
	Message string

	// RequiresMore is set when the failure is a streaming-contract
	// violation: the method must be re-invoked with streaming.
	RequiresMore bool
}

func (e *CallError) Error() string {
	return fmt.Sprintf("daemon error on %q: %s", e.Method, e.Message)
}

// Client sends requests to the charmkit daemon socket. Each call
// opens a new connection (matching the server's one-request-per-
// connection model), sends the request, reads the reply sequence, and
// closes the connection.
type Client struct {
	socketPath string
}

// NewClient creates a client for the daemon socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends a buffered request and decodes the terminal response.
//
// On success (ok=true), if result is non-nil and the response
// contains data, the data is CBOR-decoded into result.
//
// On failure (ok=false), returns a *CallError containing the daemon's
// error message. Connection and encoding errors are returned as plain
// errors (not *CallError).
func (c *Client) Call(ctx context.Context, request *wire.Request, result any) error {
	request.Stream = false

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", request.Method, c.socketPath, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("calling %q: writing request: %w", request.Method, err)
	}

	// Half-close the write side. CBOR is self-delimiting so this
	// isn't strictly necessary, but it lets the server's read side
	// see EOF cleanly. Streaming calls must NOT do this: the open
	// write side is how the server detects client disconnect.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	reply, err := newReplyReader(conn).next()
	if err != nil {
		return fmt.Errorf("calling %q: %w", request.Method, err)
	}
	if reply.More {
		return fmt.Errorf("calling %q: unexpected stream frame on buffered call", request.Method)
	}

	return c.finish(request.Method, reply, result)
}

// CallStream sends a streaming request. Each intermediate frame's
// payload is passed to onFrame; the terminal response is decoded into
// result as in Call. If onFrame returns an error, the connection is
// closed immediately (which cancels the handler server-side) and the
// error is returned.
//
// Cancelling ctx also closes the connection, releasing the server-side
// process promptly.
func (c *Client) CallStream(ctx context.Context, request *wire.Request, onFrame func(data codec.RawMessage) error, result any) error {
	request.Stream = true

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", request.Method, c.socketPath, err)
	}
	defer conn.Close()

	// Close the connection when ctx is cancelled so the blocking
	// decode below returns and the server sees the disconnect.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("calling %q: writing request: %w", request.Method, err)
	}

	replies := newReplyReader(conn)
	for {
		reply, err := replies.next()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("calling %q: %w", request.Method, ctx.Err())
			}
			return fmt.Errorf("calling %q: %w", request.Method, err)
		}

		if reply.More {
			if err := onFrame(reply.Data); err != nil {
				return fmt.Errorf("calling %q: frame consumer: %w", request.Method, err)
			}
			continue
		}

		return c.finish(request.Method, reply, result)
	}
}

// dial opens a new connection to the daemon socket.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return conn, nil
}

// replyReader decodes the reply sequence from one connection. A single
// decoder must be reused for every reply on the connection: the CBOR
// decoder reads ahead from the socket into an internal buffer, so a
// per-reply decoder would swallow the bytes of subsequent replies when
// the server writes frames and the terminal response back-to-back.
type replyReader struct {
	limited *io.LimitedReader
	decoder *codec.Decoder
}

func newReplyReader(conn net.Conn) *replyReader {
	limited := &io.LimitedReader{R: conn, N: maxResponseSize}
	return &replyReader{
		limited: limited,
		decoder: codec.NewDecoder(limited),
	}
}

// next decodes one reply (frame or terminal). The size limit is
// per-reply: each decode may draw at most maxResponseSize further
// bytes from the socket.
func (r *replyReader) next() (*wire.Reply, error) {
	r.limited.N = maxResponseSize
	var reply wire.Reply
	if err := r.decoder.Decode(&reply); err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	return &reply, nil
}

// finish maps a terminal reply to the caller's result or a
// *CallError.
func (c *Client) finish(method string, reply *wire.Reply, result any) error {
	if !reply.OK {
		return &CallError{
			Method:       method,
			Message:      reply.Error,
			RequiresMore: reply.RequiresMore,
		}
	}

	if result != nil && len(reply.Data) > 0 {
		if err := codec.Unmarshal(reply.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", method, err)
		}
	}

	return nil
}
