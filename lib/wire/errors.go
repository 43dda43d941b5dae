// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "errors"

// ErrRequiresMore is returned by handlers of stream-only methods when
// the client did not set the stream flag. The socket server maps it to
// a terminal response with RequiresMore set; every other handler error
// crosses the boundary as a plain Error(message).
var ErrRequiresMore = errors.New("method produces streamed responses: set the stream flag")
