// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import "errors"

var (
	// ErrClosed is returned by Call/Notify once the transport has been
	// closed, either explicitly or because the underlying stream ended.
	ErrClosed = errors.New("transport: closed")

	// ErrTimeout is returned when Call's context is done before a
	// response arrives. The request id remains reserved; a late
	// response is discarded by the reader.
	ErrTimeout = errors.New("transport: request timed out")

	// ErrInvalidFrame indicates the peer sent a malformed Content-Length
	// frame or unparsable JSON body.
	ErrInvalidFrame = errors.New("transport: invalid frame")
)

// LSPError is a structured error returned by the remote end of the
// transport, carrying the JSON-RPC error code/message/data verbatim.
type LSPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *LSPError) Error() string {
	return e.Message
}

// IsParseError reports the JSON-RPC reserved "parse error" code.
func (e *LSPError) IsParseError() bool { return e.Code == -32700 }

// IsMethodNotFound reports the JSON-RPC reserved "method not found" code.
func (e *LSPError) IsMethodNotFound() bool { return e.Code == -32601 }

// IsRequestCancelled reports the LSP-reserved "request cancelled" code.
func (e *LSPError) IsRequestCancelled() bool { return e.Code == -32800 }

// IsServerNotInitialized reports the LSP-reserved code for calls issued
// before initialize completes.
func (e *LSPError) IsServerNotInitialized() bool { return e.Code == -32002 }
