// go.sigchat.dev/receiver - a Signal-protocol-compatible message receiver
// Copyright (C) 2026 sigchat contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package transport defines the bidirectional streaming collaborator a
// Receiver binds to, and a websocket implementation of it.
package transport

import "context"

// CloseSentinel is the close code meaning "do not reconnect".
const CloseSentinel = 3000

// IncomingRequest is one inbound request delivered by the transport.
// Respond must be called exactly once.
type IncomingRequest struct {
	Verb string
	Path string
	Body []byte

	Respond func(ctx context.Context, status int, reason string) error
}

// CloseInfo describes why the transport's connection ended.
type CloseInfo struct {
	Code   int
	Reason string
	Err    error
}

// Handler processes one IncomingRequest. It is invoked synchronously
// from the transport's own read loop, so the next inbound frame is not
// read until the handler returns.
type Handler func(ctx context.Context, req *IncomingRequest)

// Transport is the bidirectional request/response stream collaborator.
// Implementations emit incoming requests to Handler and report closure
// on the returned channel exactly once per Connect call.
type Transport interface {
	// Connect dials the transport and begins invoking handler for each
	// inbound request. The returned channel receives exactly one
	// CloseInfo when the connection ends, then is closed.
	Connect(ctx context.Context, handler Handler) (<-chan CloseInfo, error)

	// Close tears down the active connection, if any. Idempotent.
	Close() error

	// SendKeepalive issues the transport's keepalive probe (by default
	// PUT /v1/keepalive); callers disconnect on failure.
	SendKeepalive(ctx context.Context) error
}
