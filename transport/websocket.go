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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
)

// PingInterval is how often WebsocketTransport sends a keepalive ping
// frame at the websocket protocol level, independent of the
// application-level SendKeepalive probe.
var PingInterval = 30 * time.Second

// PingTimeout bounds how long a single ping is allowed to take.
var PingTimeout = 20 * time.Second

// frame is the JSON envelope multiplexing requests and responses over
// one websocket connection. It is this module's own framing
// convention, unrelated to the protobuf Envelope carried inside a
// request's Body.
type frame struct {
	Type    string `json:"type"`
	ID      uint64 `json:"id"`
	Verb    string `json:"verb,omitempty"`
	Path    string `json:"path,omitempty"`
	Body    []byte `json:"body,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	frameTypeRequest  = "request"
	frameTypeResponse = "response"
)

// WebsocketTransport implements Transport over github.com/coder/websocket.
type WebsocketTransport struct {
	URL     string
	Headers http.Header

	conn      atomic.Pointer[websocket.Conn]
	closeEvt  *exsync.Event
	cancel    atomic.Pointer[context.CancelFunc]
	nextReqID atomic.Uint64
	pending   *exsync.Map[uint64, chan frame]
}

var _ Transport = (*WebsocketTransport)(nil)

// NewWebsocketTransport constructs a transport that will dial url.
func NewWebsocketTransport(url string, headers http.Header) *WebsocketTransport {
	return &WebsocketTransport{
		URL:      url,
		Headers:  headers,
		closeEvt: exsync.NewEvent(),
		pending:  exsync.NewMap[uint64, chan frame](),
	}
}

func (t *WebsocketTransport) Connect(ctx context.Context, handler Handler) (<-chan CloseInfo, error) {
	opts := &websocket.DialOptions{HTTPHeader: t.Headers}
	conn, _, err := websocket.Dial(ctx, t.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)
	t.conn.Store(conn)

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel.Store(&cancel)
	closeCh := make(chan CloseInfo, 1)

	go t.readLoop(loopCtx, conn, handler, closeCh)
	go t.pingLoop(loopCtx, conn)

	return closeCh, nil
}

func (t *WebsocketTransport) readLoop(ctx context.Context, conn *websocket.Conn, handler Handler, closeCh chan CloseInfo) {
	log := zerolog.Ctx(ctx).With().Str("loop", "transport_read").Logger()
	var closeInfo CloseInfo
	for {
		var f frame
		err := wsjson.Read(ctx, conn, &f)
		if err != nil {
			code := websocket.CloseStatus(err)
			if code == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				closeInfo = CloseInfo{Code: int(code)}
			} else {
				closeInfo = CloseInfo{Code: int(code), Err: fmt.Errorf("transport: read: %w", err)}
			}
			break
		}
		switch f.Type {
		case frameTypeRequest:
			reqID := f.ID
			handler(ctx, &IncomingRequest{
				Verb: f.Verb,
				Path: f.Path,
				Body: f.Body,
				Respond: func(ctx context.Context, status int, reason string) error {
					return t.writeFrame(ctx, frame{Type: frameTypeResponse, ID: reqID, Status: status, Message: reason})
				},
			})
		case frameTypeResponse:
			if ch, ok := t.pending.Pop(f.ID); ok {
				ch <- f
				close(ch)
			} else {
				log.Warn().Uint64("id", f.ID).Msg("Received response with unknown id")
			}
		default:
			log.Warn().Str("type", f.Type).Msg("Received frame of unknown type")
		}
	}
	t.emitClose(closeCh, closeInfo)
}

func (t *WebsocketTransport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	log := zerolog.Ctx(ctx).With().Str("loop", "transport_ping").Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Err(err).Msg("Ping failed, closing connection")
				conn.Close(websocket.StatusNormalClosure, "ping timeout")
				return
			}
		}
	}
}

func (t *WebsocketTransport) writeFrame(ctx context.Context, f frame) error {
	conn := t.conn.Load()
	if conn == nil {
		return errors.New("transport: not connected")
	}
	return wsjson.Write(ctx, conn, f)
}

// SendKeepalive issues the application-level keepalive request; by
// convention the server expects PUT /v1/keepalive and treats failure
// to respond as grounds to disconnect.
func (t *WebsocketTransport) SendKeepalive(ctx context.Context) error {
	_, err := t.sendRequest(ctx, "PUT", "/v1/keepalive", nil)
	return err
}

func (t *WebsocketTransport) sendRequest(ctx context.Context, verb, path string, body []byte) (*frame, error) {
	id := t.nextReqID.Add(1)
	respCh := make(chan frame, 1)
	t.pending.Set(id, respCh)
	if err := t.writeFrame(ctx, frame{Type: frameTypeRequest, ID: id, Verb: verb, Path: path, Body: body}); err != nil {
		t.pending.Pop(id)
		return nil, err
	}
	select {
	case resp := <-respCh:
		return &resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// emitClose delivers info on closeCh and closes it. It is only ever
// called once, by the readLoop goroutine for that connection, when its
// read loop exits.
func (t *WebsocketTransport) emitClose(closeCh chan CloseInfo, info CloseInfo) {
	t.closeEvt.Set()
	select {
	case closeCh <- info:
	default:
	}
	close(closeCh)
}

func (t *WebsocketTransport) Close() error {
	if cancelFn := t.cancel.Swap(nil); cancelFn != nil {
		(*cancelFn)()
	}
	if conn := t.conn.Swap(nil); conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}
