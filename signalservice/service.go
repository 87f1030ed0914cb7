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

// Package signalservice implements the HTTP collaborator a Receiver
// uses for everything outside the message stream itself: device
// listing (for reconnect liveness probing), attachment download, and
// the drain path's poll/delete cycle.
package signalservice

import (
	"context"
	"encoding/json"
	"net/http"
)

const UserAgent = "sigchat-receiver/1.0"

// Request describes one REST call against the service.
type Request struct {
	Call          string
	HTTPType      string
	URLParameters string
	Body          []byte
}

// Device is one entry returned by GetDevices, used only as a liveness
// probe target during reconnect.
type Device struct {
	ID   uint32 `json:"id"`
	Name string `json:"name,omitempty"`
}

// DrainEnvelope is one entry returned by GetMessages in the drain
// path, before it has been folded into a wire.Envelope.
type DrainEnvelope struct {
	Type         int32  `json:"type"`
	Source       string `json:"source"`
	SourceDevice uint32 `json:"sourceDevice"`
	Timestamp    uint64 `json:"timestamp"`
	Content      string `json:"content,omitempty"`
	Message      string `json:"message,omitempty"`
}

// DrainResponse is the body of a GetMessages call.
type DrainResponse struct {
	Messages []DrainEnvelope `json:"messages"`
	More     bool            `json:"more"`
}

// Service is the collaborator contract a Receiver uses for anything
// that isn't the message stream itself. ProtocolError-family errors
// from implementations are expected to wrap a *ProtocolError-shaped
// failure so callers can classify them; see protocol.ProtocolError.
type Service interface {
	// Request issues an arbitrary authenticated REST call and decodes
	// the JSON response into v (nil to discard the body).
	Request(ctx context.Context, req Request, v any) error

	// GetDevices lists this account's linked devices. Used purely as a
	// liveness probe when deciding whether to reconnect after a
	// transport close.
	GetDevices(ctx context.Context) ([]Device, error)

	// GetAttachment downloads the ciphertext body for an attachment id.
	GetAttachment(ctx context.Context, id string) ([]byte, error)

	// GetMessageStreamURL returns the URL the streaming transport
	// should dial.
	GetMessageStreamURL(ctx context.Context) (string, error)

	// GetMessages polls the drain endpoint for queued envelopes.
	GetMessages(ctx context.Context) (*DrainResponse, error)

	// DeleteMessage acknowledges (and removes) one drained envelope.
	DeleteMessage(ctx context.Context, source string, timestamp uint64) error
}

func decodeJSON(resp *http.Response, v any) error {
	if v == nil {
		return nil
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
