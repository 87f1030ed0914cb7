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

package events

import "go.sigchat.dev/receiver/wire"

// Event names for the public surface dispatched by Bus.
const (
	NameMessage   = "message"
	NameSent      = "sent"
	NameReceipt   = "receipt"
	NameRead      = "read"
	NameKeyChange = "keychange"
	NameError     = "error"
)

// MessageEvent is dispatched for an inbound DataMessage addressed to
// this receiver.
type MessageEvent struct {
	Base
	Timestamp    uint64
	Source       string
	SourceDevice uint32
	Message      *wire.DataMessage
	KeyChange    bool
}

// NewMessageEvent builds a MessageEvent with the correct name.
func NewMessageEvent(timestamp uint64, source string, sourceDevice uint32, message *wire.DataMessage, keyChange bool) *MessageEvent {
	return &MessageEvent{
		Base:         Base{Name: NameMessage},
		Timestamp:    timestamp,
		Source:       source,
		SourceDevice: sourceDevice,
		Message:      message,
		KeyChange:    keyChange,
	}
}

// SentEvent is dispatched for a sync message describing a message this
// receiver's own account sent from another device.
type SentEvent struct {
	Base
	Source                   string
	SourceDevice             uint32
	Timestamp                uint64
	Destination              string
	Message                  *wire.DataMessage
	ExpirationStartTimestamp uint64
	HasExpirationStart       bool
}

// NewSentEvent builds a SentEvent with the correct name.
func NewSentEvent(source string, sourceDevice uint32, timestamp uint64, destination string, message *wire.DataMessage) *SentEvent {
	return &SentEvent{
		Base:         Base{Name: NameSent},
		Source:       source,
		SourceDevice: sourceDevice,
		Timestamp:    timestamp,
		Destination:  destination,
		Message:      message,
	}
}

// ReceiptEvent wraps a raw RECEIPT envelope, passed through unopened.
type ReceiptEvent struct {
	Base
	Proto *wire.Envelope
}

// NewReceiptEvent builds a ReceiptEvent with the correct name.
func NewReceiptEvent(envelope *wire.Envelope) *ReceiptEvent {
	return &ReceiptEvent{Base: Base{Name: NameReceipt}, Proto: envelope}
}

// ReadEntry mirrors wire.SyncRead plus the address and device id of
// the synchronizing device that sent the read list.
type ReadEntry struct {
	Timestamp uint64
	Sender    string
	Source    string
	SourceDevice uint32
}

// ReadEvent is dispatched once per entry in a sync `read` list.
type ReadEvent struct {
	Base
	Timestamp uint64
	Read      ReadEntry
}

// NewReadEvent builds a ReadEvent with the correct name.
func NewReadEvent(timestamp uint64, read ReadEntry) *ReadEvent {
	return &ReadEvent{Base: Base{Name: NameRead}, Timestamp: timestamp, Read: read}
}

// KeyChangeEvent signals a sender's identity key no longer matches the
// locally trusted one. Listeners set Accepted to allow the dispatcher
// to re-decrypt under the new key.
type KeyChangeEvent struct {
	Base
	Addr        string
	IdentityKey []byte
	Accepted    bool
}

// NewKeyChangeEvent builds a KeyChangeEvent with the correct name.
func NewKeyChangeEvent(addr string, identityKey []byte) *KeyChangeEvent {
	return &KeyChangeEvent{Base: Base{Name: NameKeyChange}, Addr: addr, IdentityKey: identityKey}
}

// ErrorEvent is dispatched before any unexpected handler error is
// re-raised to the transport layer.
type ErrorEvent struct {
	Base
	Err   error
	Proto *wire.Envelope
}

// NewErrorEvent builds an ErrorEvent with the correct name.
func NewErrorEvent(err error, envelope *wire.Envelope) *ErrorEvent {
	return &ErrorEvent{Base: Base{Name: NameError}, Err: err, Proto: envelope}
}
