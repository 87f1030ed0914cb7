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

package protocol

import (
	"errors"
	"fmt"
)

// ErrMessageCounter signals a duplicate or out-of-order session
// counter. Callers should log and swallow it; it is never surfaced to
// the event bus.
var ErrMessageCounter = errors.New("protocol: duplicate or out-of-order message counter")

// ErrUnknownEnvelopeType is returned when SessionDecryptor is asked to
// decrypt an envelope type it does not know how to route to a session
// operation.
var ErrUnknownEnvelopeType = errors.New("protocol: unknown envelope type")

// ProtocolError is the generic family of protocol-layer faults that
// are logged and swallowed rather than surfaced as unexpected errors.
// SessionStore implementations should wrap domain-specific faults
// (bad MAC, corrupt session record, replayed prekey, ...) in
// ProtocolError so the dispatcher's error taxonomy classifies them
// correctly instead of treating them as unexpected.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps err as a ProtocolError for operation op.
func NewProtocolError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProtocolError{Op: op, Err: err}
}

// ErrUnknownIdentityKey is returned by a SessionStore when the
// sender's long-term identity key differs from the locally trusted
// one. It carries the original ciphertext so the caller can retry the
// decrypt after the host accepts the new key, and is a typed cause
// rather than a string-matched message precisely so callers don't have
// to sniff error text to detect a key change.
type ErrUnknownIdentityKey struct {
	Addr        string
	DeviceID    uint32
	Ciphertext  []byte
	IdentityKey []byte
}

func (e *ErrUnknownIdentityKey) Error() string {
	return fmt.Sprintf("protocol: unknown identity key for %s.%d", e.Addr, e.DeviceID)
}
