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

// Package dispatch classifies and routes decrypted Envelope and
// Content payloads: the EnvelopeDispatcher's identity-key re-entry and
// error taxonomy, and the ContentDispatcher's DataMessage/SyncMessage
// precedence dispatch.
package dispatch

import "errors"

var (
	// ErrEmptyEnvelope is returned when an envelope has neither content
	// nor a legacy message and is not a RECEIPT.
	ErrEmptyEnvelope = errors.New("dispatch: envelope has neither content nor legacyMessage")

	// ErrEmptyContent is returned when a decoded Content has neither a
	// dataMessage nor a syncMessage.
	ErrEmptyContent = errors.New("dispatch: content has neither dataMessage nor syncMessage")

	// ErrEmptySync is returned when a SyncMessage matches none of the
	// known variants.
	ErrEmptySync = errors.New("dispatch: sync message matched no known variant")

	// ErrForeignSync is returned when a sync envelope's source is not
	// this receiver's own address.
	ErrForeignSync = errors.New("dispatch: sync message from foreign address")

	// ErrSelfSync is returned when a sync envelope's source device is
	// this receiver's own device (a device never sync-messages itself).
	ErrSelfSync = errors.New("dispatch: sync message from own device")

	// ErrDeprecatedSync is returned for the deprecated contacts/groups/
	// request sync variants.
	ErrDeprecatedSync = errors.New("dispatch: deprecated sync variant")

	// ErrUnsupported is returned by handleBlocked, which is not
	// implemented.
	ErrUnsupported = errors.New("dispatch: unsupported operation")

	// ErrBadTransportRequest is returned when a transport request's verb
	// or path does not match the one supported shape.
	ErrBadTransportRequest = errors.New("dispatch: unsupported transport request")

	// ErrDrainWhileConnected is returned when Drain is called while a
	// transport is attached.
	ErrDrainWhileConnected = errors.New("dispatch: cannot drain while a transport is connected")
)
