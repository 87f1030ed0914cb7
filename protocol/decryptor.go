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
	"context"
	"errors"
	"fmt"

	"go.sigchat.dev/receiver/signalcrypto"
	"go.sigchat.dev/receiver/wire"
)

// SessionDecryptor produces cleartext from an Envelope's ciphertext by
// delegating to the external SessionStore for the session cipher
// operation, and then stripping Signal's message padding.
type SessionDecryptor struct {
	Store SessionStore
}

// NewSessionDecryptor binds a SessionDecryptor to store.
func NewSessionDecryptor(store SessionStore) *SessionDecryptor {
	return &SessionDecryptor{Store: store}
}

// Decrypt decrypts ciphertext addressed by envelope's source and
// source device, routing on envelope.Type. CIPHERTEXT envelopes use
// the established whisper session; PREKEY_BUNDLE envelopes establish
// (or continue establishing) a session from a prekey message. Any
// other envelope type is ErrUnknownEnvelopeType.
//
// A PREKEY_BUNDLE decrypt that fails because of an unrecognized
// identity key surfaces as *ErrUnknownIdentityKey, with Ciphertext set
// so the caller can retry after the host accepts the new key.
func (d *SessionDecryptor) Decrypt(ctx context.Context, envelope *wire.Envelope, ciphertext []byte) ([]byte, error) {
	var plaintext []byte
	var err error
	switch envelope.Type {
	case wire.EnvelopeCiphertext:
		plaintext, err = d.Store.DecryptWhisper(ctx, envelope.Source, envelope.SourceDevice, ciphertext)
	case wire.EnvelopePreKeyBundle:
		plaintext, err = d.Store.DecryptPreKeyWhisper(ctx, envelope.Source, envelope.SourceDevice, ciphertext)
		if err != nil {
			var unknownIdentity *ErrUnknownIdentityKey
			if errors.As(err, &unknownIdentity) {
				translated := *unknownIdentity
				translated.Addr = envelope.Source
				translated.DeviceID = envelope.SourceDevice
				translated.Ciphertext = ciphertext
				return nil, &translated
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvelopeType, envelope.Type)
	}
	if err != nil {
		return nil, err
	}
	return signalcrypto.Unpad(plaintext)
}

// CloseAllSessions enumerates every device id with an open session for
// addr and closes them all.
func (d *SessionDecryptor) CloseAllSessions(ctx context.Context, addr string) error {
	deviceIDs, err := d.Store.GetDeviceIDs(ctx, addr)
	if err != nil {
		return fmt.Errorf("protocol: list device ids for %s: %w", addr, err)
	}
	var firstErr error
	for _, deviceID := range deviceIDs {
		if err := d.Store.CloseOpenSessionForDevice(ctx, addr, deviceID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("protocol: close session for %s.%d: %w", addr, deviceID, err)
		}
	}
	return firstErr
}
