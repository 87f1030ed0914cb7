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

// Package protocol wraps the external Signal session cipher: decrypt
// operations for whisper and prekey-whisper ciphertext, and identity
// key change detection. The double-ratchet engine itself is not part
// of this module; SessionStore is the seam a host plugs in.
package protocol

import "context"

// SessionStore is the pluggable collaborator that owns per-(addr,
// deviceId) Signal session state. The receiver never inspects session
// internals; it only asks the store to decrypt or close sessions.
//
// Implementations MUST return an error satisfying errors.As into
// *ErrUnknownIdentityKey when decryption fails specifically because
// the sender's long-term identity key does not match the locally
// trusted one, and an error satisfying errors.Is against
// ErrMessageCounter for duplicate/out-of-order session counters. Other
// protocol-layer decrypt failures should be wrapped in ProtocolError;
// an error of any other type is treated by the dispatcher as
// unexpected (error event, re-raised).
type SessionStore interface {
	// DecryptWhisper decrypts a standard (post-session-established)
	// whisper message ciphertext from addr/deviceId.
	DecryptWhisper(ctx context.Context, addr string, deviceID uint32, ciphertext []byte) ([]byte, error)

	// DecryptPreKeyWhisper decrypts a prekey-whisper message,
	// establishing a new session if one does not already exist.
	DecryptPreKeyWhisper(ctx context.Context, addr string, deviceID uint32, ciphertext []byte) ([]byte, error)

	// GetDeviceIDs returns every device id with an open session for addr.
	GetDeviceIDs(ctx context.Context, addr string) ([]uint32, error)

	// CloseOpenSessionForDevice tears down the session state for one
	// (addr, deviceId) pair, if one is open.
	CloseOpenSessionForDevice(ctx context.Context, addr string, deviceID uint32) error
}
