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

package commands

import "context"

// devStore is a development-only protocol.SessionStore that treats
// envelope bodies as already-decrypted bytes. It exists so receiverd
// can exercise the full dispatch pipeline without a real Signal
// Protocol session manager attached. A production deployment supplies
// its own SessionStore backed by actual double-ratchet session state;
// this module only consumes that interface, it does not implement
// Signal Protocol key agreement itself.
type devStore struct{}

func (devStore) DecryptWhisper(ctx context.Context, addr string, deviceID uint32, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}

func (devStore) DecryptPreKeyWhisper(ctx context.Context, addr string, deviceID uint32, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}

func (devStore) GetDeviceIDs(ctx context.Context, addr string) ([]uint32, error) {
	return nil, nil
}

func (devStore) CloseOpenSessionForDevice(ctx context.Context, addr string, deviceID uint32) error {
	return nil
}
