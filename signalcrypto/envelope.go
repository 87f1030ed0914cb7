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

// Package signalcrypto decrypts streaming-transport frames under the
// shared signalling key and strips Signal's ISO7816-style message
// padding.
package signalcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrFrameAuth is returned when a transport frame fails MAC
// verification or cannot be decrypted.
var ErrFrameAuth = errors.New("signalcrypto: frame authentication failed")

// ErrPadding is returned when unpad finds a malformed trailer.
var ErrPadding = errors.New("signalcrypto: invalid message padding")

const (
	signalingKeyLen = 52
	aesKeyLen       = 32
	macKeyLen       = 20
	macLen          = 10
	versionLen      = 1
)

// EnvelopeCrypto authenticates and decrypts transport frames under a
// single immutable signalling key, and removes Signal's message
// padding from decrypted plaintexts.
type EnvelopeCrypto struct {
	aesKey []byte
	macKey []byte
}

// NewEnvelopeCrypto splits signalingKey into its AES and HMAC halves.
// signalingKey must be exactly 52 bytes: 32 bytes of AES-CBC key
// followed by 20 bytes of HMAC-SHA256 key.
func NewEnvelopeCrypto(signalingKey []byte) (*EnvelopeCrypto, error) {
	if len(signalingKey) != signalingKeyLen {
		return nil, fmt.Errorf("signalcrypto: signaling key must be %d bytes, got %d", signalingKeyLen, len(signalingKey))
	}
	aesKey := make([]byte, aesKeyLen)
	macKey := make([]byte, macKeyLen)
	copy(aesKey, signalingKey[:aesKeyLen])
	copy(macKey, signalingKey[aesKeyLen:])
	return &EnvelopeCrypto{aesKey: aesKey, macKey: macKey}, nil
}

// DecryptFrame authenticates and decrypts a streaming-transport frame
// carrying a protobuf-encoded Envelope. The frame layout is
// version(1) || iv(16) || ciphertext || mac(10), with the MAC computed
// over version||iv||ciphertext. Returns ErrFrameAuth on any MAC
// mismatch or malformed frame.
func (c *EnvelopeCrypto) DecryptFrame(body []byte) ([]byte, error) {
	if len(body) < versionLen+aes.BlockSize+macLen {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrFrameAuth, len(body))
	}
	macStart := len(body) - macLen
	signed := body[:macStart]
	gotMAC := body[macStart:]

	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(signed)
	wantMAC := mac.Sum(nil)[:macLen]
	if !hmac.Equal(gotMAC, wantMAC) {
		return nil, fmt.Errorf("%w: mac mismatch", ErrFrameAuth)
	}

	iv := body[versionLen : versionLen+aes.BlockSize]
	ciphertext := body[versionLen+aes.BlockSize : macStart]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", ErrFrameAuth)
	}

	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameAuth, err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// Unpad removes Signal's ISO7816-style padding: scanning from the
// tail, the first non-zero byte must equal 0x80 and marks the end of
// plaintext. Any other non-zero trailer byte is ErrPadding. An
// all-zero (or empty) buffer unpads to an empty slice.
func Unpad(padded []byte) ([]byte, error) {
	for i := len(padded) - 1; i >= 0; i-- {
		if padded[i] == 0 {
			continue
		}
		if padded[i] != 0x80 {
			return nil, fmt.Errorf("%w: trailer byte 0x%02x at offset %d", ErrPadding, padded[i], i)
		}
		return padded[:i], nil
	}
	return []byte{}, nil
}

// Pad appends Signal-style padding to plaintext: a 0x80 sentinel
// followed by zero-fill out to at least minLen bytes total. Used by
// tests to construct round-trip fixtures.
func Pad(plaintext []byte, minLen int) []byte {
	out := append(append([]byte{}, plaintext...), 0x80)
	if len(out) < minLen {
		out = append(out, bytes.Repeat([]byte{0}, minLen-len(out))...)
	}
	return out
}
