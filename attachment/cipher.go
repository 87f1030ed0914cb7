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

package attachment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrInvalidMAC is returned when an attachment's MAC does not match.
var ErrInvalidMAC = errors.New("attachment: invalid mac")

// ErrInvalidDigest is returned when an attachment's digest does not
// match the pointer's expected digest.
var ErrInvalidDigest = errors.New("attachment: invalid digest")

const (
	attachmentKeyLen = 64
	attachmentAESLen = 32
	attachmentMACLen = 32
)

// decryptAttachment mirrors the attachment cipher used throughout the
// Signal ecosystem: key is 64 bytes (32 byte AES-CBC key || 32 byte
// HMAC-SHA256 key), the body is iv(16) || ciphertext || mac(32), and
// digest (when present) is sha256(iv || ciphertext || mac).
func decryptAttachment(body, key, digest []byte) ([]byte, error) {
	if len(key) != attachmentKeyLen {
		return nil, fmt.Errorf("attachment: key must be %d bytes, got %d", attachmentKeyLen, len(key))
	}
	if len(body) < aes.BlockSize+attachmentMACLen {
		return nil, fmt.Errorf("%w: body too short", ErrInvalidMAC)
	}

	aesKey := key[:attachmentAESLen]
	macKey := key[attachmentAESLen:]

	macStart := len(body) - attachmentMACLen
	signed := body[:macStart]
	gotMAC := body[macStart:]

	mac := hmac.New(sha256.New, macKey)
	mac.Write(signed)
	if !hmac.Equal(gotMAC, mac.Sum(nil)) {
		return nil, ErrInvalidMAC
	}

	if len(digest) > 0 {
		sum := sha256.Sum256(body)
		if !hmac.Equal(sum[:], digest) {
			return nil, ErrInvalidDigest
		}
	}

	iv := body[:aes.BlockSize]
	ciphertext := body[aes.BlockSize:macStart]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", ErrInvalidMAC)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return stripPKCS7(plaintext)
}

func stripPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, nil
	}
	pad := int(b[len(b)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(b) {
		return nil, fmt.Errorf("attachment: invalid padding byte %d", pad)
	}
	return b[:len(b)-pad], nil
}
