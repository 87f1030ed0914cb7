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
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"go.sigchat.dev/receiver/wire"
)

type fakeDownloader struct {
	bodies map[string][]byte
	errs   map[string]error
}

func (f *fakeDownloader) GetAttachment(ctx context.Context, id string) ([]byte, error) {
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.bodies[id], nil
}

func sealAttachment(t *testing.T, key, plaintext []byte) (body, digest []byte) {
	t.Helper()
	aesKey := key[:attachmentAESLen]
	macKey := key[attachmentAESLen:]

	padded := append([]byte{}, plaintext...)
	pad := aes.BlockSize - len(padded)%aes.BlockSize
	for i := 0; i < pad; i++ {
		padded = append(padded, byte(pad))
	}
	block, err := aes.NewCipher(aesKey)
	require.NoError(t, err)
	iv := make([]byte, aes.BlockSize)
	_, err = rand.Read(iv)
	require.NoError(t, err)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	signed := append(append([]byte{}, iv...), ciphertext...)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(signed)
	body = append(signed, mac.Sum(nil)...)
	sum := sha256.Sum256(body)
	return body, sum[:]
}

func randKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, attachmentKeyLen)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestFetchDecryptsAttachment(t *testing.T) {
	key := randKey(t)
	body, digest := sealAttachment(t, key, []byte("attachment contents"))
	downloader := &fakeDownloader{bodies: map[string][]byte{"5": body}}
	f := NewFetcher(downloader)

	ptr := &wire.AttachmentPointer{ID: 5, Key: key, Digest: digest}
	err := f.Fetch(context.Background(), ptr)
	require.NoError(t, err)
	require.Equal(t, "attachment contents", string(ptr.Data))
}

func TestFetchRejectsBadDigest(t *testing.T) {
	key := randKey(t)
	body, _ := sealAttachment(t, key, []byte("contents"))
	downloader := &fakeDownloader{bodies: map[string][]byte{"5": body}}
	f := NewFetcher(downloader)

	ptr := &wire.AttachmentPointer{ID: 5, Key: key, Digest: []byte("wrong-digest-wrong-digest-wrong")}
	err := f.Fetch(context.Background(), ptr)
	require.Error(t, err)
}

func TestFetchAllFailsWhenOneAttachmentFails(t *testing.T) {
	key := randKey(t)
	body, digest := sealAttachment(t, key, []byte("ok"))
	downloader := &fakeDownloader{
		bodies: map[string][]byte{"1": body},
		errs:   map[string]error{"2": errors.New("404")},
	}
	f := NewFetcher(downloader)
	attachments := []*wire.AttachmentPointer{
		{ID: 1, Key: key, Digest: digest},
		{ID: 2, Key: key},
	}
	err := f.FetchAll(context.Background(), attachments)
	require.Error(t, err)
}

func TestFetchAllSucceedsConcurrently(t *testing.T) {
	key := randKey(t)
	body1, digest1 := sealAttachment(t, key, []byte("one"))
	body2, digest2 := sealAttachment(t, key, []byte("two"))
	downloader := &fakeDownloader{bodies: map[string][]byte{"1": body1, "2": body2}}
	f := NewFetcher(downloader)
	attachments := []*wire.AttachmentPointer{
		{ID: 1, Key: key, Digest: digest1},
		{ID: 2, Key: key, Digest: digest2},
	}
	err := f.FetchAll(context.Background(), attachments)
	require.NoError(t, err)
	require.Equal(t, "one", string(attachments[0].Data))
	require.Equal(t, "two", string(attachments[1].Data))
}
