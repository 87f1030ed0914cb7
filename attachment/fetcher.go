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

// Package attachment downloads and decrypts attachments referenced by
// a decrypted message.
package attachment

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"go.sigchat.dev/receiver/wire"
)

// Downloader fetches ciphertext for an attachment id, as exposed by
// the service collaborator.
type Downloader interface {
	GetAttachment(ctx context.Context, id string) ([]byte, error)
}

// Fetcher downloads and decrypts AttachmentPointers, writing plaintext
// back into each pointer's Data field.
type Fetcher struct {
	Service Downloader
}

// NewFetcher binds a Fetcher to service.
func NewFetcher(service Downloader) *Fetcher {
	return &Fetcher{Service: service}
}

// Fetch downloads the ciphertext for attachment.ID, decrypts it with
// attachment.Key (verifying attachment.Digest when present), and
// writes the plaintext into attachment.Data.
func (f *Fetcher) Fetch(ctx context.Context, attachment *wire.AttachmentPointer) error {
	body, err := f.Service.GetAttachment(ctx, strconv.FormatUint(attachment.ID, 10))
	if err != nil {
		return fmt.Errorf("attachment: download %d: %w", attachment.ID, err)
	}
	plaintext, err := decryptAttachment(body, attachment.Key, attachment.Digest)
	if err != nil {
		return fmt.Errorf("attachment: decrypt %d: %w", attachment.ID, err)
	}
	attachment.Data = plaintext
	return nil
}

// FetchAll fetches every pointer in attachments concurrently. One
// failing fetch cancels the rest and fails the whole call, matching
// the "one fetch failing fails the enclosing message handler"
// requirement.
func (f *Fetcher) FetchAll(ctx context.Context, attachments []*wire.AttachmentPointer) error {
	if len(attachments) == 0 {
		return nil
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, a := range attachments {
		a := a
		group.Go(func() error {
			return f.Fetch(ctx, a)
		})
	}
	return group.Wait()
}
