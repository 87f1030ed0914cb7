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

package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"go.sigchat.dev/receiver/attachment"
	"go.sigchat.dev/receiver/events"
	"go.sigchat.dev/receiver/protocol"
	"go.sigchat.dev/receiver/wire"
)

// ContentDispatcher routes a decoded Content to the right DataMessage
// or SyncMessage handler, and implements processDecrypted's
// default-filling and attachment-fetch side effects.
type ContentDispatcher struct {
	Decryptor   *protocol.SessionDecryptor
	Attachments *attachment.Fetcher
	Bus         *events.Bus
	OwnAddr     string
	OwnDeviceID uint32
}

// NewContentDispatcher constructs a ContentDispatcher bound to its
// collaborators.
func NewContentDispatcher(decryptor *protocol.SessionDecryptor, attachments *attachment.Fetcher, bus *events.Bus, ownAddr string, ownDeviceID uint32) *ContentDispatcher {
	return &ContentDispatcher{
		Decryptor:   decryptor,
		Attachments: attachments,
		Bus:         bus,
		OwnAddr:     ownAddr,
		OwnDeviceID: ownDeviceID,
	}
}

// Dispatch routes content, first-match-wins: syncMessage then
// dataMessage, else ErrEmptyContent.
func (d *ContentDispatcher) Dispatch(ctx context.Context, content *wire.Content, envelope *wire.Envelope) error {
	switch {
	case content.SyncMessage != nil:
		return d.handleSyncMessage(ctx, content.SyncMessage, envelope)
	case content.DataMessage != nil:
		return d.handleDataMessage(ctx, content.DataMessage, envelope)
	default:
		return ErrEmptyContent
	}
}

// DispatchLegacy routes a legacy, pre-Content DataMessage straight to
// handleDataMessage.
func (d *ContentDispatcher) DispatchLegacy(ctx context.Context, msg *wire.DataMessage, envelope *wire.Envelope) error {
	return d.handleDataMessage(ctx, msg, envelope)
}

func (d *ContentDispatcher) handleDataMessage(ctx context.Context, msg *wire.DataMessage, envelope *wire.Envelope) error {
	if msg.Flags.Has(wire.FlagEndSession) {
		if err := d.Decryptor.CloseAllSessions(ctx, envelope.Source); err != nil {
			zerolog.Ctx(ctx).Err(err).Str("source", envelope.Source).Msg("Failed to close sessions on end-session data message")
		}
	}
	msg, err := d.processDecrypted(ctx, msg, envelope.Source)
	if err != nil {
		return err
	}
	d.Bus.Dispatch(ctx, events.NewMessageEvent(envelope.Timestamp, envelope.Source, envelope.SourceDevice, msg, envelope.KeyChange))
	return nil
}

func (d *ContentDispatcher) handleSyncMessage(ctx context.Context, sync *wire.SyncMessage, envelope *wire.Envelope) error {
	if envelope.Source != d.OwnAddr {
		return ErrForeignSync
	}
	if envelope.SourceDevice == d.OwnDeviceID {
		return ErrSelfSync
	}

	switch {
	case sync.Sent != nil:
		return d.handleSentMessage(ctx, sync.Sent, envelope)
	case len(sync.Read) > 0:
		for _, entry := range sync.Read {
			d.Bus.Dispatch(ctx, events.NewReadEvent(envelope.Timestamp, events.ReadEntry{
				Timestamp:    entry.Timestamp,
				Sender:       entry.Sender,
				Source:       envelope.Source,
				SourceDevice: envelope.SourceDevice,
			}))
		}
		return nil
	case sync.Blocked:
		return d.handleBlocked(ctx)
	case sync.Contacts, sync.Groups, sync.Request:
		return ErrDeprecatedSync
	default:
		return ErrEmptySync
	}
}

func (d *ContentDispatcher) handleBlocked(ctx context.Context) error {
	return ErrUnsupported
}

func (d *ContentDispatcher) handleSentMessage(ctx context.Context, sent *wire.SyncSent, envelope *wire.Envelope) error {
	if sent.Message != nil && sent.Message.Flags.Has(wire.FlagEndSession) {
		if err := d.Decryptor.CloseAllSessions(ctx, sent.Destination); err != nil {
			zerolog.Ctx(ctx).Err(err).Str("destination", sent.Destination).Msg("Failed to close sessions on end-session sent-sync")
		}
	}
	msg, err := d.processDecrypted(ctx, sent.Message, d.OwnAddr)
	if err != nil {
		return err
	}
	evt := events.NewSentEvent(envelope.Source, envelope.SourceDevice, sent.Timestamp, sent.Destination, msg)
	if sent.HasExpirationStart() {
		evt.ExpirationStartTimestamp = sent.ExpirationStartTimestamp
		evt.HasExpirationStart = true
	}
	d.Bus.Dispatch(ctx, evt)
	return nil
}

// processDecrypted normalizes flags/expireTimer to 0 when absent,
// short-circuits on END_SESSION, and (otherwise) fetches and decrypts
// every attachment concurrently. Legacy `group` fields are tolerated:
// logged, never rejected.
func (d *ContentDispatcher) processDecrypted(ctx context.Context, msg *wire.DataMessage, source string) (*wire.DataMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("dispatch: processDecrypted: nil data message from %s", source)
	}
	if msg.Flags.Has(wire.FlagEndSession) {
		return msg, nil
	}
	if msg.Group != nil {
		// TODO: tighten this once legacy group senders have fully migrated
		// to the current group format; for now we tolerate and log.
		zerolog.Ctx(ctx).Warn().Str("source", source).Str("group_name", msg.Group.Name).Msg("Legacy group field present on data message")
	}
	if len(msg.Attachments) > 0 {
		if err := d.Attachments.FetchAll(ctx, msg.Attachments); err != nil {
			return nil, fmt.Errorf("dispatch: processDecrypted: %w", err)
		}
	}
	return msg, nil
}
