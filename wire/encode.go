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

package wire

import "google.golang.org/protobuf/encoding/protowire"

// EncodeEnvelope serializes env using this module's wire schema. It is
// the inverse of DecodeEnvelope, primarily exercised by tests and by
// hosts that need to re-frame an Envelope for another transport.
func EncodeEnvelope(env *Envelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, fEnvelopeType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.Type))
	if env.Source != "" {
		b = protowire.AppendTag(b, fEnvelopeSource, protowire.BytesType)
		b = protowire.AppendString(b, env.Source)
	}
	b = protowire.AppendTag(b, fEnvelopeSourceDevice, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.SourceDevice))
	b = protowire.AppendTag(b, fEnvelopeTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, env.Timestamp)
	if len(env.Content) > 0 {
		b = protowire.AppendTag(b, fEnvelopeContent, protowire.BytesType)
		b = protowire.AppendBytes(b, env.Content)
	}
	if len(env.LegacyMessage) > 0 {
		b = protowire.AppendTag(b, fEnvelopeLegacyMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, env.LegacyMessage)
	}
	return b
}

// EncodeContent serializes c.
func EncodeContent(c *Content) []byte {
	var b []byte
	if c.DataMessage != nil {
		b = protowire.AppendTag(b, fContentDataMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeDataMessage(c.DataMessage))
	}
	if c.SyncMessage != nil {
		b = protowire.AppendTag(b, fContentSyncMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSyncMessage(c.SyncMessage))
	}
	return b
}

// EncodeDataMessage serializes m.
func EncodeDataMessage(m *DataMessage) []byte {
	var b []byte
	if m.Body != "" {
		b = protowire.AppendTag(b, fDataMessageBody, protowire.BytesType)
		b = protowire.AppendString(b, m.Body)
	}
	for _, a := range m.Attachments {
		b = protowire.AppendTag(b, fDataMessageAttachments, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAttachmentPointer(a))
	}
	if m.Group != nil {
		b = protowire.AppendTag(b, fDataMessageGroup, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeGroupContextV1(m.Group))
	}
	if m.flagsSet || m.Flags != 0 {
		b = protowire.AppendTag(b, fDataMessageFlags, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Flags))
	}
	if m.expireTimerSet || m.ExpireTimer != 0 {
		b = protowire.AppendTag(b, fDataMessageExpireTimer, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ExpireTimer))
	}
	return b
}

func encodeAttachmentPointer(a *AttachmentPointer) []byte {
	var b []byte
	b = protowire.AppendTag(b, fAttachmentID, protowire.VarintType)
	b = protowire.AppendVarint(b, a.ID)
	if a.ContentType != "" {
		b = protowire.AppendTag(b, fAttachmentContentType, protowire.BytesType)
		b = protowire.AppendString(b, a.ContentType)
	}
	if len(a.Key) > 0 {
		b = protowire.AppendTag(b, fAttachmentKey, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Key)
	}
	b = protowire.AppendTag(b, fAttachmentSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Size))
	if len(a.Digest) > 0 {
		b = protowire.AppendTag(b, fAttachmentDigest, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Digest)
	}
	if a.FileName != "" {
		b = protowire.AppendTag(b, fAttachmentFileName, protowire.BytesType)
		b = protowire.AppendString(b, a.FileName)
	}
	return b
}

func encodeGroupContextV1(g *GroupContextV1) []byte {
	var b []byte
	if len(g.ID) > 0 {
		b = protowire.AppendTag(b, fGroupID, protowire.BytesType)
		b = protowire.AppendBytes(b, g.ID)
	}
	b = protowire.AppendTag(b, fGroupType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(g.Type))
	if g.Name != "" {
		b = protowire.AppendTag(b, fGroupName, protowire.BytesType)
		b = protowire.AppendString(b, g.Name)
	}
	return b
}

func encodeSyncMessage(sm *SyncMessage) []byte {
	var b []byte
	if sm.Sent != nil {
		b = protowire.AppendTag(b, fSyncSent, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSyncSent(sm.Sent))
	}
	for _, r := range sm.Read {
		b = protowire.AppendTag(b, fSyncRead, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSyncRead(r))
	}
	if sm.Blocked {
		b = protowire.AppendTag(b, fSyncBlocked, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if sm.Contacts {
		b = protowire.AppendTag(b, fSyncContacts, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	}
	if sm.Groups {
		b = protowire.AppendTag(b, fSyncGroups, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	}
	if sm.Request {
		b = protowire.AppendTag(b, fSyncRequest, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	}
	return b
}

func encodeSyncSent(s *SyncSent) []byte {
	var b []byte
	if s.Destination != "" {
		b = protowire.AppendTag(b, fSentDestination, protowire.BytesType)
		b = protowire.AppendString(b, s.Destination)
	}
	b = protowire.AppendTag(b, fSentTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, s.Timestamp)
	if s.Message != nil {
		b = protowire.AppendTag(b, fSentMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeDataMessage(s.Message))
	}
	if s.hasExpirationStart || s.ExpirationStartTimestamp != 0 {
		b = protowire.AppendTag(b, fSentExpirationStart, protowire.VarintType)
		b = protowire.AppendVarint(b, s.ExpirationStartTimestamp)
	}
	return b
}

func encodeSyncRead(r *SyncRead) []byte {
	var b []byte
	b = protowire.AppendTag(b, fReadTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Timestamp)
	if r.Sender != "" {
		b = protowire.AppendTag(b, fReadSender, protowire.BytesType)
		b = protowire.AppendString(b, r.Sender)
	}
	return b
}
