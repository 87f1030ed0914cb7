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

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the wire schema. This service defines its own
// minimal schema rather than depending on generated Signal protobuf
// code; the numbers below are this module's own convention.
const (
	fEnvelopeType          = 1
	fEnvelopeSource        = 2
	fEnvelopeSourceDevice  = 3
	fEnvelopeTimestamp     = 4
	fEnvelopeContent       = 5
	fEnvelopeLegacyMessage = 6

	fContentDataMessage = 1
	fContentSyncMessage = 2

	fDataMessageBody        = 1
	fDataMessageAttachments = 2
	fDataMessageGroup       = 3
	fDataMessageFlags       = 4
	fDataMessageExpireTimer = 5

	fAttachmentID          = 1
	fAttachmentContentType = 2
	fAttachmentKey         = 3
	fAttachmentSize        = 4
	fAttachmentDigest      = 5
	fAttachmentFileName    = 6

	fGroupID   = 1
	fGroupType = 2
	fGroupName = 3

	fSyncSent     = 1
	fSyncRead     = 2
	fSyncBlocked  = 3
	fSyncContacts = 4
	fSyncGroups   = 5
	fSyncRequest  = 6

	fSentDestination     = 1
	fSentTimestamp       = 2
	fSentMessage         = 3
	fSentExpirationStart = 4

	fReadTimestamp = 1
	fReadSender    = 2
)

// Codec decodes the wire message types. It is the seam a host embeds
// to swap in a different schema without touching the dispatcher.
type Codec interface {
	DecodeEnvelope(b []byte) (*Envelope, error)
	DecodeContent(b []byte) (*Content, error)
	DecodeDataMessage(b []byte) (*DataMessage, error)
}

// ProtowireCodec implements Codec on top of
// google.golang.org/protobuf/encoding/protowire, decoding this
// module's own wire schema without requiring protoc-generated types.
// The matching encoders are the package-level Encode* functions in
// encode.go.
type ProtowireCodec struct{}

var _ Codec = ProtowireCodec{}

func (ProtowireCodec) DecodeEnvelope(b []byte) (*Envelope, error) {
	env := &Envelope{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: envelope: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fEnvelopeType:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: envelope.type: %w", err)
			}
			env.Type = EnvelopeType(v)
			b = b[n:]
		case fEnvelopeSource:
			s, n, err := consumeString(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: envelope.source: %w", err)
			}
			env.Source = s
			b = b[n:]
		case fEnvelopeSourceDevice:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: envelope.sourceDevice: %w", err)
			}
			env.SourceDevice = uint32(v)
			b = b[n:]
		case fEnvelopeTimestamp:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: envelope.timestamp: %w", err)
			}
			env.Timestamp = v
			b = b[n:]
		case fEnvelopeContent:
			v, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: envelope.content: %w", err)
			}
			env.Content = v
			b = b[n:]
		case fEnvelopeLegacyMessage:
			v, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: envelope.legacyMessage: %w", err)
			}
			env.LegacyMessage = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: envelope: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return env, nil
}

func (c ProtowireCodec) DecodeContent(b []byte) (*Content, error) {
	content := &Content{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: content: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fContentDataMessage:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: content.dataMessage: %w", err)
			}
			dm, err := c.DecodeDataMessage(raw)
			if err != nil {
				return nil, err
			}
			content.DataMessage = dm
			b = b[n:]
		case fContentSyncMessage:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: content.syncMessage: %w", err)
			}
			sm, err := decodeSyncMessage(raw)
			if err != nil {
				return nil, err
			}
			content.SyncMessage = sm
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: content: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return content, nil
}

func (ProtowireCodec) DecodeDataMessage(b []byte) (*DataMessage, error) {
	return decodeDataMessage(b)
}

func decodeDataMessage(b []byte) (*DataMessage, error) {
	msg := &DataMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: dataMessage: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fDataMessageBody:
			s, n, err := consumeString(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: dataMessage.body: %w", err)
			}
			msg.Body = s
			b = b[n:]
		case fDataMessageAttachments:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: dataMessage.attachments: %w", err)
			}
			a, err := decodeAttachmentPointer(raw)
			if err != nil {
				return nil, err
			}
			msg.Attachments = append(msg.Attachments, a)
			b = b[n:]
		case fDataMessageGroup:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: dataMessage.group: %w", err)
			}
			g, err := decodeGroupContextV1(raw)
			if err != nil {
				return nil, err
			}
			msg.Group = g
			b = b[n:]
		case fDataMessageFlags:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: dataMessage.flags: %w", err)
			}
			msg.Flags = DataMessageFlags(v)
			msg.flagsSet = true
			b = b[n:]
		case fDataMessageExpireTimer:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, fmt.Errorf("wire: dataMessage.expireTimer: %w", err)
			}
			msg.ExpireTimer = uint32(v)
			msg.expireTimerSet = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: dataMessage: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return msg, nil
}

func decodeAttachmentPointer(b []byte) (*AttachmentPointer, error) {
	a := &AttachmentPointer{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: attachment: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fAttachmentID:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			a.ID = v
			b = b[n:]
		case fAttachmentContentType:
			s, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.ContentType = s
			b = b[n:]
		case fAttachmentKey:
			v, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			a.Key = v
			b = b[n:]
		case fAttachmentSize:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			a.Size = uint32(v)
			b = b[n:]
		case fAttachmentDigest:
			v, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			a.Digest = v
			b = b[n:]
		case fAttachmentFileName:
			s, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.FileName = s
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: attachment: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return a, nil
}

func decodeGroupContextV1(b []byte) (*GroupContextV1, error) {
	g := &GroupContextV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: group: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fGroupID:
			v, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			g.ID = v
			b = b[n:]
		case fGroupType:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			g.Type = int32(v)
			b = b[n:]
		case fGroupName:
			s, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			g.Name = s
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: group: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return g, nil
}

func decodeSyncMessage(b []byte) (*SyncMessage, error) {
	sm := &SyncMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: syncMessage: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fSyncSent:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			sent, err := decodeSyncSent(raw)
			if err != nil {
				return nil, err
			}
			sm.Sent = sent
			b = b[n:]
		case fSyncRead:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			read, err := decodeSyncRead(raw)
			if err != nil {
				return nil, err
			}
			sm.Read = append(sm.Read, read)
			b = b[n:]
		case fSyncBlocked:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			sm.Blocked = v != 0
			b = b[n:]
		case fSyncContacts:
			_, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			sm.Contacts = true
			b = b[n:]
		case fSyncGroups:
			_, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			sm.Groups = true
			b = b[n:]
		case fSyncRequest:
			_, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			sm.Request = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: syncMessage: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return sm, nil
}

func decodeSyncSent(b []byte) (*SyncSent, error) {
	s := &SyncSent{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: sent: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fSentDestination:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.Destination = v
			b = b[n:]
		case fSentTimestamp:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.Timestamp = v
			b = b[n:]
		case fSentMessage:
			raw, n, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			dm, err := decodeDataMessage(raw)
			if err != nil {
				return nil, err
			}
			s.Message = dm
			b = b[n:]
		case fSentExpirationStart:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.ExpirationStartTimestamp = v
			s.hasExpirationStart = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: sent: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return s, nil
}

func decodeSyncRead(b []byte) (*SyncRead, error) {
	r := &SyncRead{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: read: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fReadTimestamp:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			r.Timestamp = v
			b = b[n:]
		case fReadSender:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			r.Sender = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: read: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("expected bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n, nil
}

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	v, n, err := consumeBytes(b, typ)
	if err != nil {
		return "", 0, err
	}
	return string(v), n, nil
}
