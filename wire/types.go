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

// Package wire holds the message types carried on the transport, and a
// codec for turning them to and from bytes.
package wire

// EnvelopeType classifies how an Envelope's payload was encrypted.
type EnvelopeType int32

const (
	EnvelopeUnknown EnvelopeType = iota
	EnvelopeCiphertext
	EnvelopePreKeyBundle
	EnvelopeReceipt
	EnvelopeUnidentifiedSender
)

func (t EnvelopeType) String() string {
	switch t {
	case EnvelopeCiphertext:
		return "CIPHERTEXT"
	case EnvelopePreKeyBundle:
		return "PREKEY_BUNDLE"
	case EnvelopeReceipt:
		return "RECEIPT"
	case EnvelopeUnidentifiedSender:
		return "UNIDENTIFIED_SENDER"
	default:
		return "UNKNOWN"
	}
}

// Envelope is one incoming item, decoded from a transport frame (or
// handed directly from the drain path already in cleartext-container
// form).
type Envelope struct {
	Type          EnvelopeType
	Source        string
	SourceDevice  uint32
	Timestamp     uint64
	Content       []byte
	LegacyMessage []byte

	// KeyChange is set exclusively by the dispatcher on an accepted
	// identity-key re-entry. Never populated from the wire.
	KeyChange bool
}

// HasContent reports whether the envelope carries a modern Content
// payload rather than (or in addition to) a legacy DataMessage.
func (e *Envelope) HasContent() bool {
	return len(e.Content) > 0
}

// HasLegacyMessage reports whether the envelope carries a legacy,
// pre-Content DataMessage payload.
func (e *Envelope) HasLegacyMessage() bool {
	return len(e.LegacyMessage) > 0
}

// DataMessageFlags is a bitmask carried on DataMessage.Flags.
type DataMessageFlags uint32

const (
	FlagEndSession DataMessageFlags = 1 << iota
	FlagExpirationTimerUpdate
	FlagProfileKeyUpdate
)

// Has reports whether all bits in want are set in f.
func (f DataMessageFlags) Has(want DataMessageFlags) bool {
	return f&want == want
}

// GroupContextV1 is the legacy group reference tolerated on inbound
// DataMessages. Not acted on; merely logged and passed through.
type GroupContextV1 struct {
	ID   []byte
	Type int32
	Name string
}

// AttachmentPointer references an encrypted attachment blob. Data is
// populated in place by the attachment fetcher once decrypted.
type AttachmentPointer struct {
	ID          uint64
	ContentType string
	Key         []byte
	Size        uint32
	Digest      []byte
	FileName    string

	Data []byte
}

// DataMessage is the decoded cleartext body of a message.
type DataMessage struct {
	Body           string
	Attachments    []*AttachmentPointer
	Group          *GroupContextV1
	Flags          DataMessageFlags
	ExpireTimer    uint32
	expireTimerSet bool
	flagsSet       bool
}

// HasExpireTimer reports whether ExpireTimer was present on the wire
// (as opposed to defaulted to 0 by processDecrypted).
func (m *DataMessage) HasExpireTimer() bool { return m.expireTimerSet }

// HasFlags reports whether Flags was present on the wire.
func (m *DataMessage) HasFlags() bool { return m.flagsSet }

// SyncSent is the `sent` variant of a SyncMessage.
type SyncSent struct {
	Destination             string
	Timestamp               uint64
	Message                 *DataMessage
	ExpirationStartTimestamp uint64
	hasExpirationStart       bool
}

// HasExpirationStart reports whether an expirationStartTimestamp was
// present on the wire sent-sync entry.
func (s *SyncSent) HasExpirationStart() bool { return s.hasExpirationStart }

// SyncRead is one entry of a SyncMessage's `read` list.
type SyncRead struct {
	Timestamp uint64
	Sender    string
}

// SyncMessage is the decoded self-addressed sync payload. Variants are
// mutually exclusive on the wire; the dispatcher enforces first-match
// precedence over whichever fields are populated.
type SyncMessage struct {
	Sent     *SyncSent
	Read     []*SyncRead
	Blocked  bool
	Contacts bool // deprecated, presence alone is enough to fail
	Groups   bool // deprecated
	Request  bool // deprecated
}

// Content is the modern top-level decrypted payload.
type Content struct {
	DataMessage *DataMessage
	SyncMessage *SyncMessage
}
