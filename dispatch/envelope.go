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
	"errors"

	"github.com/rs/zerolog"

	"go.sigchat.dev/receiver/events"
	"go.sigchat.dev/receiver/protocol"
	"go.sigchat.dev/receiver/wire"
)

// EnvelopeDispatcher is the entry point for a single decoded Envelope:
// it classifies by type, decrypts, and routes to the ContentDispatcher,
// applying the error taxonomy and bounded identity-key re-entry.
type EnvelopeDispatcher struct {
	Codec     wire.Codec
	Decryptor *protocol.SessionDecryptor
	Content   *ContentDispatcher
	Bus       *events.Bus
}

// NewEnvelopeDispatcher constructs an EnvelopeDispatcher bound to its
// collaborators.
func NewEnvelopeDispatcher(codec wire.Codec, decryptor *protocol.SessionDecryptor, content *ContentDispatcher, bus *events.Bus) *EnvelopeDispatcher {
	return &EnvelopeDispatcher{Codec: codec, Decryptor: decryptor, Content: content, Bus: bus}
}

// HandleEnvelope classifies envelope and routes it. reentrant must be
// false on the initial call; it is set to true internally for the
// single permitted re-dispatch after an accepted identity-key change,
// and depth is capped there - a second identity-key error on the
// re-entered call is treated as an ordinary unexpected error.
func (d *EnvelopeDispatcher) HandleEnvelope(ctx context.Context, envelope *wire.Envelope, reentrant bool) error {
	switch {
	case envelope.Type == wire.EnvelopeReceipt:
		d.Bus.Dispatch(ctx, events.NewReceiptEvent(envelope))
		return nil
	case envelope.HasContent():
		return d.handleContentMessage(ctx, envelope, reentrant)
	case envelope.HasLegacyMessage():
		return d.handleLegacyMessage(ctx, envelope, reentrant)
	default:
		d.emitError(ctx, ErrEmptyEnvelope, envelope)
		return ErrEmptyEnvelope
	}
}

func (d *EnvelopeDispatcher) handleContentMessage(ctx context.Context, envelope *wire.Envelope, reentrant bool) error {
	plaintext, err := d.decryptAndClassify(ctx, envelope, envelope.Content, reentrant, func(retried []byte) {
		envelope.Content = retried
	})
	if err != nil || plaintext == nil {
		return err
	}
	content, err := d.Codec.DecodeContent(plaintext)
	if err != nil {
		d.emitError(ctx, err, envelope)
		return err
	}
	if err := d.Content.Dispatch(ctx, content, envelope); err != nil {
		d.emitError(ctx, err, envelope)
		return err
	}
	return nil
}

func (d *EnvelopeDispatcher) handleLegacyMessage(ctx context.Context, envelope *wire.Envelope, reentrant bool) error {
	plaintext, err := d.decryptAndClassify(ctx, envelope, envelope.LegacyMessage, reentrant, func(retried []byte) {
		envelope.LegacyMessage = retried
	})
	if err != nil || plaintext == nil {
		return err
	}
	msg, err := d.Codec.DecodeDataMessage(plaintext)
	if err != nil {
		d.emitError(ctx, err, envelope)
		return err
	}
	if err := d.Content.DispatchLegacy(ctx, msg, envelope); err != nil {
		d.emitError(ctx, err, envelope)
		return err
	}
	return nil
}

// decryptAndClassify decrypts ciphertext for envelope and applies the
// dispatcher's error taxonomy. It returns (plaintext, nil) on success;
// (nil, nil) when the error was recovered locally (counter error,
// rejected key change, generic protocol error); (nil, result of the
// re-entered HandleEnvelope) after an accepted key change; and
// (nil, err) when the error is unexpected and must propagate.
//
// setCiphertext lets the caller plug the retried ciphertext back into
// the field it came from (Content or LegacyMessage) before the
// re-entrant call re-decrypts it.
func (d *EnvelopeDispatcher) decryptAndClassify(ctx context.Context, envelope *wire.Envelope, ciphertext []byte, reentrant bool, setCiphertext func([]byte)) ([]byte, error) {
	plaintext, err := d.Decryptor.Decrypt(ctx, envelope, ciphertext)
	if err == nil {
		return plaintext, nil
	}

	log := zerolog.Ctx(ctx)

	if errors.Is(err, protocol.ErrMessageCounter) {
		log.Debug().Str("source", envelope.Source).Msg("Duplicate or out-of-order session counter, dropping")
		return nil, nil
	}

	var identityErr *protocol.ErrUnknownIdentityKey
	if !reentrant && errors.As(err, &identityErr) {
		evt := events.NewKeyChangeEvent(identityErr.Addr, identityErr.IdentityKey)
		d.Bus.Dispatch(ctx, evt)
		if !evt.Accepted {
			log.Info().Str("addr", identityErr.Addr).Msg("Identity key change not accepted, dropping envelope")
			return nil, nil
		}
		envelope.KeyChange = true
		setCiphertext(identityErr.Ciphertext)
		return nil, d.reenterEnvelope(ctx, envelope)
	}

	var protoErr *protocol.ProtocolError
	if errors.As(err, &protoErr) {
		log.Warn().Err(err).Str("source", envelope.Source).Msg("Protocol error decrypting envelope, dropping")
		return nil, nil
	}

	d.emitError(ctx, err, envelope)
	return nil, err
}

// reenterEnvelope re-dispatches envelope with reentrant=true after an
// accepted identity-key change. It is a loop of exactly one extra
// classify-then-act step, never unbounded recursion.
func (d *EnvelopeDispatcher) reenterEnvelope(ctx context.Context, envelope *wire.Envelope) error {
	return d.HandleEnvelope(ctx, envelope, true)
}

func (d *EnvelopeDispatcher) emitError(ctx context.Context, err error, envelope *wire.Envelope) {
	d.Bus.Dispatch(ctx, events.NewErrorEvent(err, envelope))
}
