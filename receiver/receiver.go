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

package receiver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"go.sigchat.dev/receiver/dispatch"
	"go.sigchat.dev/receiver/events"
	"go.sigchat.dev/receiver/queue"
	"go.sigchat.dev/receiver/signalcrypto"
	"go.sigchat.dev/receiver/signalservice"
	"go.sigchat.dev/receiver/transport"
	"go.sigchat.dev/receiver/wire"
)

// State is a Receiver's lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Identity is a receiver's immutable addressing and signalling-key
// material. New takes it as a plain value and does not consult a
// StateStore.
type Identity struct {
	OwnAddr      string
	OwnDeviceID  uint32
	SignalingKey []byte
}

// StateStore resolves a receiver's identity from persistent state.
// Nothing in this package calls it; a host that uses one loads the
// Identity itself and passes it to New.
type StateStore interface {
	LoadIdentity(ctx context.Context) (Identity, error)
}

// Receiver is the top-level lifecycle: binds a transport, runs the
// reconnect loop, and (when no transport is attached) supports the
// drain path.
type Receiver struct {
	Transport  transport.Transport
	Service    signalservice.Service
	Crypto     *signalcrypto.EnvelopeCrypto
	Codec      wire.Codec
	Dispatcher *dispatch.EnvelopeDispatcher
	Bus        *events.Bus
	Queue      *queue.Serial
	Identity   Identity
	Backoff    *Backoff

	state     atomic.Int32
	attempt   atomic.Int32
	connected atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
}

// New constructs a Receiver with its own queue.Serial and a default
// Backoff. Codec, Crypto, Dispatcher and Bus must already be wired to
// each other by the caller (see cmd/receiverd for the reference
// wiring).
func New(t transport.Transport, service signalservice.Service, crypto *signalcrypto.EnvelopeCrypto, codec wire.Codec, dispatcher *dispatch.EnvelopeDispatcher, bus *events.Bus, identity Identity) *Receiver {
	r := &Receiver{
		Transport:  t,
		Service:    service,
		Crypto:     crypto,
		Codec:      codec,
		Dispatcher: dispatcher,
		Bus:        bus,
		Queue:      queue.NewSerial(),
		Identity:   identity,
		Backoff:    NewBackoff(),
		stop:       make(chan struct{}),
	}
	r.state.Store(int32(StateCreated))
	return r
}

// State returns the receiver's current lifecycle state.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

// Connect dials the transport and starts the reconnect loop that keeps
// it alive until Close is called.
func (r *Receiver) Connect(ctx context.Context) error {
	closeCh, err := r.Transport.Connect(ctx, r.handleRequest)
	if err != nil {
		return fmt.Errorf("receiver: connect: %w", err)
	}
	r.state.Store(int32(StateConnected))
	r.connected.Store(true)
	go r.watchClose(ctx, closeCh)
	return nil
}

func (r *Receiver) watchClose(ctx context.Context, closeCh <-chan transport.CloseInfo) {
	select {
	case info, ok := <-closeCh:
		if !ok {
			return
		}
		r.connected.Store(false)
		r.onClose(ctx, info)
	case <-r.stop:
		return
	}
}

func (r *Receiver) onClose(ctx context.Context, info transport.CloseInfo) {
	log := zerolog.Ctx(ctx)
	if info.Code == transport.CloseSentinel {
		log.Info().Msg("Transport closed with terminal sentinel code, not reconnecting")
		return
	}
	if r.State() == StateClosed {
		return
	}
	r.state.Store(int32(StateReconnecting))
	r.reconnectLoop(ctx)
}

// reconnectLoop probes liveness before reconnecting, and backs off
// between failed probes.
func (r *Receiver) reconnectLoop(ctx context.Context) {
	log := zerolog.Ctx(ctx)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		if _, err := r.Service.GetDevices(ctx); err != nil {
			r.Bus.Dispatch(ctx, events.NewErrorEvent(fmt.Errorf("receiver: liveness probe failed: %w", err), nil))
			attempt := int(r.attempt.Add(1))
			delay := time.Duration(r.Backoff.Next(attempt) * float64(time.Second))
			log.Warn().Dur("delay", delay).Int("attempt", attempt).Msg("Reconnect probe failed, backing off")
			select {
			case <-time.After(delay):
			case <-r.stop:
				return
			}
			continue
		}
		r.attempt.Store(0)
		if err := r.Connect(ctx); err != nil {
			log.Err(err).Msg("Reconnect attempt failed")
			continue
		}
		return
	}
}

// handleRequest is the transport.Handler bound to the streaming
// connection. It always responds exactly once: 400 if the verb or
// path is not PUT /api/v1/message, 500 if the frame failed to decrypt,
// unpad or decode, and 200 otherwise regardless of how the decoded
// envelope's handling went.
func (r *Receiver) handleRequest(ctx context.Context, req *transport.IncomingRequest) {
	log := zerolog.Ctx(ctx)

	if req.Verb != "PUT" || req.Path != "/api/v1/message" {
		err := fmt.Errorf("%w: %s %s", dispatch.ErrBadTransportRequest, req.Verb, req.Path)
		log.Warn().Err(err).Msg("Rejecting unsupported transport request")
		if respErr := req.Respond(ctx, 400, "Bad request"); respErr != nil {
			log.Err(respErr).Msg("Failed to respond to bad transport request")
		}
		return
	}

	plaintext, err := r.Crypto.DecryptFrame(req.Body)
	if err == nil {
		plaintext, err = signalcrypto.Unpad(plaintext)
	}
	var envelope *wire.Envelope
	if err == nil {
		envelope, err = r.Codec.DecodeEnvelope(plaintext)
	}
	if err != nil {
		log.Error().Err(err).Msg("Bad encrypted websocket message")
		r.Bus.Dispatch(ctx, events.NewErrorEvent(err, nil))
		if respErr := req.Respond(ctx, 500, "Bad encrypted websocket message"); respErr != nil {
			log.Err(respErr).Msg("Failed to respond to frame decode failure")
		}
		return
	}

	handle := r.Queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return nil, r.Dispatcher.HandleEnvelope(ctx, envelope, false)
	})
	if _, err := handle.Wait(ctx); err != nil {
		log.Debug().Err(err).Msg("Envelope handler returned an error; still ACKing")
	}
	if respErr := req.Respond(ctx, 200, "OK"); respErr != nil {
		log.Err(respErr).Msg("Failed to ACK decoded envelope")
	}
}

// Close idempotently detaches the transport and stops any reconnect
// loop. In-flight handlers finish; no new work is drawn from the
// queue afterward.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.state.Store(int32(StateClosed))
		close(r.stop)
		if r.Transport != nil {
			err = r.Transport.Close()
		}
		r.Queue.Close()
	})
	return err
}

// Drain polls the service for queued messages, dispatching and then
// deleting each one. It fails with ErrDrainWhileConnected if a
// transport is currently attached - the drain path and the streaming
// transport are mutually exclusive ingress mechanisms.
func (r *Receiver) Drain(ctx context.Context) error {
	if r.connected.Load() {
		return dispatch.ErrDrainWhileConnected
	}
	for {
		resp, err := r.Service.GetMessages(ctx)
		if err != nil {
			return fmt.Errorf("receiver: drain: %w", err)
		}
		for _, raw := range resp.Messages {
			envelope, err := decodeDrainEnvelope(raw)
			if err != nil {
				r.Bus.Dispatch(ctx, events.NewErrorEvent(err, nil))
				continue
			}
			if err := r.Dispatcher.HandleEnvelope(ctx, envelope, false); err != nil {
				log := zerolog.Ctx(ctx)
				log.Debug().Err(err).Msg("Drain envelope handler returned an error")
			}
		}
		if err := deleteDrainedBatch(ctx, r.Service, resp.Messages); err != nil {
			return fmt.Errorf("receiver: drain: delete batch: %w", err)
		}
		if !resp.More {
			return nil
		}
	}
}

func decodeDrainEnvelope(raw signalservice.DrainEnvelope) (*wire.Envelope, error) {
	env := &wire.Envelope{
		Type:         wire.EnvelopeType(raw.Type),
		Source:       raw.Source,
		SourceDevice: raw.SourceDevice,
		Timestamp:    raw.Timestamp,
	}
	encoded := raw.Content
	if encoded == "" {
		encoded = raw.Message
	}
	if encoded == "" {
		return nil, errors.New("receiver: drain envelope has neither content nor message")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("receiver: drain envelope: %w", err)
	}
	env.LegacyMessage = decoded
	return env, nil
}

func deleteDrainedBatch(ctx context.Context, service signalservice.Service, batch []signalservice.DrainEnvelope) error {
	if len(batch) == 0 {
		return nil
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, raw := range batch {
		raw := raw
		group.Go(func() error {
			return service.DeleteMessage(ctx, raw.Source, raw.Timestamp)
		})
	}
	return group.Wait()
}
