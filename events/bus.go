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

// Package events implements the listener registry used to fan out
// receiver lifecycle and message events to host code.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Event is anything dispatched through the Bus. Name identifies which
// listeners should run; the concrete event types (MessageEvent,
// ReceiptEvent, KeyChangeEvent, ...) embed Base to satisfy this.
type Event interface {
	EventName() string
}

// Base gives a concrete event type its Name method; embed it and set
// Name in the constructor.
type Base struct {
	Name string
}

func (b Base) EventName() string { return b.Name }

// Listener handles one dispatched event. A returned error is logged
// and does not stop the remaining listeners from running.
type Listener func(ctx context.Context, evt Event) error

// Bus is a name-keyed, ordered listener registry. Registration order
// is dispatch order. Dispatch is sequential on the caller's goroutine
// and isolates listener failures: a panicking or erroring listener is
// logged and the remaining listeners for that event still run.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]Listener
}

// NewBus returns an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]Listener)}
}

// On registers listener for the given event name and returns an
// Unsubscribe func. Listeners added while a Dispatch for the same name
// is in progress do not run for that in-flight dispatch.
func (b *Bus) On(name string, listener Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], listener)
	idx := len(b.listeners[name]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		cur := b.listeners[name]
		if idx >= len(cur) {
			return
		}
		// Replace with a no-op instead of slicing so indices recorded by
		// other Unsubscribe closures for this name stay valid.
		cur[idx] = func(context.Context, Event) error { return nil }
	}
}

// Dispatch runs every listener registered for evt.EventName(), in
// registration order, on the calling goroutine. Each listener is
// isolated: a panic is recovered and logged, an error is logged, and
// in both cases dispatch continues to the next listener.
func (b *Bus) Dispatch(ctx context.Context, evt Event) {
	b.mu.Lock()
	snapshot := append([]Listener(nil), b.listeners[evt.EventName()]...)
	b.mu.Unlock()

	log := zerolog.Ctx(ctx).With().Str("event", evt.EventName()).Logger()
	for i, listener := range snapshot {
		b.runOne(ctx, &log, i, listener, evt)
	}
}

func (b *Bus) runOne(ctx context.Context, log *zerolog.Logger, index int, listener Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("listener", index).Msg("Event listener panicked")
		}
	}()
	if err := listener(ctx, evt); err != nil {
		log.Err(err).Int("listener", index).Msg("Event listener returned error")
	}
}
