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

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchRunsListenersInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.On(NameMessage, func(ctx context.Context, evt Event) error {
			order = append(order, i)
			return nil
		})
	}
	bus.Dispatch(context.Background(), NewMessageEvent(1, "+1", 1, nil, false))
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestDispatchIsolatesListenerError(t *testing.T) {
	bus := NewBus()
	secondRan := false
	bus.On(NameMessage, func(ctx context.Context, evt Event) error {
		return errors.New("boom")
	})
	bus.On(NameMessage, func(ctx context.Context, evt Event) error {
		secondRan = true
		return nil
	})
	require.NotPanics(t, func() {
		bus.Dispatch(context.Background(), NewMessageEvent(1, "+1", 1, nil, false))
	})
	require.True(t, secondRan)
}

func TestDispatchIsolatesListenerPanic(t *testing.T) {
	bus := NewBus()
	secondRan := false
	bus.On(NameMessage, func(ctx context.Context, evt Event) error {
		panic("listener exploded")
	})
	bus.On(NameMessage, func(ctx context.Context, evt Event) error {
		secondRan = true
		return nil
	})
	require.NotPanics(t, func() {
		bus.Dispatch(context.Background(), NewMessageEvent(1, "+1", 1, nil, false))
	})
	require.True(t, secondRan)
}

func TestDispatchOnlyRunsListenersForMatchingName(t *testing.T) {
	bus := NewBus()
	ran := false
	bus.On(NameSent, func(ctx context.Context, evt Event) error {
		ran = true
		return nil
	})
	bus.Dispatch(context.Background(), NewMessageEvent(1, "+1", 1, nil, false))
	require.False(t, ran)
}

func TestKeyChangeListenerCanSetAccepted(t *testing.T) {
	bus := NewBus()
	bus.On(NameKeyChange, func(ctx context.Context, evt Event) error {
		kc := evt.(*KeyChangeEvent)
		kc.Accepted = true
		return nil
	})
	evt := NewKeyChangeEvent("+15550001111", []byte("key"))
	bus.Dispatch(context.Background(), evt)
	require.True(t, evt.Accepted)
}

func TestUnsubscribeStopsFutureDispatches(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.On(NameMessage, func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})
	bus.Dispatch(context.Background(), NewMessageEvent(1, "+1", 1, nil, false))
	unsubscribe()
	bus.Dispatch(context.Background(), NewMessageEvent(1, "+1", 1, nil, false))
	require.Equal(t, 1, calls)
}
