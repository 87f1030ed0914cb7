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

package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerialRunsInSubmissionOrder(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	var order []int
	done := make(chan struct{})
	ctx := context.Background()
	handles := make([]*Handle, 5)
	for i := 0; i < 5; i++ {
		i := i
		handles[i] = s.Enqueue(ctx, func(ctx context.Context) (any, error) {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
			return i, nil
		})
	}
	<-done
	for i, h := range handles {
		v, err := h.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSerialAtMostOneInFlight(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	var inFlight int32
	var maxSeen int32
	ctx := context.Background()

	handles := make([]*Handle, 20)
	for i := 0; i < 20; i++ {
		handles[i] = s.Enqueue(ctx, func(ctx context.Context) (any, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil, nil
		})
	}
	for _, h := range handles {
		_, err := h.Wait(ctx)
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&maxSeen))
}

func TestSerialWaitRespectsContextCancellation(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	// Enqueue blocks while the run loop is busy, so the handle waited on
	// here is the one whose task is still running.
	block := make(chan struct{})
	h := s.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestSerialEnqueueAfterCloseResolvesWithError(t *testing.T) {
	s := NewSerial()
	s.Close()

	h := s.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		return "should not run", nil
	})
	_, err := h.Wait(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestSerialCloseIsIdempotent(t *testing.T) {
	s := NewSerial()
	s.Close()
	require.NotPanics(t, func() { s.Close() })
}
