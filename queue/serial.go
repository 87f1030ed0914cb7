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

// Package queue implements an owner-scoped FIFO of deferred tasks with
// at-most-one-in-flight, used to serialize envelope handling per
// transport connection.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Handle.Wait when the task was submitted
// after (or during) a Close.
var ErrQueueClosed = errors.New("queue: closed")

// Task is a unit of deferred work submitted to a Serial queue.
type Task func(ctx context.Context) (any, error)

type job struct {
	ctx    context.Context
	task   Task
	result chan result
}

type result struct {
	value any
	err   error
}

// Serial is a single-owner FIFO task runner. At most one Task is ever
// running at a time; tasks run strictly in submission order. The zero
// value is not usable; construct with NewSerial.
type Serial struct {
	jobs      chan job
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSerial starts the queue's run loop and returns a ready-to-use
// Serial. Call Close to stop the loop; further Enqueue calls after
// Close resolve their Handle with ErrQueueClosed instead of running.
func NewSerial() *Serial {
	s := &Serial{
		jobs: make(chan job),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Serial) run() {
	defer close(s.done)
	for {
		select {
		case j := <-s.jobs:
			value, err := j.task(j.ctx)
			j.result <- result{value: value, err: err}
		case <-s.stop:
			return
		}
	}
}

// Handle is returned by Enqueue; Wait blocks until the task completes
// or ctx is cancelled.
type Handle struct {
	result chan result
}

// Wait blocks for the task's result, or returns ctx.Err() if ctx is
// cancelled first (the task itself still runs to completion in that
// case; Wait merely stops waiting for it).
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case r := <-h.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue appends task to the FIFO and returns a Handle resolving with
// its result once every task submitted before it (and then task
// itself) has run.
func (s *Serial) Enqueue(ctx context.Context, task Task) *Handle {
	h := &Handle{result: make(chan result, 1)}
	select {
	case s.jobs <- job{ctx: ctx, task: task, result: h.result}:
	case <-ctx.Done():
		h.result <- result{err: ctx.Err()}
	case <-s.stop:
		h.result <- result{err: ErrQueueClosed}
	}
	return h
}

// Close stops the run loop and waits for it to exit. Any task already
// running finishes; a task blocked trying to enqueue concurrently with
// Close resolves with ErrQueueClosed instead of running. Close is safe
// to call more than once or concurrently with itself or Enqueue.
func (s *Serial) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
}
