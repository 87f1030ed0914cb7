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

// Package receiver implements the top-level Receiver lifecycle:
// connect, drain, close, and the reconnect loop that binds everything
// else together.
package receiver

import (
	"math"
	"math/rand"
)

// Backoff computes randomized, logarithmically-growing retry delays:
// next(n) = ln(1+n) * 30 * rand[0,1). Growth is deliberately very
// slow and multiplicative jitter avoids thundering herds; callers that
// need a ceiling should cap the result themselves.
type Backoff struct {
	rand *rand.Rand
}

// NewBackoff returns a Backoff using the package-level math/rand
// source. Use NewBackoffWithSource for deterministic tests.
func NewBackoff() *Backoff {
	return &Backoff{}
}

// NewBackoffWithSource returns a Backoff driven by src, for
// deterministic tests.
func NewBackoffWithSource(src *rand.Rand) *Backoff {
	return &Backoff{rand: src}
}

// Next returns the delay in seconds for the given (1-indexed) attempt
// number.
func (b *Backoff) Next(attempt int) float64 {
	jitter := rand.Float64()
	if b.rand != nil {
		jitter = b.rand.Float64()
	}
	return math.Log(1+float64(attempt)) * 30 * jitter
}
