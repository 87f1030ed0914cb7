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

// Command receiverd runs the message receiver as a standalone daemon:
// connect to a streaming transport, dispatch decoded envelopes onto an
// event bus, and optionally drain queued messages when not connected.
package main

import (
	"fmt"
	"os"

	"go.sigchat.dev/receiver/cmd/receiverd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "receiverd:", err)
		os.Exit(1)
	}
}
