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

package commands

import (
	"github.com/spf13/cobra"
)

// drain: poll and dispatch queued messages once, without holding a
// streaming connection open.
func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Fetch and dispatch queued messages, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.receiver.Drain(cmd.Context()); err != nil {
				return err
			}
			app.log.Info().Msg("Drain complete")
			return nil
		},
	}
}
