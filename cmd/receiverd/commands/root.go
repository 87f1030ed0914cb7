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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go.sigchat.dev/receiver/attachment"
	"go.sigchat.dev/receiver/dispatch"
	"go.sigchat.dev/receiver/events"
	"go.sigchat.dev/receiver/protocol"
	"go.sigchat.dev/receiver/receiver"
	"go.sigchat.dev/receiver/signalcrypto"
	"go.sigchat.dev/receiver/signalservice"
	"go.sigchat.dev/receiver/transport"
	"go.sigchat.dev/receiver/wire"
)

var configPath string

// wired holds the dependency graph assembled from config, built once in
// PersistentPreRunE and shared by every subcommand.
type wired struct {
	cfg      *Config
	bus      *events.Bus
	receiver *receiver.Receiver
	log      zerolog.Logger
}

var app *wired

// Execute builds the root cobra command and runs it.
func Execute() error {
	root := &cobra.Command{
		Use:   "receiverd",
		Short: "Run the Signal-protocol-compatible message receiver",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel).With().Str("run_id", uuid.NewString()).Logger()
			r, bus, err := buildReceiver(cfg, log)
			if err != nil {
				return fmt.Errorf("wiring receiver: %w", err)
			}
			app = &wired{cfg: cfg, bus: bus, receiver: r, log: log}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to receiverd.yaml")

	root.AddCommand(listenCmd(), drainCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	root.SetContext(ctx)

	return root.Execute()
}

func newLogger(level string) zerolog.Logger {
	zlevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(zlevel).With().Timestamp().Logger()
}

func buildReceiver(cfg *Config, log zerolog.Logger) (*receiver.Receiver, *events.Bus, error) {
	signalingKey, err := cfg.signalingKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	crypto, err := signalcrypto.NewEnvelopeCrypto(signalingKey)
	if err != nil {
		return nil, nil, err
	}

	service := signalservice.NewHTTPService(cfg.ServiceURL, cfg.Username, cfg.Password)
	streamURL, err := service.GetMessageStreamURL(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("resolving stream url: %w", err)
	}
	ws := transport.NewWebsocketTransport(streamURL, nil)

	bus := events.NewBus()
	bus.On(events.NameError, func(ctx context.Context, evt events.Event) error {
		if e, ok := evt.(*events.ErrorEvent); ok {
			log.Error().Err(e.Err).Msg("receiver error event")
		}
		return nil
	})
	bus.On(events.NameMessage, func(ctx context.Context, evt events.Event) error {
		if m, ok := evt.(*events.MessageEvent); ok {
			log.Info().Str("source", m.Source).Msg(m.Message.Body)
		}
		return nil
	})

	decryptor := protocol.NewSessionDecryptor(devStore{})
	fetcher := attachment.NewFetcher(service)
	content := dispatch.NewContentDispatcher(decryptor, fetcher, bus, cfg.OwnAddr, cfg.OwnDeviceID)
	codec := wire.ProtowireCodec{}
	envelopeDispatcher := dispatch.NewEnvelopeDispatcher(codec, decryptor, content, bus)

	identity := receiver.Identity{OwnAddr: cfg.OwnAddr, OwnDeviceID: cfg.OwnDeviceID, SignalingKey: signalingKey}
	r := receiver.New(ws, service, crypto, codec, envelopeDispatcher, bus, identity)
	return r, bus, nil
}
