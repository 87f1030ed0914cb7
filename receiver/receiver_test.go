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
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	mathrand "math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.sigchat.dev/receiver/attachment"
	"go.sigchat.dev/receiver/dispatch"
	"go.sigchat.dev/receiver/events"
	"go.sigchat.dev/receiver/protocol"
	"go.sigchat.dev/receiver/signalcrypto"
	"go.sigchat.dev/receiver/signalservice"
	"go.sigchat.dev/receiver/transport"
	"go.sigchat.dev/receiver/wire"
)

var errDown = errors.New("receiver test: service unreachable")

// fakeTransport is an in-process transport.Transport double: tests
// drive its handler directly via deliver, and trigger closes via
// closeWith.
type fakeTransport struct {
	mu       sync.Mutex
	handler  transport.Handler
	closeCh  chan transport.CloseInfo
	closed   bool
	connects int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Connect(ctx context.Context, handler transport.Handler) (<-chan transport.CloseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	f.closeCh = make(chan transport.CloseInfo, 1)
	f.closed = false
	f.connects++
	return f.closeCh, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) SendKeepalive(ctx context.Context) error { return nil }

func (f *fakeTransport) deliver(ctx context.Context, req *transport.IncomingRequest) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(ctx, req)
}

func (f *fakeTransport) closeWith(info transport.CloseInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCh <- info
	close(f.closeCh)
}

// fakeService is a signalservice.Service double with a toggle to
// simulate a down/up backend for reconnect-probe tests.
type fakeService struct {
	mu            sync.Mutex
	devicesErr    error
	probeCalls    int
	messages      []signalservice.DrainEnvelope
	deletedSource []string
}

func (s *fakeService) Request(ctx context.Context, req signalservice.Request, v any) error {
	return nil
}

func (s *fakeService) GetDevices(ctx context.Context) ([]signalservice.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCalls++
	if s.devicesErr != nil {
		return nil, s.devicesErr
	}
	return []signalservice.Device{{ID: 1}}, nil
}

func (s *fakeService) GetAttachment(ctx context.Context, id string) ([]byte, error) { return nil, nil }

func (s *fakeService) GetMessageStreamURL(ctx context.Context) (string, error) { return "", nil }

func (s *fakeService) GetMessages(ctx context.Context) (*signalservice.DrainResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &signalservice.DrainResponse{Messages: s.messages}, nil
}

func (s *fakeService) DeleteMessage(ctx context.Context, source string, timestamp uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedSource = append(s.deletedSource, source)
	return nil
}

func (s *fakeService) setDevicesErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devicesErr = err
}

func (s *fakeService) getProbeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeCalls
}

// passthroughStore "decrypts" by returning the ciphertext with Signal
// padding appended, as a real session cipher's output would carry.
type passthroughStore struct{}

func (passthroughStore) DecryptWhisper(ctx context.Context, addr string, deviceID uint32, ciphertext []byte) ([]byte, error) {
	return signalcrypto.Pad(ciphertext, 0), nil
}

func (passthroughStore) DecryptPreKeyWhisper(ctx context.Context, addr string, deviceID uint32, ciphertext []byte) ([]byte, error) {
	return signalcrypto.Pad(ciphertext, 0), nil
}

func (passthroughStore) GetDeviceIDs(ctx context.Context, addr string) ([]uint32, error) {
	return nil, nil
}

func (passthroughStore) CloseOpenSessionForDevice(ctx context.Context, addr string, deviceID uint32) error {
	return nil
}

type noopDownloader struct{}

func (noopDownloader) GetAttachment(ctx context.Context, id string) ([]byte, error) { return nil, nil }

func newTestReceiver(t *testing.T) (*Receiver, *fakeTransport, *fakeService, *events.Bus) {
	t.Helper()
	signalingKey := make([]byte, 52)
	crypto, err := signalcrypto.NewEnvelopeCrypto(signalingKey)
	require.NoError(t, err)

	bus := events.NewBus()
	decryptor := protocol.NewSessionDecryptor(passthroughStore{})
	content := dispatch.NewContentDispatcher(decryptor, attachment.NewFetcher(noopDownloader{}), bus, "+1owner", 1)
	codec := wire.ProtowireCodec{}
	envelopeDispatcher := dispatch.NewEnvelopeDispatcher(codec, decryptor, content, bus)

	ft := newFakeTransport()
	fs := &fakeService{}
	r := New(ft, fs, crypto, codec, envelopeDispatcher, bus, Identity{OwnAddr: "+1owner", OwnDeviceID: 1, SignalingKey: signalingKey})
	return r, ft, fs, bus
}

// sealFrameBytes builds a wire frame under the 52-byte all-zero test
// signaling key, matching the version||iv||ciphertext||mac(10) layout
// EnvelopeCrypto.DecryptFrame expects.
func sealFrameBytes(signalingKey []byte, plaintext []byte) []byte {
	aesKey := signalingKey[:32]
	macKey := signalingKey[32:]

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		panic(err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		panic(err)
	}
	padded := signalcrypto.Pad(plaintext, 0)
	for len(padded)%aes.BlockSize != 0 {
		padded = append(padded, 0)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	signed := append([]byte{1}, iv...)
	signed = append(signed, ciphertext...)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(signed)
	return append(signed, mac.Sum(nil)[:10]...)
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// deterministicRand seeds the backoff jitter so that the first retry
// delay is Next(1) = ln(2)*30*0.00365, about 76ms.
func deterministicRand() *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(9))
}

func TestHandleRequestAcksOnSuccessfulDecode(t *testing.T) {
	r, ft, _, _ := newTestReceiver(t)
	ctx := context.Background()
	_, err := r.Transport.Connect(ctx, r.handleRequest)
	require.NoError(t, err)

	content := &wire.Content{DataMessage: &wire.DataMessage{Body: "hi"}}
	plaintext := wire.EncodeContent(content)
	envelope := &wire.Envelope{Type: wire.EnvelopeCiphertext, Source: "+15550001111", SourceDevice: 1, Content: plaintext}

	var gotStatus int
	var gotReason string
	req := &transport.IncomingRequest{
		Verb: "PUT",
		Path: "/api/v1/message",
		Body: sealFrameBytes(r.Identity.SignalingKey, wire.EncodeEnvelope(envelope)),
		Respond: func(ctx context.Context, status int, reason string) error {
			gotStatus = status
			gotReason = reason
			return nil
		},
	}
	ft.deliver(ctx, req)
	require.Equal(t, 200, gotStatus)
	require.Equal(t, "OK", gotReason)
}

func TestHandleRequestNacksOnBadFrame(t *testing.T) {
	r, ft, _, bus := newTestReceiver(t)
	ctx := context.Background()
	_, err := r.Transport.Connect(ctx, r.handleRequest)
	require.NoError(t, err)

	errEvents := 0
	bus.On(events.NameError, func(ctx context.Context, evt events.Event) error {
		errEvents++
		return nil
	})

	var gotStatus int
	req := &transport.IncomingRequest{
		Verb: "PUT",
		Path: "/api/v1/message",
		Body: []byte("not a valid frame"),
		Respond: func(ctx context.Context, status int, reason string) error {
			gotStatus = status
			return nil
		},
	}
	ft.deliver(ctx, req)
	require.Equal(t, 500, gotStatus)
	require.Equal(t, 1, errEvents)
}

func TestHandleRequestRejectsWrongPath(t *testing.T) {
	r, ft, _, _ := newTestReceiver(t)
	ctx := context.Background()
	_, err := r.Transport.Connect(ctx, r.handleRequest)
	require.NoError(t, err)

	var gotStatus int
	req := &transport.IncomingRequest{
		Verb: "GET",
		Path: "/wrong",
		Respond: func(ctx context.Context, status int, reason string) error {
			gotStatus = status
			return nil
		},
	}
	ft.deliver(ctx, req)
	require.Equal(t, 400, gotStatus)
}

func TestHandleRequestOrdersTwoEnvelopesOnOneConnection(t *testing.T) {
	r, ft, _, bus := newTestReceiver(t)
	ctx := context.Background()
	_, err := r.Transport.Connect(ctx, r.handleRequest)
	require.NoError(t, err)

	var order []string
	bus.On(events.NameMessage, func(ctx context.Context, evt events.Event) error {
		order = append(order, evt.(*events.MessageEvent).Message.Body)
		return nil
	})

	for _, body := range []string{"first", "second"} {
		content := &wire.Content{DataMessage: &wire.DataMessage{Body: body}}
		envelope := &wire.Envelope{Type: wire.EnvelopeCiphertext, Source: "+1s", Content: wire.EncodeContent(content)}
		req := &transport.IncomingRequest{
			Verb:    "PUT",
			Path:    "/api/v1/message",
			Body:    sealFrameBytes(r.Identity.SignalingKey, wire.EncodeEnvelope(envelope)),
			Respond: func(ctx context.Context, status int, reason string) error { return nil },
		}
		ft.deliver(ctx, req)
	}
	require.Equal(t, []string{"first", "second"}, order)
}

func TestReconnectLoopProbesAndBacksOffThenReconnects(t *testing.T) {
	r, ft, fs, _ := newTestReceiver(t)
	r.Backoff = NewBackoffWithSource(deterministicRand())
	ctx := context.Background()
	require.NoError(t, r.Connect(ctx))

	fs.setDevicesErr(errDown)
	ft.closeWith(transport.CloseInfo{Code: 1006, Reason: "abnormal"})

	require.Eventually(t, func() bool {
		return fs.getProbeCalls() >= 1
	}, time.Second, 5*time.Millisecond)

	fs.setDevicesErr(nil)

	require.Eventually(t, func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.connects >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReconnectIsTerminalOnCloseSentinel(t *testing.T) {
	r, ft, fs, _ := newTestReceiver(t)
	ctx := context.Background()
	require.NoError(t, r.Connect(ctx))

	ft.closeWith(transport.CloseInfo{Code: transport.CloseSentinel, Reason: "bye"})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, fs.getProbeCalls())
	require.Equal(t, 1, ft.connects)
}

func TestDrainFailsWhileConnected(t *testing.T) {
	r, _, _, _ := newTestReceiver(t)
	ctx := context.Background()
	require.NoError(t, r.Connect(ctx))
	err := r.Drain(ctx)
	require.ErrorIs(t, err, dispatch.ErrDrainWhileConnected)
}

func TestDrainDispatchesAndDeletesMessages(t *testing.T) {
	r, _, fs, bus := newTestReceiver(t)
	plaintext := wire.EncodeDataMessage(&wire.DataMessage{Body: "drained"})
	fs.messages = []signalservice.DrainEnvelope{
		{Type: int32(wire.EnvelopeCiphertext), Source: "+1s", SourceDevice: 1, Timestamp: 1, Content: encodeBase64(plaintext)},
	}

	var got *events.MessageEvent
	bus.On(events.NameMessage, func(ctx context.Context, evt events.Event) error {
		got = evt.(*events.MessageEvent)
		return nil
	})

	err := r.Drain(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "drained", got.Message.Body)
	require.Equal(t, []string{"+1s"}, fs.deletedSource)
}
