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

package signalservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDevicesDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/devices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"devices":[{"id":1,"name":"primary"},{"id":2}]}`))
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", "")
	devices, err := svc.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Equal(t, "primary", devices[0].Name)
}

func TestGetDevicesSurfacesProtocolErrorOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", "")
	_, err := svc.GetDevices(context.Background())
	require.Error(t, err)
}

func TestGetAttachmentReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/attachments/42", r.URL.Path)
		w.Write([]byte("ciphertext-bytes"))
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", "")
	body, err := svc.GetAttachment(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "ciphertext-bytes", string(body))
}

func TestDeleteMessageHitsExpectedPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodDelete, r.Method)
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", "")
	err := svc.DeleteMessage(context.Background(), "+15550001111", 1700000000000)
	require.NoError(t, err)
	require.Equal(t, "/v1/messages/+15550001111/1700000000000", gotPath)
}

func TestGetMessageStreamURLUsesWebsocketScheme(t *testing.T) {
	svc := NewHTTPService("https://example.com", "user", "pass")
	u, err := svc.GetMessageStreamURL(context.Background())
	require.NoError(t, err)
	require.Contains(t, u, "wss://")
	require.Contains(t, u, "/v1/websocket/")
}
