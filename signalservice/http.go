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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.sigchat.dev/receiver/protocol"
)

// HTTPService is the default Service implementation, talking to a
// Signal-protocol-compatible server over plain HTTPS.
type HTTPService struct {
	BaseURL  string
	Username string
	Password string
	Client   *http.Client
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService constructs an HTTPService with a client tuned the way
// the ambient stack expects: explicit timeouts rather than relying on
// http.DefaultClient's unbounded behavior.
func NewHTTPService(baseURL, username, password string) *HTTPService {
	return &HTTPService{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		Client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
			},
		},
	}
}

func (s *HTTPService) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("signalservice: bad base url: %w", err)
	}
	u.Path = u.Path + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("signalservice: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Username != "" {
		req.SetBasicAuth(s.Username, s.Password)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, protocol.NewProtocolError(method+" "+path, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, protocol.NewProtocolError(
			fmt.Sprintf("%s %s", method, path),
			fmt.Errorf("status %d: %s", resp.StatusCode, respBody),
		)
	}
	return resp, nil
}

func (s *HTTPService) Request(ctx context.Context, req Request, v any) error {
	method := req.HTTPType
	if method == "" {
		method = http.MethodGet
	}
	resp, err := s.do(ctx, method, req.Call+req.URLParameters, req.Body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

func (s *HTTPService) GetDevices(ctx context.Context) ([]Device, error) {
	resp, err := s.do(ctx, http.MethodGet, "/v1/devices", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body struct {
		Devices []Device `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("signalservice: decode devices: %w", err)
	}
	return body.Devices, nil
}

func (s *HTTPService) GetAttachment(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, "/v2/attachments/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("signalservice: read attachment body: %w", err)
	}
	return body, nil
}

func (s *HTTPService) GetMessageStreamURL(ctx context.Context) (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("signalservice: bad base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/v1/websocket/"
	if s.Username != "" {
		u.User = url.UserPassword(s.Username, s.Password)
	}
	return u.String(), nil
}

func (s *HTTPService) GetMessages(ctx context.Context) (*DrainResponse, error) {
	resp, err := s.do(ctx, http.MethodGet, "/v1/messages", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out DrainResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("signalservice: decode drain response: %w", err)
	}
	return &out, nil
}

func (s *HTTPService) DeleteMessage(ctx context.Context, source string, timestamp uint64) error {
	path := fmt.Sprintf("/v1/messages/%s/%d", url.PathEscape(source), timestamp)
	resp, err := s.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
