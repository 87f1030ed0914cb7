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
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for receiverd.
type Config struct {
	ServiceURL   string `yaml:"service_url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	SignalingKey string `yaml:"signaling_key"` // base64, must decode to 52 bytes
	OwnAddr      string `yaml:"own_addr"`
	OwnDeviceID  uint32 `yaml:"own_device_id"`
	LogLevel     string `yaml:"log_level"`
}

func loadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{LogLevel: "info"}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("config: service_url is required")
	}
	if cfg.OwnAddr == "" {
		return nil, fmt.Errorf("config: own_addr is required")
	}
	if _, err := cfg.signalingKeyBytes(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) signalingKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.SignalingKey)
	if err != nil {
		return nil, fmt.Errorf("config: signaling_key: %w", err)
	}
	if len(key) != 52 {
		return nil, fmt.Errorf("config: signaling_key must decode to 52 bytes, got %d", len(key))
	}
	return key, nil
}
