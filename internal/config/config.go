/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package config holds the settings shared by every shmcast command. Values
// come from built-in defaults, an optional JSON or YAML file, SHMCAST_*
// environment variables and command-line flags, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// Config is the top-level configuration loaded from file/env/flags.
type Config struct {
	Region       Region   `json:"region" yaml:"region"`
	Key          uint8    `json:"key" yaml:"key"`
	Mode         string   `json:"mode" yaml:"mode"`
	Delay        Duration `json:"delay" yaml:"delay"`
	OutputDir    string   `json:"outputDir" yaml:"outputDir"`
	PollInterval Duration `json:"pollInterval" yaml:"pollInterval"`
	Log          Log      `json:"log" yaml:"log"`
	MetricsAddr  string   `json:"metricsAddr" yaml:"metricsAddr"`
	Grace        Duration `json:"grace" yaml:"grace"`
}

// Region selects and sizes the shared region.
type Region struct {
	Name         string `json:"name" yaml:"name"`
	Dir          string `json:"dir" yaml:"dir"`
	Capacity     uint32 `json:"capacity" yaml:"capacity"`
	MaxReceivers uint32 `json:"maxReceivers" yaml:"maxReceivers"`
	MaxProducers uint32 `json:"maxProducers" yaml:"maxProducers"`
}

// Log configures the logger.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Pacing modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Region: Region{
			Name:         "shmcast",
			Capacity:     16,
			MaxReceivers: shm.DefaultMaxReceivers,
			MaxProducers: shm.DefaultMaxProducers,
		},
		Key:          0x2a,
		Mode:         ModeAuto,
		Delay:        Duration{200 * time.Millisecond},
		OutputDir:    ".",
		PollInterval: Duration{shm.DefaultPollInterval},
		Log:          Log{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) over the
// defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ParseMode accepts "manual", "auto" or a delay in milliseconds, which
// selects automatic mode with that delay. delay is zero for "manual" and
// unchanged for "auto".
func ParseMode(s string, delay time.Duration) (string, time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ModeManual:
		return ModeManual, 0, nil
	case ModeAuto, "automatic":
		return ModeAuto, delay, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("mode must be %q, %q or a delay in milliseconds, got %q", ModeManual, ModeAuto, s)
	}
	if ms < 0 {
		return "", 0, fmt.Errorf("delay must be non-negative, got %d", ms)
	}
	return ModeAuto, time.Duration(ms) * time.Millisecond, nil
}

// Duration is a time.Duration that reads and writes as a string such as
// "250ms" in JSON and YAML. Plain JSON numbers are read as nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return fmt.Errorf("invalid duration %s", string(b))
		}
		d.Duration = time.Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Duration = v
	return nil
}
