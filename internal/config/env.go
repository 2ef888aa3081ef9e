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

package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays SHMCAST_* environment variables onto cfg. Values that do
// not parse are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SHMCAST_NAME"); v != "" {
		cfg.Region.Name = v
	}
	if v := os.Getenv("SHMCAST_DIR"); v != "" {
		cfg.Region.Dir = v
	}
	if v := os.Getenv("SHMCAST_CAPACITY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Region.Capacity = uint32(n)
		}
	}
	if v := os.Getenv("SHMCAST_MAX_RECEIVERS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Region.MaxReceivers = uint32(n)
		}
	}
	if v := os.Getenv("SHMCAST_MAX_PRODUCERS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Region.MaxProducers = uint32(n)
		}
	}
	if v := os.Getenv("SHMCAST_KEY"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 8); err == nil {
			cfg.Key = uint8(n)
		}
	}
	if v := os.Getenv("SHMCAST_MODE"); v != "" {
		if mode, delay, err := ParseMode(v, cfg.Delay.Duration); err == nil {
			cfg.Mode = mode
			cfg.Delay.Duration = delay
		}
	}
	if v := os.Getenv("SHMCAST_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Delay.Duration = d
		}
	}
	if v := os.Getenv("SHMCAST_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SHMCAST_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval.Duration = d
		}
	}
	if v := os.Getenv("SHMCAST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SHMCAST_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SHMCAST_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SHMCAST_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Grace.Duration = d
		}
	}
}
