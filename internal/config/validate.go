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
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/diabloget/sync-process-comms/internal/shm"
	"github.com/diabloget/sync-process-comms/pkg/logging"
)

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs error
	if c.Region.Name == "" || strings.ContainsAny(c.Region.Name, `/\`) {
		errs = multierr.Append(errs, fmt.Errorf("region name %q must be non-empty and contain no path separators", c.Region.Name))
	}
	if c.Region.Capacity == 0 || c.Region.Capacity > shm.MaxCapacity {
		errs = multierr.Append(errs, fmt.Errorf("capacity %d outside [1, %d]", c.Region.Capacity, shm.MaxCapacity))
	}
	if c.Region.MaxReceivers == 0 || c.Region.MaxReceivers > shm.MaxParticipants {
		errs = multierr.Append(errs, fmt.Errorf("max receivers %d outside [1, %d]", c.Region.MaxReceivers, shm.MaxParticipants))
	}
	if c.Region.MaxProducers == 0 || c.Region.MaxProducers > shm.MaxParticipants {
		errs = multierr.Append(errs, fmt.Errorf("max producers %d outside [1, %d]", c.Region.MaxProducers, shm.MaxParticipants))
	}
	if _, _, err := ParseMode(c.Mode, c.Delay.Duration); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Delay.Duration < 0 {
		errs = multierr.Append(errs, fmt.Errorf("delay %s must be non-negative", c.Delay))
	}
	if c.PollInterval.Duration <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("poll interval %s must be positive", c.PollInterval))
	}
	if c.Grace.Duration < 0 {
		errs = multierr.Append(errs, fmt.Errorf("grace %s must be non-negative", c.Grace))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errs
}

// Manual reports whether the configured mode is manual.
func (c *Config) Manual() bool {
	mode, _, err := ParseMode(c.Mode, c.Delay.Duration)
	return err == nil && mode == ModeManual
}

// EffectiveDelay returns the delay implied by the mode: zero in manual mode,
// the millisecond value when the mode is numeric and Delay otherwise.
func (c *Config) EffectiveDelay() (delay Duration) {
	_, d, err := ParseMode(c.Mode, c.Delay.Duration)
	if err != nil {
		return c.Delay
	}
	return Duration{d}
}
