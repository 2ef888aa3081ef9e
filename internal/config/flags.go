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

	"github.com/spf13/pflag"
)

// BindFlags registers flags for every field of c, using the current values
// as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Region.Name, "name", c.Region.Name, "region name shared by every participant")
	fs.StringVar(&c.Region.Dir, "dir", c.Region.Dir, "directory holding the region file (default /dev/shm or the temp dir)")
	fs.Uint32Var(&c.Region.Capacity, "capacity", c.Region.Capacity, "number of slots in the ring")
	fs.Uint32Var(&c.Region.MaxReceivers, "max-receivers", c.Region.MaxReceivers, "rows in the receiver table")
	fs.Uint32Var(&c.Region.MaxProducers, "max-producers", c.Region.MaxProducers, "rows in the producer table")
	fs.Uint8Var(&c.Key, "key", c.Key, "single-byte transform key")
	fs.StringVar(&c.Mode, "mode", c.Mode, `pacing: "manual", "auto" or a delay in milliseconds`)
	fs.DurationVar(&c.Delay.Duration, "delay", c.Delay.Duration, "delay between steps in automatic mode")
	fs.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "directory for receiver output files")
	fs.DurationVar(&c.PollInterval.Duration, "poll-interval", c.PollInterval.Duration, "upper bound of one blocking wait before flags are re-checked")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: trace, debug, info, warn or error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: text or json")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address (empty disables)")
	fs.DurationVar(&c.Grace.Duration, "grace", c.Grace.Duration, "finalize automatically after this long (0 waits for SIGINT)")
}

// Overlay applies the flags explicitly set on fs to c. It lets a loaded
// file and the environment sit under the command line.
func (c *Config) Overlay(fs *pflag.FlagSet) error {
	bound := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
	c.BindFlags(bound)

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || bound.Lookup(f.Name) == nil {
			return
		}
		if serr := bound.Set(f.Name, f.Value.String()); serr != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, serr)
		}
	})
	return err
}
