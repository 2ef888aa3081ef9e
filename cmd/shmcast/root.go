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

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/codec"
	"github.com/diabloget/sync-process-comms/internal/config"
	"github.com/diabloget/sync-process-comms/internal/shm"
	"github.com/diabloget/sync-process-comms/pkg/logging"
)

// app carries the settings shared by every subcommand.
type app struct {
	flags      config.Config // bound to the command line
	cfg        config.Config // defaults, file, env, then explicit flags
	configPath string
	logger     logr.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{flags: config.Default()}

	root := &cobra.Command{
		Use:           "shmcast",
		Short:         "Broadcast a document through shared memory",
		Long:          "shmcast runs the participants of a shared-memory broadcast region: every registered receiver sees every byte emitted after it joined.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "JSON or YAML configuration file")
	a.flags.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newInitCommand(a),
		newEmitCommand(a),
		newReceiveCommand(a),
		newFinalizeCommand(a),
		newStatsCommand(a),
		newDemoCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	config.FromEnv(&cfg)
	if err := cfg.Overlay(cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger.WithName("shmcast")
	cmd.SetContext(logging.IntoContext(cmd.Context(), a.logger))
	return nil
}

// applyPositional accepts the "<manual|ms> [key]" shorthand of emit and
// receive.
func (a *app) applyPositional(args []string) error {
	if len(args) > 0 {
		mode, delay, err := config.ParseMode(args[0], a.cfg.Delay.Duration)
		if err != nil {
			return err
		}
		a.cfg.Mode, a.cfg.Delay.Duration = mode, delay
	}
	if len(args) > 1 {
		key, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("key must be an integer in [0, 255], got %q", args[1])
		}
		a.cfg.Key = uint8(key)
	}
	return nil
}

func (a *app) key() codec.Key {
	return codec.Key(a.cfg.Key)
}

func (a *app) mode() broadcast.Mode {
	if a.cfg.Manual() {
		return broadcast.ModeManual
	}
	return broadcast.ModeAutomatic
}

// pacer returns the pacer for the configured mode. Manual mode reads lines
// from stdin and prompts on stderr.
func (a *app) pacer(prompt string) broadcast.Pacer {
	if a.cfg.Manual() {
		return broadcast.NewLinePacer(os.Stdin, func() {
			fmt.Fprintln(os.Stderr, prompt)
		})
	}
	return broadcast.NewDelayPacer(a.cfg.EffectiveDelay().Duration, nil)
}

// attach maps the configured region, waiting up to wait for it to appear.
func (a *app) attach(ctx context.Context, wait time.Duration) (*shm.Region, error) {
	if wait <= 0 {
		return shm.Attach(a.cfg.Region.Dir, a.cfg.Region.Name)
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return shm.AttachWait(ctx, a.cfg.Region.Dir, a.cfg.Region.Name, 50*time.Millisecond)
}

func selfID() uint32 {
	return uint32(os.Getpid())
}
