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
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/sink"
)

func newReceiveCommand(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "receive [manual|<delay-ms>] [key]",
		Short: "Register a receiver and write every received byte to its output file",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := a.applyPositional(args); err != nil {
				return err
			}
			ctx := cmd.Context()

			r, err := a.attach(ctx, wait)
			if err != nil {
				return err
			}
			defer r.Close()

			owner := selfID()
			file, err := sink.Create(a.cfg.OutputDir, owner)
			if err != nil {
				return err
			}
			defer multierr.AppendInvoke(&err, multierr.Close(file))
			a.logger.Info("Writing output", "path", file.Path())

			out := cmd.OutOrStdout()
			rc := broadcast.NewReceiver(r, broadcast.ReceiverConfig{
				Owner:        owner,
				Key:          a.key(),
				Mode:         a.mode(),
				Pacer:        a.pacer("Press Enter to read the next character..."),
				Sink:         file,
				PollInterval: a.cfg.PollInterval.Duration,
				OnConsume: func(ev broadcast.Event) {
					printEvent(out, "receiver", ev)
				},
			})
			return rc.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for the region to be created")
	return cmd
}
