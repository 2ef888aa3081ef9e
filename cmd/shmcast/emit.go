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

	"github.com/diabloget/sync-process-comms/internal/broadcast"
)

func newEmitCommand(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "emit [manual|<delay-ms>] [key]",
		Short: "Publish the source document into the region",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.applyPositional(args); err != nil {
				return err
			}
			ctx := cmd.Context()

			r, err := a.attach(ctx, wait)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			e := broadcast.NewEmitter(r, broadcast.EmitterConfig{
				Owner:        selfID(),
				Key:          a.key(),
				Mode:         a.mode(),
				Pacer:        a.pacer("Press Enter to send a character..."),
				PollInterval: a.cfg.PollInterval.Duration,
				OnPublish: func(ev broadcast.Event) {
					printEvent(out, "emitter", ev)
				},
			})
			return e.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for the region to be created")
	return cmd
}
