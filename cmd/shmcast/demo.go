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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/shm"
)

const demoText = "The quick brown fox jumps over the lazy dog.\n"

type demoOptions struct {
	emitters  int
	receivers int
	source    string
	pace      time.Duration
	timeout   time.Duration
	output    string
}

func newDemoCommand(a *app) *cobra.Command {
	o := demoOptions{emitters: 2, receivers: 3, pace: 10 * time.Millisecond, timeout: 30 * time.Second}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run emitters, receivers and the finalizer in one process on a throwaway region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, a, o)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&o.emitters, "emitters", o.emitters, "number of emitters")
	fs.IntVar(&o.receivers, "receivers", o.receivers, "number of receivers")
	fs.StringVar(&o.source, "source", "", "source file (a short built-in text when empty)")
	fs.DurationVar(&o.pace, "pace", o.pace, "delay between two operations of one participant")
	fs.DurationVar(&o.timeout, "timeout", o.timeout, "abort the demo after this long")
	fs.StringVarP(&o.output, "output", "o", "text", "statistics format: text, json or yaml")
	return cmd
}

func runDemo(cmd *cobra.Command, a *app, o demoOptions) (err error) {
	if o.emitters < 1 || o.receivers < 0 {
		return fmt.Errorf("need at least one emitter and a non-negative receiver count")
	}
	source := []byte(demoText)
	if o.source != "" {
		if source, err = readSource(o.source); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	log := logr.FromContextOrDiscard(ctx).WithName("demo")

	dir, err := os.MkdirTemp("", "shmcast-demo-")
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(func() error { return os.RemoveAll(dir) }))

	r, err := shm.Create(shm.Options{
		Name:         "demo-" + uuid.NewString()[:8],
		Dir:          dir,
		Capacity:     a.cfg.Region.Capacity,
		MaxReceivers: max(a.cfg.Region.MaxReceivers, uint32(o.receivers)),
		MaxProducers: max(a.cfg.Region.MaxProducers, uint32(o.emitters)),
		Source:       source,
	})
	if err != nil {
		return err
	}
	log.Info("Region created", "path", r.Path(), "capacity", r.Capacity(), "sourceLen", len(source))

	outputs := make([]bytes.Buffer, o.receivers)
	receivers, rctx := errgroup.WithContext(ctx)
	for i := range outputs {
		owner := uint32(i + 1)
		sinkBuf := &outputs[i]
		receivers.Go(func() error {
			return runDemoParticipant(r, func(pr *shm.Region) error {
				return broadcast.NewReceiver(pr, broadcast.ReceiverConfig{
					Owner:        owner,
					Key:          a.key(),
					Pacer:        broadcast.NewDelayPacer(o.pace, nil),
					Sink:         sinkBuf,
					PollInterval: a.cfg.PollInterval.Duration,
				}).Run(rctx)
			})
		})
	}

	runErr := waitFor(rctx, func(st broadcast.Stats) bool {
		return st.ActiveConsumers == uint32(o.receivers)
	}, r)

	if runErr == nil {
		emitters, ectx := errgroup.WithContext(ctx)
		for i := 0; i < o.emitters; i++ {
			owner := uint32(1001 + i)
			emitters.Go(func() error {
				return runDemoParticipant(r, func(pr *shm.Region) error {
					return broadcast.NewEmitter(pr, broadcast.EmitterConfig{
						Owner:        owner,
						Key:          a.key(),
						Pacer:        broadcast.NewDelayPacer(o.pace, nil),
						PollInterval: a.cfg.PollInterval.Duration,
					}).Run(ectx)
				})
			})
		}
		runErr = emitters.Wait()
	}
	if runErr == nil {
		runErr = waitFor(ctx, func(st broadcast.Stats) bool {
			for _, m := range st.Receivers {
				if m.Bytes != st.TotalBytes || m.Backlog != 0 {
					return false
				}
			}
			return true
		}, r)
	}

	// The coordinator gets its own deadline so the region is released even
	// when the demo timed out.
	shutdownCtx, stop := context.WithTimeout(logr.NewContext(context.Background(), log), 10*time.Second)
	defer stop()
	stats, shutdownErr := broadcast.NewCoordinator(r, broadcast.CoordinatorConfig{
		Terminator:   broadcast.NopTerminator{},
		PollInterval: a.cfg.PollInterval.Duration,
	}).Shutdown(shutdownCtx)
	cancel()
	err = multierr.Combine(runErr, shutdownErr, receivers.Wait())

	out := cmd.OutOrStdout()
	if werr := writeStats(out, o.output, stats); werr != nil {
		return multierr.Append(err, werr)
	}
	if o.output == "text" {
		fmt.Fprintln(out)
		for i := range outputs {
			fmt.Fprintf(out, "receiver %d: %d bytes %q\n", i+1, outputs[i].Len(), outputs[i].String())
		}
	}
	return err
}

// runDemoParticipant gives fn its own mapping of the region, the way a
// separate process would see it.
func runDemoParticipant(r *shm.Region, fn func(*shm.Region) error) error {
	pr, err := shm.Attach(filepath.Dir(r.Path()), r.Name())
	if err != nil {
		return err
	}
	defer pr.Close()
	return fn(pr)
}

// waitFor polls the region statistics until done reports true or ctx ends.
func waitFor(ctx context.Context, done func(broadcast.Stats) bool, r *shm.Region) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for !done(broadcast.ReadStats(r)) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
