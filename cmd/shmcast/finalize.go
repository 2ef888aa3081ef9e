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
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/metrics"
	"github.com/diabloget/sync-process-comms/internal/shm"
)

func newFinalizeCommand(a *app) *cobra.Command {
	var (
		timeout time.Duration
		output  string
	)

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Wait for an interrupt, then shut the region down and print its statistics",
		Long: "finalize attaches to the region and blocks until SIGINT or the grace period. " +
			"It then wakes and terminates every participant, waits for each to finish, " +
			"prints the final statistics and removes the region.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logr.FromContextOrDiscard(ctx)

			r, err := shm.Attach(a.cfg.Region.Dir, a.cfg.Region.Name)
			if err != nil {
				return err
			}

			src := &liveStats{region: r}
			g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
			serveCtx, stopServing := context.WithCancel(gctx)
			defer stopServing()
			if a.cfg.MetricsAddr != "" {
				reg := metrics.NewRegistry(src.read)
				g.Go(func() error {
					return metrics.Serve(serveCtx, a.cfg.MetricsAddr, reg)
				})
			}

			log.Info("Waiting for interrupt", "region", r.Name(), "grace", a.cfg.Grace.Duration)
			if err := waitForStop(ctx, gctx, a.cfg.Grace.Duration); err != nil {
				r.Close()
				return err
			}
			src.close()

			shutdownCtx := logr.NewContext(context.Background(), log)
			if timeout > 0 {
				var cancel context.CancelFunc
				shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
				defer cancel()
			}
			c := broadcast.NewCoordinator(r, broadcast.CoordinatorConfig{
				Terminator:   broadcast.SignalTerminator{},
				PollInterval: a.cfg.PollInterval.Duration,
			})
			stats, shutdownErr := c.Shutdown(shutdownCtx)

			stopServing()
			if err := g.Wait(); err != nil {
				log.Error(err, "Metrics server failed")
			}
			if err := writeStats(cmd.OutOrStdout(), output, stats); err != nil {
				return err
			}
			return shutdownErr
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting for participants after this long (0 waits forever)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "statistics format: text, json or yaml")
	return cmd
}

// waitForStop blocks until ctx ends, the grace period elapses or the
// metrics server fails.
func waitForStop(ctx, serving context.Context, grace time.Duration) error {
	var after <-chan time.Time
	if grace > 0 {
		t := time.NewTimer(grace)
		defer t.Stop()
		after = t.C
	}
	select {
	case <-ctx.Done():
	case <-after:
	case <-serving.Done():
		return context.Cause(serving)
	}
	return nil
}

// liveStats serves region statistics to scrapes until the region is handed
// to the coordinator.
type liveStats struct {
	mu     sync.Mutex
	region *shm.Region
	closed bool
}

func (s *liveStats) read() (broadcast.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return broadcast.Stats{}, false
	}
	return broadcast.ReadStats(s.region), true
}

func (s *liveStats) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
