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

//go:build linux

package broadcast

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

func TestShutdownWakesBlockedParticipants(t *testing.T) {
	// Receivers that never see data and emitters stuck on a full ring.
	r := newTestRegion(t, shm.Options{Capacity: 2, Source: []byte(strings.Repeat("z", 64))})
	term := newCancelTerminator()

	lines, feed := io.Pipe()
	defer feed.Close()

	g, ctx := errgroup.WithContext(context.Background())
	for i := uint32(0); i < 2; i++ {
		owner := 50 + i
		g.Go(func() error {
			return NewReceiver(attach(t, r), ReceiverConfig{
				Owner:        owner,
				Mode:         ModeManual,
				Pacer:        NewLinePacer(lines, nil),
				PollInterval: testPoll,
			}).Run(term.context(ctx, owner))
		})
	}
	waitFor(t, func() bool { return r.Header().ActiveConsumers() == 2 }, "receivers registered")

	for i := uint32(0); i < 3; i++ {
		owner := 1 + i
		g.Go(func() error {
			return NewEmitter(attach(t, r), EmitterConfig{
				Owner:        owner,
				PollInterval: testPoll,
			}).Run(term.context(ctx, owner))
		})
	}
	waitFor(t, func() bool { return r.Header().ActiveProducers() == 3 }, "emitters joined")
	waitFor(t, func() bool { return r.Header().TotalBytes() == 2 }, "ring full")

	stats := shutdown(t, r, term)
	require.NoError(t, g.Wait())

	assert.ElementsMatch(t, []uint32{50, 51, 1, 2, 3}, term.terminated())
	assert.Equal(t, uint32(0), stats.ActiveConsumers)
	assert.Equal(t, uint32(0), stats.ActiveProducers)
	assert.Equal(t, uint32(2), stats.TotalConsumers)
	assert.Equal(t, uint32(3), stats.TotalProducers)
	assert.Equal(t, uint64(2), stats.TotalBytes, "no publication after shutdown")
	assert.True(t, stats.ShutdownRequested)

	_, err := os.Stat(r.Path())
	assert.True(t, os.IsNotExist(err), "region file removed")
}

func TestShutdownWithoutTerminatorRelyingOnFlag(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 1, Source: []byte("abc")})

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return NewReceiver(attach(t, r), ReceiverConfig{Owner: 7, PollInterval: testPoll}).Run(ctx)
	})
	waitFor(t, func() bool { return r.Header().ActiveConsumers() == 1 }, "receiver registered")

	shutdown(t, r, NopTerminator{})
	require.NoError(t, g.Wait())
}

func TestShutdownIgnoresParticipantsThatAlreadyLeft(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 2, Source: []byte("ab")})

	require.NoError(t, NewEmitter(attach(t, r), EmitterConfig{Owner: 1, PollInterval: testPoll}).Run(context.Background()))
	require.NoError(t, NewEmitter(attach(t, r), EmitterConfig{Owner: 2, PollInterval: testPoll}).Run(context.Background()))
	require.Equal(t, uint32(2), r.Header().Completion().Value(), "stale completion permits")

	// A receiver that stays registered; its completion is the only one
	// that may satisfy the final wait.
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return NewReceiver(attach(t, r), ReceiverConfig{Owner: 3, PollInterval: testPoll}).Run(ctx)
	})
	waitFor(t, func() bool { return r.Header().ActiveConsumers() == 1 }, "receiver registered")

	stats := shutdown(t, r, NopTerminator{})
	require.NoError(t, g.Wait())
	assert.Equal(t, uint32(0), stats.ActiveConsumers, "final wait covered the receiver")
}

func TestShutdownTimesOutButTearsDown(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 2})
	// A row registered by a participant that will never report back.
	_, err := NewRegistry(r, NewAllocator(r, testPoll), nil).Register(99, ModeAutomatic)
	require.NoError(t, err)

	term := newCancelTerminator()
	c := NewCoordinator(attach(t, r), CoordinatorConfig{Terminator: term, PollInterval: testPoll})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []uint32{99}, term.terminated())

	assert.False(t, shm.Exists(filepath.Dir(r.Path()), r.Name()))
	assert.Equal(t, shm.StateDestroyed, r.Header().State())
	for _, s := range r.Semaphores() {
		assert.True(t, s.Destroyed())
	}

	_, err = shm.Attach(filepath.Dir(r.Path()), r.Name())
	assert.ErrorIs(t, err, shm.ErrAttach)
}

func TestShutdownEmptyRegion(t *testing.T) {
	r := newTestRegion(t, shm.Options{Capacity: 3})
	stats := shutdown(t, r, NopTerminator{})

	assert.Equal(t, "ready", stats.State, "stats are read before teardown")
	assert.Equal(t, uint32(6), stats.FreeSlots, "capacity over-released once")
}

func TestSignalTerminatorSkipsSelfAndZero(t *testing.T) {
	var term SignalTerminator
	assert.NoError(t, term.Terminate(0))
	assert.NoError(t, term.Terminate(uint32(os.Getpid())))
}
