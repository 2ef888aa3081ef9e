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

package shm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestCreateInitializesRegion(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	r, err := Create(Options{
		Name:         "init",
		Dir:          dir,
		Capacity:     5,
		MaxReceivers: 3,
		MaxProducers: 2,
		Source:       []byte("hello"),
		Clock:        testingclock.NewFakePassiveClock(now),
	})
	require.NoError(t, err)
	defer func() {
		r.Close()
		r.Unlink()
	}()

	h := r.Header()
	assert.Equal(t, uint32(StateReady), h.State())
	assert.Equal(t, uint32(5), h.Capacity())
	assert.Equal(t, uint32(3), h.MaxReceivers())
	assert.Equal(t, uint32(2), h.MaxProducers())
	assert.Equal(t, uint32(5), h.SourceLen())
	assert.True(t, h.CreatedAt().Equal(now))
	assert.NotEqual(t, [16]byte{}, [16]byte(h.Instance()))
	assert.Equal(t, []byte("hello"), r.Source())
	assert.Equal(t, uint64(r.Size()), h.TotalSize())

	assert.Equal(t, uint32(5), h.FreeSlots().Value())
	assert.Equal(t, uint32(1), h.ProducerMutex().Value())
	assert.Equal(t, uint32(1), h.RegistryMutex().Value())
	assert.Equal(t, uint32(0), h.Completion().Value())
	assert.Zero(t, h.WriteCursor())
	assert.False(t, h.ShutdownRequested())

	for i := uint32(0); i < 5; i++ {
		assert.Equal(t, uint32(1), r.Guard(i).Value())
		assert.Equal(t, i, r.Slot(i).Position())
		assert.Zero(t, r.Slot(i).PendingReaders())
	}
	for i := 0; i < 3; i++ {
		assert.False(t, r.Receiver(i).Occupied())
		assert.Equal(t, uint32(0), r.Receiver(i).Wake().Value())
	}
	for i := 0; i < 2; i++ {
		assert.False(t, r.Producer(i).Occupied())
	}

	// 4 header semaphores + 5 guards + 3 wakes
	assert.Len(t, r.Semaphores(), 12)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	r := createTestRegion(t, 2, []byte("ab"))

	_, err := Create(Options{Name: r.Name(), Dir: dirOf(r), Capacity: 2, Source: []byte("ab")})
	require.Error(t, err)

	replaced, err := Create(Options{Name: r.Name(), Dir: dirOf(r), Capacity: 3, Source: []byte("abc"), Replace: true})
	require.NoError(t, err)
	defer replaced.Close()
	assert.Equal(t, uint32(3), replaced.Capacity())
}

func TestCreateRejectsInvalidOptions(t *testing.T) {
	dir := t.TempDir()

	_, err := Create(Options{Dir: dir, Capacity: 2})
	assert.Error(t, err, "empty name")

	_, err = Create(Options{Name: "zero", Dir: dir, Capacity: 0})
	assert.ErrorIs(t, err, ErrInvalidLayout)
	assert.False(t, Exists(dir, "zero"))
}

func TestAttachSharesMemory(t *testing.T) {
	r := createTestRegion(t, 4, []byte("shared"))
	other := attachTestRegion(t, r)

	assert.Equal(t, r.Layout(), other.Layout())
	assert.Equal(t, r.Header().Instance(), other.Header().Instance())
	assert.Equal(t, []byte("shared"), other.Source())

	r.Slot(2).Store('z', 2, time.Unix(10, 0), 3)
	assert.Equal(t, byte('z'), other.Slot(2).Payload())
	assert.Equal(t, int32(3), other.Slot(2).PendingReaders())

	other.Header().SetWriteCursor(3)
	assert.Equal(t, uint32(3), r.Header().WriteCursor())

	other.Receiver(1).Claim(42, 1, 0, time.Unix(20, 0))
	assert.True(t, r.Receiver(1).Occupied())
	assert.Equal(t, uint32(42), r.Receiver(1).OwnerID())
}

func TestAttachMissingRegion(t *testing.T) {
	_, err := Attach(t.TempDir(), "missing")
	assert.ErrorIs(t, err, ErrAttach)
}

func TestAttachDestroyedRegion(t *testing.T) {
	r := createTestRegion(t, 2, []byte("ab"))
	r.Header().SetState(StateDestroyed)

	_, err := Attach(dirOf(r), r.Name())
	assert.ErrorIs(t, err, ErrAttach)
}

func TestAttachDetectsCorruptSource(t *testing.T) {
	r := createTestRegion(t, 2, []byte("abc"))
	r.Source()[1] = 'X'

	_, err := Attach(dirOf(r), r.Name())
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestAttachRejectsTruncatedFile(t *testing.T) {
	r := createTestRegion(t, 2, []byte("abc"))
	require.NoError(t, os.Truncate(r.Path(), HeaderSize))

	_, err := Attach(dirOf(r), r.Name())
	assert.Error(t, err)
}

func TestUnlinkKeepsMappingValid(t *testing.T) {
	r := createTestRegion(t, 2, []byte("ab"))
	require.NoError(t, r.Unlink())
	assert.False(t, Exists(dirOf(r), r.Name()))

	// The mapping survives removal of the file.
	assert.Equal(t, []byte("ab"), r.Source())
	require.NoError(t, r.Unlink(), "second unlink is a no-op")
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(Options{Name: "close", Dir: dir, Capacity: 1})
	require.NoError(t, err)
	defer r.Unlink()

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/tmp/x/"+FilePrefix+"demo", Path("/tmp/x", "demo"))
	assert.Contains(t, Path("", "demo"), FilePrefix+"demo")
}

func TestAttachWaitForLateCreator(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		r, err := Create(Options{Name: "late", Dir: dir, Capacity: 2, Source: []byte("ab")})
		if err != nil {
			t.Errorf("Create failed: %v", err)
			return
		}
		r.Close()
	}()

	r, err := AttachWait(ctx, dir, "late", 10*time.Millisecond)
	require.NoError(t, err)
	defer func() {
		r.Close()
		r.Unlink()
	}()
	assert.Equal(t, []byte("ab"), r.Source())
}

func TestAttachWaitTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := AttachWait(ctx, t.TempDir(), "never", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrAttach)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
