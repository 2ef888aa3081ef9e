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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/config"
	"github.com/diabloget/sync-process-comms/internal/shm"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"receiver table full", fmt.Errorf("register: %w", broadcast.ErrReceiverTableFull), exitResourceExhausted},
		{"producer table full", fmt.Errorf("join: %w", broadcast.ErrProducerTableFull), exitResourceExhausted},
		{"attach", fmt.Errorf("%w: no such file", shm.ErrAttach), exitAttachFailure},
		{"other", assert.AnError, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestApplyPositional(t *testing.T) {
	a := &app{cfg: config.Default()}
	require.NoError(t, a.applyPositional([]string{"manual", "0x20"}))
	assert.True(t, a.cfg.Manual())
	assert.Equal(t, uint8(0x20), a.cfg.Key)
	assert.Equal(t, broadcast.ModeManual, a.mode())

	a = &app{cfg: config.Default()}
	require.NoError(t, a.applyPositional([]string{"50"}))
	assert.False(t, a.cfg.Manual())
	assert.Equal(t, 50*time.Millisecond, a.cfg.Delay.Duration)
	assert.Equal(t, uint8(0x2a), a.cfg.Key)

	assert.Error(t, a.applyPositional([]string{"sometimes"}))
	assert.Error(t, a.applyPositional([]string{"10", "256"}))
	assert.Error(t, a.applyPositional([]string{"10", "key"}))
}

func TestWriteStats(t *testing.T) {
	cursor := uint32(3)
	st := broadcast.Stats{
		Name:        "doc",
		State:       "ready",
		Capacity:    4,
		FreeSlots:   2,
		WriteCursor: 3,
		TotalBytes:  7,
		Receivers: []broadcast.MemberStats{
			{Row: 0, Owner: 42, Mode: "automatic", Cursor: &cursor, Bytes: 5, Backlog: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeStats(&buf, "text", st))
	assert.Contains(t, buf.String(), "doc (ready)")
	assert.Contains(t, buf.String(), "2 free / 4")
	assert.Regexp(t, `receiver\s+0\s+42\s+automatic`, buf.String())

	buf.Reset()
	require.NoError(t, writeStats(&buf, "json", st))
	assert.Contains(t, buf.String(), `"totalBytes": 7`)

	buf.Reset()
	require.NoError(t, writeStats(&buf, "yaml", st))
	assert.Contains(t, buf.String(), "totalBytes: 7")

	assert.Error(t, writeStats(&buf, "xml", st))
}
