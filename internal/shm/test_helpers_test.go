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
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// createTestRegion creates a region under a per-test directory and registers
// cleanup so the mapping is always released even if the test fails.
func createTestRegion(t *testing.T, capacity uint32, source []byte) *Region {
	t.Helper()

	dir := t.TempDir()
	name := fmt.Sprintf("test-%d", time.Now().UnixNano())
	r, err := Create(Options{
		Name:     name,
		Dir:      dir,
		Capacity: capacity,
		Source:   source,
	})
	if err != nil {
		t.Fatalf("Failed to create test region %s: %v", name, err)
	}
	t.Cleanup(func() {
		r.Close()
		r.Unlink()
	})
	return r
}

// attachTestRegion maps an existing region a second time, as another process
// would, and registers cleanup for the extra mapping.
func attachTestRegion(t *testing.T, r *Region) *Region {
	t.Helper()

	other, err := Attach(dirOf(r), r.Name())
	if err != nil {
		t.Fatalf("Failed to attach test region %s: %v", r.Name(), err)
	}
	t.Cleanup(func() {
		other.Close()
	})
	return other
}

func dirOf(r *Region) string {
	return filepath.Dir(r.Path())
}
