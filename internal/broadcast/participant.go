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

package broadcast

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

// participant bundles the primitives of one mapped region as seen by one
// participant.
type participant struct {
	region    *shm.Region
	hdr       *shm.Header
	alloc     *Allocator
	guards    Guards
	registry  *Registry
	producers *Producers
	clock     clock.Clock
	poll      time.Duration
}

func newParticipant(r *shm.Region, clk clock.Clock, poll time.Duration) participant {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if poll <= 0 {
		poll = shm.DefaultPollInterval
	}
	alloc := NewAllocator(r, poll)
	return participant{
		region:    r,
		hdr:       r.Header(),
		alloc:     alloc,
		guards:    NewGuards(r),
		registry:  NewRegistry(r, alloc, clk),
		producers: NewProducers(r, clk),
		clock:     clk,
		poll:      poll,
	}
}
