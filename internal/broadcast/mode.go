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
	"fmt"
	"time"
)

// Mode selects how a participant is paced. It only affects timing.
type Mode uint32

const (
	// ModeAutomatic paces a participant with a fixed delay between steps.
	ModeAutomatic Mode = iota
	// ModeManual waits for one line of input before every step.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "automatic"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", uint32(m))
	}
}

// Event describes one published or consumed byte. Pending is the slot's
// reference count right after the operation.
type Event struct {
	Owner      uint32
	Position   uint32
	Char       byte
	InsertedAt time.Time
	Pending    int32
}
