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
	"fmt"
	"io"
	"time"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/sink"
)

// printEvent writes one line per published or consumed byte.
func printEvent(w io.Writer, role string, ev broadcast.Event) {
	fmt.Fprintf(w, "%-8s (id %-6d) | char '%-2s' %s | slot[%-3d] | %s | pending %d\n",
		role, ev.Owner, sink.Printable(ev.Char), sink.Hex(ev.Char), ev.Position,
		ev.InsertedAt.Local().Format(time.TimeOnly), ev.Pending)
}
