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

// Package shm provides the shared memory region used by the broadcast buffer.
//
// A region is a single memory-mapped file holding a fixed control header
// followed by an arena: the source payload, the receiver table, the producer
// table, the slot ring and one guard per slot. Every base offset in the arena
// is computed from fields of the header, so a process that attaches only needs
// the header to learn the full size of the mapping.
//
// Coordination between processes goes through Sema, a counting semaphore that
// lives inside the region and blocks on the shared Linux futex. No Go pointers
// are ever stored in shared memory; views are computed from offsets on demand.
package shm
