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

// Package broadcast implements the broadcast protocol on top of a mapped
// region: the capacity counter, per-slot guards, the receiver and producer
// registries, the emitter and receiver loops and the shutdown coordinator.
//
// Every participant works through its own *shm.Region handle. The region's
// semaphores are the only synchronization between participants; they may
// live in different processes or in different goroutines of one process.
//
// Lock order is registry mutex, then producer mutex, then a slot guard. No
// lock is held across a wait on the capacity counter or a wake semaphore.
package broadcast
