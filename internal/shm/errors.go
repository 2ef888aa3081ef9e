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

package shm

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrAttach is returned when a region is missing, inaccessible or not
	// ready. Callers must not touch shared state after seeing it.
	ErrAttach = status.Error(codes.Unavailable, "shm: region unavailable")

	// ErrInvalidLayout is returned when region parameters or a mapped header
	// are inconsistent.
	ErrInvalidLayout = status.Error(codes.FailedPrecondition, "shm: invalid region layout")

	// ErrSemaDestroyed is returned by Sema.Wait once the semaphore has been
	// torn down by the coordinator.
	ErrSemaDestroyed = status.Error(codes.Aborted, "shm: semaphore destroyed")

	// ErrWaitInterrupted is returned by Sema.Wait when the interrupted
	// predicate reports true before a permit was obtained.
	ErrWaitInterrupted = status.Error(codes.Canceled, "shm: wait interrupted")

	// ErrUnsupported is returned on platforms without a shared futex.
	ErrUnsupported = status.Error(codes.Unimplemented, "shm: shared memory not supported on this platform")
)
