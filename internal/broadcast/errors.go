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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrReceiverTableFull is returned by Register when every receiver row is
	// taken. The region is left untouched.
	ErrReceiverTableFull = status.Error(codes.ResourceExhausted, "broadcast: receiver table full")

	// ErrProducerTableFull is returned by Join when every producer row is
	// taken.
	ErrProducerTableFull = status.Error(codes.ResourceExhausted, "broadcast: producer table full")

	// ErrSourceExhausted marks the end of an emitter's source payload. It is
	// the emitter's normal stop condition.
	ErrSourceExhausted = status.Error(codes.OutOfRange, "broadcast: source exhausted")

	// ErrCapacityWaitInterrupted is returned when a wait for a free slot was
	// cut short by a shutdown request.
	ErrCapacityWaitInterrupted = status.Error(codes.Aborted, "broadcast: capacity wait interrupted")

	// ErrShutdownRequested is returned by operations refused because the
	// coordinator has started shutting the region down.
	ErrShutdownRequested = status.Error(codes.Canceled, "broadcast: shutdown requested")

	// ErrSlotInUse is returned when a producer finds the slot at the write
	// cursor still owed to receivers.
	ErrSlotInUse = status.Error(codes.Internal, "broadcast: slot still has pending readers")

	// ErrInvalidOwner is returned for a zero owner id; zero marks a free row.
	ErrInvalidOwner = status.Error(codes.InvalidArgument, "broadcast: owner id must be non-zero")
)
