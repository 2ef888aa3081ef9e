//go:build linux

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
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex operations. The shared (non-private) variants are used because
// waiters and wakers live in different processes mapping the same file.
const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

var errFutexTimeout = errors.New("futex timeout")

// futexWait waits for the value at addr to change from val, for at most
// timeout (zero waits without a deadline). It returns when either:
//   - The value at addr is no longer equal to val
//   - Another process or thread calls futexWake on the same address
//   - The system call is interrupted or times out
//
// Always re-check the condition after this returns due to possible spurious
// wakeups.
func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	// Re-check before entering the syscall; the kernel repeats the comparison
	// atomically with queueing the waiter.
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), // uaddr
		futexWaitOp,                   // futex_op
		uintptr(val),                  // expected value
		uintptr(unsafe.Pointer(ts)),   // relative timeout, NULL for none
		0,                             // uaddr2 - unused
		0,                             // val3 - unused
	)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	case unix.ETIMEDOUT:
		return errFutexTimeout
	default:
		return fmt.Errorf("futex wait failed: %w", errno)
	}
}

// futexWake wakes up to n waiters blocked on addr in any process.
// Returns the number of waiters actually woken up.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), // uaddr
		futexWakeOp,                   // futex_op
		uintptr(n),                    // number of waiters to wake
		0,                             // timeout - unused for wake
		0,                             // uaddr2 - unused
		0,                             // val3 - unused
	)
	if errno != 0 {
		return 0, fmt.Errorf("futex wake failed: %w", errno)
	}
	return int(r1), nil
}
