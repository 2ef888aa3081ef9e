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

// Command shmcast runs the participants of a shared-memory broadcast
// region: init creates it, emit and receive attach producers and
// consumers, finalize shuts it down and stats inspects it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Exit codes.
const (
	exitOK                = 0
	exitFailure           = 1
	exitResourceExhausted = 2
	exitAttachFailure     = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps the status code carried by err to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return exitResourceExhausted
	case codes.Unavailable:
		return exitAttachFailure
	default:
		return exitFailure
	}
}
