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
	"context"
	"errors"
	"time"
)

// AttachWait attaches to a region, retrying every interval until the region
// exists and is ready or ctx ends. Errors other than ErrAttach are returned
// immediately.
func AttachWait(ctx context.Context, dir, name string, interval time.Duration) (*Region, error) {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r, err := Attach(dir, name)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrAttach) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-ticker.C:
			// Continue to next attempt
		}
	}
}
