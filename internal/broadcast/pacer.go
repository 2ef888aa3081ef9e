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
	"bufio"
	"context"
	"io"
	"time"

	"k8s.io/utils/clock"
)

// Pacer controls the timing of a participant loop. Turn runs before every
// step and Rest after it. An error from either stops the loop; io.EOF from a
// manual pacer is a normal stop.
type Pacer interface {
	Turn(ctx context.Context) error
	Rest(ctx context.Context) error
}

// Unpaced runs steps back to back.
type Unpaced struct{}

func (Unpaced) Turn(ctx context.Context) error { return ctx.Err() }
func (Unpaced) Rest(ctx context.Context) error { return ctx.Err() }

// DelayPacer sleeps for Delay after every step.
type DelayPacer struct {
	Delay time.Duration
	Clock clock.Clock
}

// NewDelayPacer returns a pacer sleeping d on clk between steps.
func NewDelayPacer(d time.Duration, clk clock.Clock) *DelayPacer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &DelayPacer{Delay: d, Clock: clk}
}

func (p *DelayPacer) Turn(ctx context.Context) error {
	return ctx.Err()
}

func (p *DelayPacer) Rest(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	t := p.Clock.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// LinePacer waits for one line of input before every step.
type LinePacer struct {
	lines  chan struct{}
	prompt func()
}

// NewLinePacer starts reading lines from r. prompt, when set, runs before
// each wait. The reader goroutine exits at the end of input.
func NewLinePacer(r io.Reader, prompt func()) *LinePacer {
	p := &LinePacer{lines: make(chan struct{}), prompt: prompt}
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			p.lines <- struct{}{}
		}
	}()
	return p
}

func (p *LinePacer) Turn(ctx context.Context) error {
	if p.prompt != nil {
		p.prompt()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-p.lines:
		if !ok {
			return io.EOF
		}
		return nil
	}
}

func (p *LinePacer) Rest(ctx context.Context) error {
	return ctx.Err()
}
