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

// Package sink holds the per-receiver output destination and the printable
// rendering of payload bytes used in logs.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileName returns the output file name of the receiver with the given
// owner id.
func FileName(owner uint32) string {
	return "receiver-" + strconv.FormatUint(uint64(owner), 10) + ".out"
}

// File is an append-only output file. Every byte is flushed as soon as it
// is written so a reader of the file sees the stream as it is consumed.
type File struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
	n    int64
}

// Create creates (truncating) the output file of owner in dir.
func Create(dir string, owner uint32) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(owner))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return &File{f: f, w: bufio.NewWriter(f), path: path}, nil
}

// Path returns the file path
func (s *File) Path() string {
	return s.path
}

// Written returns the number of bytes written so far
func (s *File) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// WriteByte appends b and flushes it.
func (s *File) WriteByte(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	if err := s.w.WriteByte(b); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	s.n++
	return nil
}

// Close flushes and closes the file. Close is idempotent.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.w.Flush()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f = nil
	return err
}

// Writer adapts any io.Writer to a byte sink.
type Writer struct {
	W io.Writer
}

func (w Writer) WriteByte(b byte) error {
	_, err := w.W.Write([]byte{b})
	return err
}
