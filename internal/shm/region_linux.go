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
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Create creates and initializes a new region. It fails if a region of the
// same name exists unless opts.Replace is set.
func Create(opts Options) (*Region, error) {
	opts.setDefaults()
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: empty region name", ErrInvalidLayout)
	}
	if len(opts.Source) > MaxSourceSize {
		return nil, fmt.Errorf("%w: source length %d exceeds %d", ErrInvalidLayout, len(opts.Source), MaxSourceSize)
	}

	layout, err := CalculateLayout(opts.Capacity, opts.MaxReceivers, opts.MaxProducers, uint32(len(opts.Source)))
	if err != nil {
		return nil, fmt.Errorf("layout calculation failed: %w", err)
	}

	path := Path(opts.Dir, opts.Name)
	if opts.Replace {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale region %s: %w", path, err)
		}
	}

	// Create the file with exclusive access
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to create region file %s: %w", path, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(layout.TotalSize)); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to resize region file: %w", err)
	}

	mem, err := mmapFile(file, int(layout.TotalSize))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to mmap region: %w", err)
	}

	r := &Region{
		file:   file,
		mem:    mem,
		name:   opts.Name,
		path:   path,
		layout: layout,
	}
	r.initialize(opts)
	return r, nil
}

// Attach maps an existing region. The header is mapped alone first; the full
// size is computed from the parameters it declares and the file is mapped a
// second time in full.
func Attach(dir, name string) (*Region, error) {
	path := Path(dir, name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrAttach, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrAttach, path, err)
	}
	if info.Size() < HeaderSize {
		file.Close()
		return nil, fmt.Errorf("%w: region file too small: %d bytes", ErrAttach, info.Size())
	}

	head, err := mmapFile(file, HeaderSize)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: map header: %w", ErrAttach, err)
	}
	layout, err := ValidateHeader((*Header)(unsafe.Pointer(&head[0])))
	munmap(head)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("invalid region header: %w", err)
	}
	if info.Size() < int64(layout.TotalSize) {
		file.Close()
		return nil, fmt.Errorf("%w: region file holds %d bytes, header declares %d", ErrInvalidLayout, info.Size(), layout.TotalSize)
	}

	mem, err := mmapFile(file, int(layout.TotalSize))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: map region: %w", ErrAttach, err)
	}

	r := &Region{
		file:   file,
		mem:    mem,
		name:   name,
		path:   path,
		layout: layout,
	}
	if err := r.verifySource(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// mmapFile memory maps a file
func mmapFile(file *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return data, nil
}

// munmap unmaps a memory-mapped region
func munmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}
	return nil
}
