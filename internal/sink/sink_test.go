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

package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintable(t *testing.T) {
	tests := []struct {
		in   byte
		want string
	}{
		{'A', "A"},
		{' ', " "},
		{'~', "~"},
		{'\n', `\n`},
		{'\r', `\r`},
		{'\t', `\t`},
		{0x00, "?"},
		{0x7f, "?"},
		{0xe9, "?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Printable(tt.in), "Printable(%#02x)", tt.in)
	}
}

func TestHex(t *testing.T) {
	assert.Equal(t, "0x0a", Hex('\n'))
	assert.Equal(t, "0xff", Hex(0xff))
}

func TestFileFlushesEveryByte(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	s, err := Create(dir, 1234)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(dir, "receiver-1234.out"), s.Path())

	for _, b := range []byte("AB") {
		require.NoError(t, s.WriteByte(b))
		got, err := os.ReadFile(s.Path())
		require.NoError(t, err)
		assert.Equal(t, b, got[len(got)-1], "byte visible before Close")
	}
	assert.Equal(t, int64(2), s.Written())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.WriteByte('C'), os.ErrClosed)

	got, err := os.ReadFile(filepath.Join(dir, FileName(1234)))
	require.NoError(t, err)
	assert.Equal(t, "AB", string(got))
}

func TestCreateTruncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName(7)), []byte("stale"), 0o644))

	s, err := Create(dir, 7)
	require.NoError(t, err)
	require.NoError(t, s.WriteByte('x'))
	require.NoError(t, s.Close())

	got, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := Writer{W: &buf}
	require.NoError(t, w.WriteByte('h'))
	require.NoError(t, w.WriteByte('i'))
	assert.Equal(t, "hi", buf.String())
}
