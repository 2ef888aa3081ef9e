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

// Package codec transforms payload bytes with a single-byte key. The
// transform is a plain XOR: it is self-inverse and offers no secrecy.
package codec

// Key is the single-byte key shared by emitters and receivers.
type Key byte

// Encode transforms b for storage in a slot.
func Encode(b byte, k Key) byte {
	return b ^ byte(k)
}

// Decode reverses Encode. XOR is its own inverse.
func Decode(b byte, k Key) byte {
	return Encode(b, k)
}

// EncodeAll transforms p in place and returns it.
func EncodeAll(p []byte, k Key) []byte {
	for i := range p {
		p[i] ^= byte(k)
	}
	return p
}
