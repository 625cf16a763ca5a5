/**
 * Tenta DNS Server
 *
 *    Copyright 2017 Tenta, LLC
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
 * For any questions, please contact developer@tenta.io
 *
 * buffer.go: Fixed 512-byte cursored packet buffer with name compression
 */

// Package wire implements the DNS wire-format codec: a fixed-size
// cursored packet buffer (this file), and the header/question/record/
// packet encode-decode built on top of it (header.go, record.go,
// packet.go).
package wire

import (
	"github.com/tenta-browser/dns-recursor/rerrors"
)

// BufSize is the maximum size of a DNS message this resolver will read
// or write; the resolver never negotiates EDNS(0) buffer sizes, so every
// request and response is bound to the classic 512-byte UDP payload.
const BufSize = 512

// maxJumps is the hard cap on name-compression pointer jumps a single
// readQName call will follow. It is a safety invariant, not a tunable:
// a crafted packet with a pointer cycle must fail instead of looping.
const maxJumps = 5

// Buffer is a fixed 512-byte array with a read/write cursor. Every
// incoming and outgoing packet owns one; buffers are never shared or
// aliased across goroutines, only handed off by move.
type Buffer struct {
	buf [BufSize]byte
	pos int
}

// NewBuffer returns an empty, zeroed buffer positioned at 0.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFrom copies up to BufSize bytes of data into a fresh buffer,
// positioned at 0, ready for reading.
func NewBufferFrom(data []byte) *Buffer {
	b := &Buffer{}
	n := copy(b.buf[:], data)
	_ = n
	return b
}

// Pos returns the current cursor position.
func (b *Buffer) Pos() int { return b.pos }

// Bytes returns the portion of the buffer written so far ([0:Pos())).
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.pos]
}

// Step advances the cursor by n without reading or writing anything.
func (b *Buffer) Step(n int) error {
	if b.pos+n > BufSize || b.pos+n < 0 {
		return &rerrors.WireError{Op: "step", Err: rerrors.ErrOutOfBounds}
	}
	b.pos += n
	return nil
}

// Seek moves the cursor to an absolute position.
func (b *Buffer) Seek(p int) error {
	if p < 0 || p > BufSize {
		return &rerrors.WireError{Op: "seek", Err: rerrors.ErrOutOfBounds}
	}
	b.pos = p
	return nil
}

// ReadU8 reads one byte and advances the cursor.
func (b *Buffer) ReadU8() (uint8, error) {
	if b.pos >= BufSize {
		return 0, &rerrors.WireError{Op: "read_u8", Err: rerrors.ErrOutOfBounds}
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

// ReadU16 reads two bytes big-endian and advances the cursor.
func (b *Buffer) ReadU16() (uint16, error) {
	hi, err := b.ReadU8()
	if err != nil {
		return 0, err
	}
	lo, err := b.ReadU8()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadU32 reads four bytes big-endian and advances the cursor.
func (b *Buffer) ReadU32() (uint32, error) {
	hi, err := b.ReadU16()
	if err != nil {
		return 0, err
	}
	lo, err := b.ReadU16()
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// GetU8 returns the byte at an absolute position without moving the cursor.
func (b *Buffer) GetU8(p int) (uint8, error) {
	if p < 0 || p >= BufSize {
		return 0, &rerrors.WireError{Op: "get_u8", Err: rerrors.ErrOutOfBounds}
	}
	return b.buf[p], nil
}

// GetRange returns a copy of length bytes starting at start, without
// moving the cursor.
func (b *Buffer) GetRange(start, length int) ([]byte, error) {
	if start < 0 || length < 0 || start+length > BufSize {
		return nil, &rerrors.WireError{Op: "get_range", Err: rerrors.ErrOutOfBounds}
	}
	out := make([]byte, length)
	copy(out, b.buf[start:start+length])
	return out, nil
}

// WriteU8 writes one byte and advances the cursor.
func (b *Buffer) WriteU8(v uint8) error {
	if b.pos >= BufSize {
		return &rerrors.WireError{Op: "write_u8", Err: rerrors.ErrOutOfBounds}
	}
	b.buf[b.pos] = v
	b.pos++
	return nil
}

// WriteU16 writes two bytes big-endian and advances the cursor.
func (b *Buffer) WriteU16(v uint16) error {
	if err := b.WriteU8(uint8(v >> 8)); err != nil {
		return err
	}
	return b.WriteU8(uint8(v & 0xFF))
}

// WriteU32 writes four bytes big-endian and advances the cursor.
func (b *Buffer) WriteU32(v uint32) error {
	if err := b.WriteU16(uint16(v >> 16)); err != nil {
		return err
	}
	return b.WriteU16(uint16(v & 0xFFFF))
}

// SetU8 back-patches a single byte at an absolute position.
func (b *Buffer) SetU8(p int, v uint8) error {
	if p < 0 || p >= BufSize {
		return &rerrors.WireError{Op: "set_u8", Err: rerrors.ErrOutOfBounds}
	}
	b.buf[p] = v
	return nil
}

// SetU16 back-patches two bytes big-endian at an absolute position; used
// to fill in a record's data-length field once its body has been written.
func (b *Buffer) SetU16(p int, v uint16) error {
	if err := b.SetU8(p, uint8(v>>8)); err != nil {
		return err
	}
	return b.SetU8(p+1, uint8(v&0xFF))
}

// WriteQName encodes a dot-separated name as length-prefixed labels
// followed by a zero-length terminator label. It never emits a
// back-reference pointer -- only readers decode compression, matching
// the wire packets this resolver itself constructs (outbound queries and
// client responses), which are always far smaller than 512 bytes.
func (b *Buffer) WriteQName(name string) error {
	if name == "." || name == "" {
		return b.WriteU8(0)
	}
	labels := splitLabels(name)
	for _, label := range labels {
		if len(label) == 0 {
			continue
		}
		if len(label) > 63 {
			return &rerrors.WireError{Op: "write_qname", Err: rerrors.ErrLabelTooLong}
		}
		if err := b.WriteU8(uint8(len(label))); err != nil {
			return err
		}
		for i := 0; i < len(label); i++ {
			if err := b.WriteU8(label[i]); err != nil {
				return err
			}
		}
	}
	return b.WriteU8(0)
}

func splitLabels(name string) []string {
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	if start < len(name) {
		labels = append(labels, name[start:])
	}
	return labels
}

// ReadQName decodes a name starting at the cursor, following compression
// pointers as needed, and appends it to out. It tolerates at most five
// pointer jumps; a sixth jump is a hard error rather than an infinite loop.
//
// On the first jump encountered, the "external" cursor (b.pos) is
// advanced past the two-byte pointer immediately, so that whatever comes
// after the name in the enclosing message is read from the right place;
// name resolution itself continues at the jumped-to position using a
// local cursor that never affects b.pos again.
func (b *Buffer) ReadQName(out *[]byte) error {
	localPos := b.pos
	jumped := false
	jumps := 0
	delim := ""

	for {
		lenByte, err := b.GetU8(localPos)
		if err != nil {
			return err
		}

		if lenByte&0xC0 == 0xC0 {
			if jumps >= maxJumps {
				return &rerrors.WireError{Op: "read_qname", Err: rerrors.ErrJumpLimitExceeded}
			}
			if !jumped {
				if err := b.Seek(localPos + 2); err != nil {
					return err
				}
				jumped = true
			}
			nextByte, err := b.GetU8(localPos + 1)
			if err != nil {
				return err
			}
			offset := (uint16(lenByte^0xC0) << 8) | uint16(nextByte)
			localPos = int(offset)
			jumps++
			continue
		}

		localPos++
		if lenByte == 0 {
			break
		}

		chunk, err := b.GetRange(localPos, int(lenByte))
		if err != nil {
			return err
		}
		*out = append(*out, delim...)
		*out = append(*out, chunk...)
		delim = "."
		localPos += int(lenByte)
	}

	if !jumped {
		if err := b.Seek(localPos); err != nil {
			return err
		}
	}
	return nil
}
