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
 * header.go: The 12-byte DNS message header
 */

package wire

import "fmt"

// ResultCode is the low nibble of a response header's second flag byte.
type ResultCode uint8

const (
	NOERROR  ResultCode = 0
	FORMERR  ResultCode = 1
	SERVFAIL ResultCode = 2
	NXDOMAIN ResultCode = 3
	NOTIMP   ResultCode = 4
	REFUSED  ResultCode = 5
)

func (r ResultCode) String() string {
	switch r {
	case NOERROR:
		return "NOERROR"
	case FORMERR:
		return "FORMERR"
	case SERVFAIL:
		return "SERVFAIL"
	case NXDOMAIN:
		return "NXDOMAIN"
	case NOTIMP:
		return "NOTIMP"
	case REFUSED:
		return "REFUSED"
	default:
		return fmt.Sprintf("RCODE(%d)", uint8(r))
	}
}

func resultCodeFromNum(n uint8) ResultCode {
	switch n & 0x0F {
	case 1:
		return FORMERR
	case 2:
		return SERVFAIL
	case 3:
		return NXDOMAIN
	case 4:
		return NOTIMP
	case 5:
		return REFUSED
	default:
		return NOERROR
	}
}

// Header is the 12-byte fixed preamble of every DNS message.
type Header struct {
	ID uint16

	RecursionDesired    bool
	TruncatedMessage    bool
	AuthoritativeAnswer bool
	Opcode              uint8
	Response            bool

	Rescode            ResultCode
	CheckingDisabled   bool
	AuthedData         bool
	Z                  bool
	RecursionAvailable bool

	Questions            uint16
	Answers              uint16
	AuthoritativeEntries uint16
	ResourceEntries      uint16
}

// Read decodes a 12-byte header starting at the buffer's cursor.
func (h *Header) Read(buf *Buffer) error {
	id, err := buf.ReadU16()
	if err != nil {
		return err
	}
	h.ID = id

	flags, err := buf.ReadU16()
	if err != nil {
		return err
	}
	a := uint8(flags >> 8)
	b := uint8(flags & 0xFF)

	h.RecursionDesired = a&(1<<0) > 0
	h.TruncatedMessage = a&(1<<1) > 0
	h.AuthoritativeAnswer = a&(1<<2) > 0
	h.Opcode = (a >> 3) & 0x0F
	h.Response = a&(1<<7) > 0

	h.Rescode = resultCodeFromNum(b & 0x0F)
	h.CheckingDisabled = b&(1<<4) > 0
	h.AuthedData = b&(1<<5) > 0
	h.Z = b&(1<<6) > 0
	h.RecursionAvailable = b&(1<<7) > 0

	if h.Questions, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.Answers, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.AuthoritativeEntries, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.ResourceEntries, err = buf.ReadU16(); err != nil {
		return err
	}
	return nil
}

// Write encodes the header to the buffer's cursor.
func (h *Header) Write(buf *Buffer) error {
	if err := buf.WriteU16(h.ID); err != nil {
		return err
	}

	a := b2u8(h.RecursionDesired) |
		b2u8(h.TruncatedMessage)<<1 |
		b2u8(h.AuthoritativeAnswer)<<2 |
		h.Opcode<<3 |
		b2u8(h.Response)<<7
	if err := buf.WriteU8(a); err != nil {
		return err
	}

	b := uint8(h.Rescode) |
		b2u8(h.CheckingDisabled)<<4 |
		b2u8(h.AuthedData)<<5 |
		b2u8(h.Z)<<6 |
		b2u8(h.RecursionAvailable)<<7
	if err := buf.WriteU8(b); err != nil {
		return err
	}

	if err := buf.WriteU16(h.Questions); err != nil {
		return err
	}
	if err := buf.WriteU16(h.Answers); err != nil {
		return err
	}
	if err := buf.WriteU16(h.AuthoritativeEntries); err != nil {
		return err
	}
	return buf.WriteU16(h.ResourceEntries)
}

func b2u8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func (h Header) String() string {
	return fmt.Sprintf("id=%d qr=%v opcode=%d rcode=%s qd=%d an=%d ns=%d ar=%d",
		h.ID, h.Response, h.Opcode, h.Rescode, h.Questions, h.Answers, h.AuthoritativeEntries, h.ResourceEntries)
}
