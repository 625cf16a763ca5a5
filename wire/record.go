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
 * record.go: Resource record variants and their wire encode/decode
 */

package wire

import (
	"fmt"
	"net"

	"github.com/tenta-browser/dns-recursor/rerrors"
)

// QType is the 16-bit record-type selector on the wire.
type QType uint16

const (
	QTypeA     QType = 1
	QTypeNS    QType = 2
	QTypeCNAME QType = 5
	QTypeMX    QType = 15
	QTypeAAAA  QType = 28
	// QTypeUnknown is not a real wire value; it tags records whose wire
	// type this resolver doesn't model a dedicated body for.
	QTypeUnknown QType = 0
)

const classIN = 1

// RecordHeader is the preamble every record variant embeds: the owner
// name and its TTL. Type, class, and data length are wire-only details
// handled by ReadRecord/WriteRecord, not carried on the decoded value.
type RecordHeader struct {
	Domain string
	TTL    uint32
}

// Record is implemented by every decoded resource-record variant. It is
// a closed, tagged-sum style interface -- Type reports which concrete
// type a value holds instead of relying on an inheritance hierarchy.
type Record interface {
	Header() RecordHeader
	Type() QType
}

// ARecord is a 4-byte IPv4 address record.
type ARecord struct {
	RecordHeader
	Addr [4]byte
}

func (r *ARecord) Header() RecordHeader { return r.RecordHeader }
func (r *ARecord) Type() QType          { return QTypeA }
func (r *ARecord) IP() net.IP           { return net.IPv4(r.Addr[0], r.Addr[1], r.Addr[2], r.Addr[3]) }
func (r *ARecord) String() string {
	return fmt.Sprintf("A { domain: %s, addr: %s, ttl: %d }", r.Domain, r.IP(), r.TTL)
}

// NSRecord names an authoritative nameserver for Domain.
type NSRecord struct {
	RecordHeader
	Host string
}

func (r *NSRecord) Header() RecordHeader { return r.RecordHeader }
func (r *NSRecord) Type() QType          { return QTypeNS }
func (r *NSRecord) String() string {
	return fmt.Sprintf("NS { domain: %s, host: %s, ttl: %d }", r.Domain, r.Host, r.TTL)
}

// CNAMERecord aliases Domain to Host.
type CNAMERecord struct {
	RecordHeader
	Host string
}

func (r *CNAMERecord) Header() RecordHeader { return r.RecordHeader }
func (r *CNAMERecord) Type() QType          { return QTypeCNAME }
func (r *CNAMERecord) String() string {
	return fmt.Sprintf("CNAME { domain: %s, host: %s, ttl: %d }", r.Domain, r.Host, r.TTL)
}

// MXRecord is a mail-exchange record: a priority and a target host.
type MXRecord struct {
	RecordHeader
	Priority uint16
	Host     string
}

func (r *MXRecord) Header() RecordHeader { return r.RecordHeader }
func (r *MXRecord) Type() QType          { return QTypeMX }
func (r *MXRecord) String() string {
	return fmt.Sprintf("MX { domain: %s, priority: %d, host: %s, ttl: %d }", r.Domain, r.Priority, r.Host, r.TTL)
}

// AAAARecord is a 16-byte IPv6 address record.
type AAAARecord struct {
	RecordHeader
	Addr [16]byte
}

func (r *AAAARecord) Header() RecordHeader { return r.RecordHeader }
func (r *AAAARecord) Type() QType          { return QTypeAAAA }
func (r *AAAARecord) IP() net.IP           { return net.IP(r.Addr[:]) }
func (r *AAAARecord) String() string {
	return fmt.Sprintf("AAAA { domain: %s, addr: %s, ttl: %d }", r.Domain, r.IP(), r.TTL)
}

// UnknownRecord is any record type this resolver doesn't model a body
// for; its data is skipped on read and it produces no bytes on write.
type UnknownRecord struct {
	RecordHeader
	Qtype      uint16
	DataLength uint16
}

func (r *UnknownRecord) Header() RecordHeader { return r.RecordHeader }
func (r *UnknownRecord) Type() QType          { return QTypeUnknown }
func (r *UnknownRecord) String() string {
	return fmt.Sprintf("Unknown { domain: %s, qtype: %d, data_len: %d, ttl: %d }", r.Domain, r.Qtype, r.DataLength, r.TTL)
}

// ReadRecord decodes one resource record (common preamble plus
// type-specific body) at the buffer's cursor.
func ReadRecord(buf *Buffer) (Record, error) {
	var nameBytes []byte
	if err := buf.ReadQName(&nameBytes); err != nil {
		return nil, err
	}
	domain := string(nameBytes)

	qtypeNum, err := buf.ReadU16()
	if err != nil {
		return nil, err
	}
	if _, err := buf.ReadU16(); err != nil { // class, always IN on the wire
		return nil, err
	}
	ttl, err := buf.ReadU32()
	if err != nil {
		return nil, err
	}
	dataLen, err := buf.ReadU16()
	if err != nil {
		return nil, err
	}

	hdr := RecordHeader{Domain: domain, TTL: ttl}

	switch QType(qtypeNum) {
	case QTypeA:
		raw, err := buf.ReadU32()
		if err != nil {
			return nil, err
		}
		addr := [4]byte{byte(raw >> 24), byte(raw >> 16), byte(raw >> 8), byte(raw)}
		return &ARecord{RecordHeader: hdr, Addr: addr}, nil

	case QTypeNS:
		var hostBytes []byte
		if err := buf.ReadQName(&hostBytes); err != nil {
			return nil, err
		}
		return &NSRecord{RecordHeader: hdr, Host: string(hostBytes)}, nil

	case QTypeCNAME:
		var hostBytes []byte
		if err := buf.ReadQName(&hostBytes); err != nil {
			return nil, err
		}
		return &CNAMERecord{RecordHeader: hdr, Host: string(hostBytes)}, nil

	case QTypeMX:
		priority, err := buf.ReadU16()
		if err != nil {
			return nil, err
		}
		var hostBytes []byte
		if err := buf.ReadQName(&hostBytes); err != nil {
			return nil, err
		}
		return &MXRecord{RecordHeader: hdr, Priority: priority, Host: string(hostBytes)}, nil

	case QTypeAAAA:
		raw, err := buf.GetRange(buf.Pos(), 16)
		if err != nil {
			return nil, err
		}
		if err := buf.Step(16); err != nil {
			return nil, err
		}
		var addr [16]byte
		copy(addr[:], raw)
		return &AAAARecord{RecordHeader: hdr, Addr: addr}, nil

	default:
		if err := buf.Step(int(dataLen)); err != nil {
			return nil, err
		}
		return &UnknownRecord{RecordHeader: hdr, Qtype: qtypeNum, DataLength: dataLen}, nil
	}
}

// WriteRecord encodes one resource record's common preamble and body.
// Name-carrying bodies (NS, CNAME, MX) write a placeholder 16-bit data
// length, emit the body, then back-patch the true length. Unknown
// records are skipped entirely -- they produce no bytes.
func WriteRecord(buf *Buffer, rec Record) error {
	if _, ok := rec.(*UnknownRecord); ok {
		return nil
	}

	hdr := rec.Header()
	if err := buf.WriteQName(hdr.Domain); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(rec.Type())); err != nil {
		return err
	}
	if err := buf.WriteU16(classIN); err != nil {
		return err
	}
	if err := buf.WriteU32(hdr.TTL); err != nil {
		return err
	}

	switch v := rec.(type) {
	case *ARecord:
		if err := buf.WriteU16(4); err != nil {
			return err
		}
		for _, b := range v.Addr {
			if err := buf.WriteU8(b); err != nil {
				return err
			}
		}
		return nil

	case *AAAARecord:
		if err := buf.WriteU16(16); err != nil {
			return err
		}
		for _, b := range v.Addr {
			if err := buf.WriteU8(b); err != nil {
				return err
			}
		}
		return nil

	case *NSRecord:
		return writeNameBodyWithLenPatch(buf, v.Host)

	case *CNAMERecord:
		return writeNameBodyWithLenPatch(buf, v.Host)

	case *MXRecord:
		lenPos := buf.Pos()
		if err := buf.WriteU16(0); err != nil {
			return err
		}
		start := buf.Pos()
		if err := buf.WriteU16(v.Priority); err != nil {
			return err
		}
		if err := buf.WriteQName(v.Host); err != nil {
			return err
		}
		return buf.SetU16(lenPos, uint16(buf.Pos()-start))

	default:
		return &rerrors.WireError{Op: "write_record", Err: rerrors.ErrMalformedHeader}
	}
}

func writeNameBodyWithLenPatch(buf *Buffer, name string) error {
	lenPos := buf.Pos()
	if err := buf.WriteU16(0); err != nil {
		return err
	}
	start := buf.Pos()
	if err := buf.WriteQName(name); err != nil {
		return err
	}
	return buf.SetU16(lenPos, uint16(buf.Pos()-start))
}
