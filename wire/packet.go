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
 * packet.go: Full message assembly, plus NS-referral / glue-record lookups
 */

package wire

import "strings"

// Question is a single entry in a message's question section.
type Question struct {
	Name  string
	Qtype QType
}

// Write encodes the question: its label-encoded name (never compressed),
// its type, and class (IN).
func (q *Question) Write(buf *Buffer) error {
	if err := buf.WriteQName(q.Name); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(q.Qtype)); err != nil {
		return err
	}
	return buf.WriteU16(classIN)
}

func readQuestion(buf *Buffer) (Question, error) {
	var nameBytes []byte
	if err := buf.ReadQName(&nameBytes); err != nil {
		return Question{}, err
	}
	qtype, err := buf.ReadU16()
	if err != nil {
		return Question{}, err
	}
	if _, err := buf.ReadU16(); err != nil { // class
		return Question{}, err
	}
	return Question{Name: string(nameBytes), Qtype: QType(qtype)}, nil
}

// Packet is a full DNS message: header, questions, and the three record
// sections (answers, authorities -- NS referrals, resources -- glue).
type Packet struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Resources   []Record
}

// NewPacket returns an empty packet with a zeroed header.
func NewPacket() *Packet {
	return &Packet{}
}

// FromBuffer decodes a full message starting at the buffer's cursor.
func FromBuffer(buf *Buffer) (*Packet, error) {
	p := &Packet{}
	if err := p.Header.Read(buf); err != nil {
		return nil, err
	}

	for i := uint16(0); i < p.Header.Questions; i++ {
		q, err := readQuestion(buf)
		if err != nil {
			return nil, err
		}
		p.Questions = append(p.Questions, q)
	}
	for i := uint16(0); i < p.Header.Answers; i++ {
		r, err := ReadRecord(buf)
		if err != nil {
			return nil, err
		}
		p.Answers = append(p.Answers, r)
	}
	for i := uint16(0); i < p.Header.AuthoritativeEntries; i++ {
		r, err := ReadRecord(buf)
		if err != nil {
			return nil, err
		}
		p.Authorities = append(p.Authorities, r)
	}
	for i := uint16(0); i < p.Header.ResourceEntries; i++ {
		r, err := ReadRecord(buf)
		if err != nil {
			return nil, err
		}
		p.Resources = append(p.Resources, r)
	}

	return p, nil
}

// Write recomputes the header's section counts from the slices actually
// present (UnknownRecords, which WriteRecord skips, are not counted),
// then serializes header, questions, and the three record sections in
// order.
func (p *Packet) Write(buf *Buffer) error {
	written := func(recs []Record) uint16 {
		n := 0
		for _, r := range recs {
			if _, unknown := r.(*UnknownRecord); !unknown {
				n++
			}
		}
		return uint16(n)
	}
	p.Header.Questions = uint16(len(p.Questions))
	p.Header.Answers = written(p.Answers)
	p.Header.AuthoritativeEntries = written(p.Authorities)
	p.Header.ResourceEntries = written(p.Resources)

	if err := p.Header.Write(buf); err != nil {
		return err
	}
	for i := range p.Questions {
		if err := p.Questions[i].Write(buf); err != nil {
			return err
		}
	}
	for _, r := range p.Answers {
		if err := WriteRecord(buf, r); err != nil {
			return err
		}
	}
	for _, r := range p.Authorities {
		if err := WriteRecord(buf, r); err != nil {
			return err
		}
	}
	for _, r := range p.Resources {
		if err := WriteRecord(buf, r); err != nil {
			return err
		}
	}
	return nil
}

// GetRandomA returns the address of the first A record in the answer
// section, if any.
func (p *Packet) GetRandomA() ([4]byte, bool) {
	for _, a := range p.Answers {
		if ar, ok := a.(*ARecord); ok {
			return ar.Addr, true
		}
	}
	return [4]byte{}, false
}

// SuffixMatch reports whether qname suffix-matches an NS domain: removing
// a trailing domain from qname leaves either the empty string or a
// string ending in ".". A trailing root "." on either name is ignored.
func SuffixMatch(qname, domain string) bool {
	qname = strings.TrimSuffix(qname, ".")
	domain = strings.TrimSuffix(domain, ".")
	if !strings.HasSuffix(qname, domain) {
		return false
	}
	rest := strings.TrimSuffix(qname, domain)
	return rest == "" || strings.HasSuffix(rest, ".")
}

// NSReferral is an NS referral's (domain, host) pair pulled from the
// authority section.
type NSReferral struct {
	Domain string
	Host   string
}

// GetNS returns every NS referral in the authority section whose domain
// is a suffix of qname.
func (p *Packet) GetNS(qname string) []NSReferral {
	var out []NSReferral
	for _, a := range p.Authorities {
		ns, ok := a.(*NSRecord)
		if !ok {
			continue
		}
		if SuffixMatch(qname, ns.Domain) {
			out = append(out, NSReferral{Domain: ns.Domain, Host: ns.Host})
		}
	}
	return out
}

func (p *Packet) getNS(qname string) []NSReferral { return p.GetNS(qname) }

// GlueA returns the additional-section A record matching host, if any
// -- the glue address for an NS referral's host name.
func (p *Packet) GlueA(host string) (*ARecord, bool) {
	for _, res := range p.Resources {
		if ar, ok := res.(*ARecord); ok && ar.Domain == host {
			return ar, true
		}
	}
	return nil, false
}

// GetResolvedNS returns the glue address for the first referred NS name
// that has a matching A record in the additional/resources section.
func (p *Packet) GetResolvedNS(qname string) ([4]byte, bool) {
	for _, pair := range p.getNS(qname) {
		for _, res := range p.Resources {
			ar, ok := res.(*ARecord)
			if !ok {
				continue
			}
			if ar.Domain == pair.Host {
				return ar.Addr, true
			}
		}
	}
	return [4]byte{}, false
}

// GetUnresolvedNS returns the hostname of the first referred NS lacking
// a glue record, so the caller can resolve it (qtype A) on its own.
func (p *Packet) GetUnresolvedNS(qname string) (string, bool) {
	for _, pair := range p.getNS(qname) {
		if _, glued := p.GlueA(pair.Host); !glued {
			return pair.Host, true
		}
	}
	return "", false
}
