package dnswire

import (
	"encoding/binary"
	"fmt"
)

// Wire format constants.
const (
	// HeaderSize is the fixed size of the DNS message header.
	HeaderSize = 12

	// MaxLabelLength is the maximum length of a single label.
	MaxLabelLength = 63

	// MaxNameLength is the maximum uncompressed length of a domain name
	// on the wire, terminating zero included.
	MaxNameLength = 255
)

// Header flag masks. The flags word packs eight sub-fields; use the
// accessor methods for shifted values.
const (
	FlagQR     uint16 = 0x8000
	FlagOpcode uint16 = 0x7800
	FlagAA     uint16 = 0x0400
	FlagTC     uint16 = 0x0200
	FlagRD     uint16 = 0x0100
	FlagRA     uint16 = 0x0080
	FlagZ      uint16 = 0x0070
	FlagRCode  uint16 = 0x000F
)

// Header is the fixed 12-byte DNS message header: six 16-bit fields in
// network byte order.
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// QR reports whether the message is a response.
func (h *Header) QR() bool {
	return h.Flags&FlagQR != 0
}

// Opcode returns the 4-bit operation code.
func (h *Header) Opcode() uint8 {
	return uint8((h.Flags & FlagOpcode) >> 11)
}

// AA reports whether the responding server is authoritative.
func (h *Header) AA() bool {
	return h.Flags&FlagAA != 0
}

// TC reports whether the message was truncated by the transport.
func (h *Header) TC() bool {
	return h.Flags&FlagTC != 0
}

// RD reports whether recursion was desired.
func (h *Header) RD() bool {
	return h.Flags&FlagRD != 0
}

// RA reports whether recursion is available.
func (h *Header) RA() bool {
	return h.Flags&FlagRA != 0
}

// Z returns the reserved bits.
func (h *Header) Z() uint8 {
	return uint8((h.Flags & FlagZ) >> 4)
}

// RCode returns the 4-bit response code.
func (h *Header) RCode() uint8 {
	return uint8(h.Flags & FlagRCode)
}

// Question is a single entry of the question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// ResourceRecord is a single record of the answer, authority, or
// additional sections. Data holds the raw RDATA; its length is the wire
// RDLENGTH.
type ResourceRecord struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	Data  []byte
}

// Message is a decoded DNS message. After a successful Decode each section
// length equals the corresponding header count.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// Decode parses a single DNS payload. The input buffer is not retained;
// record data is copied. Trailing bytes after the last record are ignored
// (some transports pad).
func Decode(buf []byte) (*Message, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes for header", ErrTruncated, len(buf))
	}

	msg := &Message{
		Header: Header{
			ID:      binary.BigEndian.Uint16(buf[0:2]),
			Flags:   binary.BigEndian.Uint16(buf[2:4]),
			QDCount: binary.BigEndian.Uint16(buf[4:6]),
			ANCount: binary.BigEndian.Uint16(buf[6:8]),
			NSCount: binary.BigEndian.Uint16(buf[8:10]),
			ARCount: binary.BigEndian.Uint16(buf[10:12]),
		},
	}

	offset := HeaderSize

	msg.Questions = make([]Question, 0, msg.Header.QDCount)
	for i := uint16(0); i < msg.Header.QDCount; i++ {
		q, next, err := decodeQuestion(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, q)
		offset = next
	}

	sections := []struct {
		count uint16
		dst   *[]ResourceRecord
		name  string
	}{
		{msg.Header.ANCount, &msg.Answers, "answer"},
		{msg.Header.NSCount, &msg.Authorities, "authority"},
		{msg.Header.ARCount, &msg.Additionals, "additional"},
	}
	for _, sec := range sections {
		*sec.dst = make([]ResourceRecord, 0, sec.count)
		for i := uint16(0); i < sec.count; i++ {
			rr, next, err := decodeRecord(buf, offset)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %d: %w", ErrMalformedRR, sec.name, i, err)
			}
			*sec.dst = append(*sec.dst, rr)
			offset = next
		}
	}

	return msg, nil
}

func decodeQuestion(buf []byte, offset int) (Question, int, error) {
	name, next, err := decodeName(buf, offset)
	if err != nil {
		return Question{}, 0, err
	}
	if next+4 > len(buf) {
		return Question{}, 0, fmt.Errorf("%w: question fixed fields at %d", ErrTruncated, next)
	}
	q := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(buf[next : next+2]),
		Class: binary.BigEndian.Uint16(buf[next+2 : next+4]),
	}
	return q, next + 4, nil
}

func decodeRecord(buf []byte, offset int) (ResourceRecord, int, error) {
	name, next, err := decodeName(buf, offset)
	if err != nil {
		return ResourceRecord{}, 0, err
	}
	if next+10 > len(buf) {
		return ResourceRecord{}, 0, fmt.Errorf("%w: record fixed fields at %d", ErrTruncated, next)
	}
	rr := ResourceRecord{
		Name:  name,
		Type:  binary.BigEndian.Uint16(buf[next : next+2]),
		Class: binary.BigEndian.Uint16(buf[next+2 : next+4]),
		TTL:   binary.BigEndian.Uint32(buf[next+4 : next+8]),
	}
	rdlength := int(binary.BigEndian.Uint16(buf[next+8 : next+10]))
	next += 10

	if next+rdlength > len(buf) {
		return ResourceRecord{}, 0, fmt.Errorf("%w: %d rdata bytes at %d", ErrTruncated, rdlength, next)
	}
	rr.Data = make([]byte, rdlength)
	copy(rr.Data, buf[next:next+rdlength])

	return rr, next + rdlength, nil
}
