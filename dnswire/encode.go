package dnswire

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes the message without name compression. Section counts
// are taken from the section slices, not from the header fields, so a
// decoded message re-encodes consistently after edits.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Questions) > 0xFFFF || len(m.Answers) > 0xFFFF ||
		len(m.Authorities) > 0xFFFF || len(m.Additionals) > 0xFFFF {
		return nil, fmt.Errorf("%w: section too large", ErrMalformedRR)
	}

	buf := make([]byte, HeaderSize, HeaderSize+64)
	binary.BigEndian.PutUint16(buf[0:2], m.Header.ID)
	binary.BigEndian.PutUint16(buf[2:4], m.Header.Flags)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(m.Questions)))
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(m.Answers)))
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(m.Authorities)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(m.Additionals)))

	var err error
	for _, q := range m.Questions {
		if buf, err = appendName(buf, q.Name); err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint16(buf, q.Type)
		buf = binary.BigEndian.AppendUint16(buf, q.Class)
	}

	for _, section := range [][]ResourceRecord{m.Answers, m.Authorities, m.Additionals} {
		for _, rr := range section {
			if len(rr.Data) > 0xFFFF {
				return nil, fmt.Errorf("%w: rdata longer than 65535 bytes", ErrMalformedRR)
			}
			if buf, err = appendName(buf, rr.Name); err != nil {
				return nil, err
			}
			buf = binary.BigEndian.AppendUint16(buf, rr.Type)
			buf = binary.BigEndian.AppendUint16(buf, rr.Class)
			buf = binary.BigEndian.AppendUint32(buf, rr.TTL)
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(rr.Data)))
			buf = append(buf, rr.Data...)
		}
	}

	return buf, nil
}
