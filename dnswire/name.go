package dnswire

import (
	"fmt"
	"strings"
)

// Label type discriminators: the top two bits of a length byte.
const (
	labelTypeMask   = 0xC0
	labelTypePlain  = 0x00
	labelTypePtr    = 0xC0
	pointerOffMask  = 0x3F
	maxPointerJumps = 127
)

// decodeName reads a possibly compressed domain name starting at offset.
// It returns the dotted name and the offset of the first byte after the
// name at its original position: once the first compression pointer is
// followed, the outer cursor stops advancing.
//
// A pointer must target an offset strictly before its own position. That
// rules out self and forward references, so every jump moves strictly
// backwards and decoding terminates; the jump counter is kept as a second
// guard only.
func decodeName(buf []byte, offset int) (string, int, error) {
	var b strings.Builder
	cursor := offset
	advance := 0
	advanced := false
	jumps := 0
	wireLen := 0 // uncompressed length, terminator included

	for {
		if cursor >= len(buf) {
			return "", 0, fmt.Errorf("%w: name at %d runs past buffer", ErrTruncated, offset)
		}

		c := buf[cursor]
		switch {
		case c == 0:
			wireLen++
			if wireLen > MaxNameLength {
				return "", 0, fmt.Errorf("%w: name at %d exceeds %d bytes", ErrMalformedName, offset, MaxNameLength)
			}
			if !advanced {
				advance = cursor + 1
			}
			return b.String(), advance, nil

		case c&labelTypeMask == labelTypePtr:
			if cursor+2 > len(buf) {
				return "", 0, fmt.Errorf("%w: pointer at %d", ErrTruncated, cursor)
			}
			target := int(c&pointerOffMask)<<8 | int(buf[cursor+1])
			if target >= cursor {
				return "", 0, fmt.Errorf("%w: pointer at %d targets %d", ErrMalformedName, cursor, target)
			}
			if !advanced {
				advance = cursor + 2
				advanced = true
			}
			if jumps++; jumps > maxPointerJumps {
				return "", 0, fmt.Errorf("%w: more than %d pointer jumps", ErrMalformedName, maxPointerJumps)
			}
			cursor = target

		case c&labelTypeMask == labelTypePlain:
			// Top bits 00 bound the length to MaxLabelLength already.
			l := int(c)
			if cursor+1+l > len(buf) {
				return "", 0, fmt.Errorf("%w: label at %d", ErrTruncated, cursor)
			}
			wireLen += 1 + l
			if wireLen+1 > MaxNameLength {
				return "", 0, fmt.Errorf("%w: name at %d exceeds %d bytes", ErrMalformedName, offset, MaxNameLength)
			}
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			// Labels are opaque bytes; case and non-printables preserved.
			b.Write(buf[cursor+1 : cursor+1+l])
			cursor += 1 + l

		default:
			return "", 0, fmt.Errorf("%w: prefix 0x%02X at %d", ErrReserved, c&labelTypeMask, cursor)
		}
	}
}

// appendName writes a name in uncompressed wire form. Used by Encode; the
// encoder never emits compression pointers.
func appendName(dst []byte, name string) ([]byte, error) {
	if name == "" {
		return append(dst, 0), nil
	}

	wireLen := 1
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 {
			return nil, fmt.Errorf("%w: empty label in %q", ErrMalformedName, name)
		}
		if len(label) > MaxLabelLength {
			return nil, fmt.Errorf("%w: label %q longer than %d bytes", ErrMalformedName, label, MaxLabelLength)
		}
		wireLen += 1 + len(label)
		if wireLen > MaxNameLength {
			return nil, fmt.Errorf("%w: name %q exceeds %d bytes", ErrMalformedName, name, MaxNameLength)
		}
		dst = append(dst, byte(len(label)))
		dst = append(dst, label...)
	}
	return append(dst, 0), nil
}
