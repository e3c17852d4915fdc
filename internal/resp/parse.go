package resp

import "errors"

// ErrIncomplete means the buffer holds a prefix of a valid frame; the
// caller must read more bytes and retry with the same (or longer) buffer.
var ErrIncomplete = errors.New("resp: incomplete frame")

// ErrInvalid means the buffer cannot be a prefix of any valid frame; the
// caller must close the connection.
var ErrInvalid = errors.New("resp: invalid frame")

// findCRLF returns the index of the first "\r\n" in b, or -1.
func findCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func parseUint(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := false
	if b[0] == '-' {
		neg = true
		b = b[1:]
		if len(b) == 0 {
			return 0, false
		}
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// Parse decodes the single next frame at the head of buf. On success it
// returns the frame and the number of bytes consumed. On a short buffer it
// returns ErrIncomplete; on malformed input it returns ErrInvalid.
func Parse(buf []byte) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, ErrIncomplete
	}

	switch Type(buf[0]) {
	case SimpleString:
		return parseLineValue(buf, SimpleString)
	case Error:
		return parseLineValue(buf, Error)
	case Integer:
		return parseInteger(buf)
	case BulkString:
		return parseBulkString(buf)
	case Array:
		return parseArray(buf)
	default:
		return Value{}, 0, ErrInvalid
	}
}

func parseLineValue(buf []byte, t Type) (Value, int, error) {
	idx := findCRLF(buf[1:])
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	idx++ // adjust back into buf's index space
	return Value{Type: t, Str: string(buf[1:idx])}, idx + 2, nil
}

func parseInteger(buf []byte) (Value, int, error) {
	idx := findCRLF(buf[1:])
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	idx++
	n, ok := parseUint(buf[1:idx])
	if !ok {
		return Value{}, 0, ErrInvalid
	}
	return Value{Type: Integer, Int: n}, idx + 2, nil
}

func parseBulkString(buf []byte) (Value, int, error) {
	idx := findCRLF(buf[1:])
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	idx++
	n, ok := parseUint(buf[1:idx])
	if !ok {
		return Value{}, 0, ErrInvalid
	}
	header := idx + 2

	if n == -1 {
		return Value{Type: BulkString, IsNull: true}, header, nil
	}
	if n < 0 {
		return Value{}, 0, ErrInvalid
	}

	total := header + int(n) + 2
	if len(buf) < total {
		return Value{}, 0, ErrIncomplete
	}
	if buf[header+int(n)] != '\r' || buf[header+int(n)+1] != '\n' {
		return Value{}, 0, ErrInvalid
	}

	data := make([]byte, n)
	copy(data, buf[header:header+int(n)])
	return Value{Type: BulkString, Bulk: data}, total, nil
}

func parseArray(buf []byte) (Value, int, error) {
	idx := findCRLF(buf[1:])
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	idx++
	n, ok := parseUint(buf[1:idx])
	if !ok {
		return Value{}, 0, ErrInvalid
	}
	pos := idx + 2

	if n == -1 {
		return Value{Type: Array, IsNull: true}, pos, nil
	}
	if n < 0 {
		return Value{}, 0, ErrInvalid
	}

	children := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		child, consumed, err := Parse(buf[pos:])
		if err != nil {
			return Value{}, 0, err
		}
		children = append(children, child)
		pos += consumed
	}
	return Value{Type: Array, Array: children}, pos, nil
}

// ParseRDBPayload decodes the out-of-spec "$<len>\r\n<len bytes>" framing
// used to bootstrap a replica with the master's RDB snapshot. Unlike a
// bulk string, there is no trailing CRLF, so it must not be parsed with
// Parse/parseBulkString.
func ParseRDBPayload(buf []byte) ([]byte, int, error) {
	if len(buf) == 0 || buf[0] != '$' {
		return nil, 0, ErrInvalid
	}
	idx := findCRLF(buf[1:])
	if idx == -1 {
		return nil, 0, ErrIncomplete
	}
	idx++
	n, ok := parseUint(buf[1:idx])
	if !ok || n < 0 {
		return nil, 0, ErrInvalid
	}
	header := idx + 2
	total := header + int(n)
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}
	data := make([]byte, n)
	copy(data, buf[header:total])
	return data, total, nil
}
