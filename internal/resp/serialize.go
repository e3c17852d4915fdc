package resp

import "strconv"

// Serialize encodes v to its wire form. It is the exact inverse of Parse:
// Parse(Serialize(v)) == (v, len(Serialize(v)), nil) for every well-formed
// Value.
func (v Value) Serialize() []byte {
	switch v.Type {
	case SimpleString:
		return serializeLine('+', v.Str)
	case Error:
		return serializeLine('-', v.Str)
	case Integer:
		return serializeLine(':', strconv.FormatInt(v.Int, 10))
	case BulkString:
		return serializeBulk(v)
	case Array:
		return serializeArray(v)
	default:
		return nil
	}
}

func serializeLine(prefix byte, s string) []byte {
	out := make([]byte, 0, len(s)+3)
	out = append(out, prefix)
	out = append(out, s...)
	out = append(out, '\r', '\n')
	return out
}

func serializeBulk(v Value) []byte {
	if v.IsNull {
		return []byte("$-1\r\n")
	}
	out := make([]byte, 0, len(v.Bulk)+16)
	out = append(out, '$')
	out = strconv.AppendInt(out, int64(len(v.Bulk)), 10)
	out = append(out, '\r', '\n')
	out = append(out, v.Bulk...)
	out = append(out, '\r', '\n')
	return out
}

func serializeArray(v Value) []byte {
	if v.IsNull {
		return []byte("*-1\r\n")
	}
	out := make([]byte, 0, 16)
	out = append(out, '*')
	out = strconv.AppendInt(out, int64(len(v.Array)), 10)
	out = append(out, '\r', '\n')
	for _, child := range v.Array {
		out = append(out, child.Serialize()...)
	}
	return out
}

// Constructors mirroring the RESP frame shapes.

func SimpleStringValue(s string) Value { return Value{Type: SimpleString, Str: s} }
func ErrorValue(s string) Value        { return Value{Type: Error, Str: s} }
func IntegerValue(n int64) Value       { return Value{Type: Integer, Int: n} }

func BulkStringValue(b []byte) Value {
	return Value{Type: BulkString, Bulk: b}
}

func NullBulkString() Value {
	return Value{Type: BulkString, IsNull: true}
}

func ArrayValue(values ...Value) Value {
	return Value{Type: Array, Array: values}
}

// BulkStringArray builds an Array of BulkStrings from plain strings, the
// shape every RESP command request/response in this codebase takes.
func BulkStringArray(parts ...string) Value {
	children := make([]Value, len(parts))
	for i, p := range parts {
		children[i] = BulkStringValue([]byte(p))
	}
	return ArrayValue(children...)
}

// OK returns the standard "+OK\r\n" reply.
func OK() Value { return SimpleStringValue("OK") }

// Pong returns the standard "+PONG\r\n" reply.
func Pong() Value { return SimpleStringValue("PONG") }
