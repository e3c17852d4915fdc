// Package resp implements a streaming codec for the RESP wire protocol:
// parsing operates on a byte slice and reports Incomplete rather than
// blocking, so callers can drive it from a growable connection buffer.
package resp

import "fmt"

// Type identifies the RESP frame kind by its leading wire byte.
type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
)

// Value is a tagged union over the RESP frame shapes. Only the field(s)
// matching Type are meaningful.
type Value struct {
	Type   Type
	Str    string  // SimpleString / Error text
	Bulk   []byte  // BulkString payload
	IsNull bool    // true for a null bulk string ($-1\r\n)
	Int    int64   // Integer value
	Array  []Value // Array children
}

func (v Value) String() string {
	switch v.Type {
	case SimpleString, Error:
		return v.Str
	case BulkString:
		if v.IsNull {
			return ""
		}
		return string(v.Bulk)
	case Integer:
		return fmt.Sprintf("%d", v.Int)
	case Array:
		return fmt.Sprintf("%v", v.Array)
	default:
		return ""
	}
}

// IsError reports whether v is a RESP error reply.
func (v Value) IsError() bool {
	return v.Type == Error
}

// CommandParts extracts the command name and argument bulk strings from an
// Array-of-BulkString frame. Every child must be a non-null bulk string.
func (v Value) CommandParts() (string, [][]byte, error) {
	if v.Type != Array || len(v.Array) == 0 {
		return "", nil, fmt.Errorf("resp: expected non-empty array frame")
	}
	for _, child := range v.Array {
		if child.Type != BulkString || child.IsNull {
			return "", nil, fmt.Errorf("resp: command frame must contain only bulk strings")
		}
	}
	name := string(v.Array[0].Bulk)
	args := make([][]byte, 0, len(v.Array)-1)
	for _, child := range v.Array[1:] {
		args = append(args, child.Bulk)
	}
	return name, args, nil
}
