// Package rdb handles the one RDB-shaped thing this server does: emit and
// recognize the fixed empty snapshot exchanged during a full resync. RDB
// file format parsing is out of scope — the teacher's on-disk loader in
// this package is replaced entirely, since no data type in this server
// is ever booted from a snapshot on disk.
package rdb

import (
	"encoding/base64"
	"fmt"
)

// emptyRDBBase64 is the fixed empty-RDB snapshot emitted verbatim on
// every full resync.
const emptyRDBBase64 = "UkVESVMwMDEx+glyZWRpcy12ZXIFNy4yLjD6CnJlZGlzLWJpdHPAQPoFY3RpbWXCbQi8ZfoIdXNlZC1tZW3CsMQQAPoIYW9mLWJhc2XAAP/wbjv+wP9aog=="

// Empty decodes and returns the fixed empty-RDB snapshot bytes.
func Empty() []byte {
	b, err := base64.StdEncoding.DecodeString(emptyRDBBase64)
	if err != nil {
		panic("rdb: embedded empty snapshot constant is malformed: " + err.Error())
	}
	return b
}

// Frame wraps payload in the RDB bulk framing: "$<len>\r\n<len bytes>"
// with no trailing CRLF, distinct from a RESP bulk string.
func Frame(payload []byte) []byte {
	header := fmt.Sprintf("$%d\r\n", len(payload))
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

// EmptySnapshot returns the fixed empty RDB snapshot already framed for
// transmission on a PSYNC full resync.
func EmptySnapshot() []byte {
	return Frame(Empty())
}
