// Package errors defines the RESP-facing error values the command
// compiler and handler return, distinct from plain Go errors returned for
// framing/IO failures.
package errors

import "fmt"

// RedisError represents a Redis protocol error reply.
type RedisError struct {
	Code    string
	Message string
}

func (e RedisError) Error() string {
	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// Common errors
var (
	ErrSyntaxError = RedisError{Code: "ERR", Message: "syntax error"}
	ErrNotMaster   = RedisError{Code: "ERR", Message: "WAIT is not valid when enabled as a replica"}
)

// WrongNumberOfArguments returns an error for incorrect argument count.
func WrongNumberOfArguments(command string) RedisError {
	return RedisError{
		Code:    "ERR",
		Message: fmt.Sprintf("wrong number of arguments for '%s' command", command),
	}
}

// UnknownCommand returns an error for unknown commands.
func UnknownCommand(command string) RedisError {
	return RedisError{
		Code:    "ERR",
		Message: fmt.Sprintf("unknown command '%s'", command),
	}
}

// InvalidExpireTime returns an error for invalid expiration times.
func InvalidExpireTime(command string) RedisError {
	return RedisError{
		Code:    "ERR",
		Message: fmt.Sprintf("invalid expire time in '%s' command", command),
	}
}
