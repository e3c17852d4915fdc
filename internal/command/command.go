// Package command compiles a parsed RESP array into a typed Command,
// generalizing the teacher's internal/commands Command/Registry interface
// into a single arity-and-type table per spec.md §4.2, rather than one
// struct-per-command with a reflective registry.
package command

import (
	"strconv"
	"strings"

	"github.com/mathiusj/goredis-replica/internal/errors"
	"github.com/mathiusj/goredis-replica/internal/resp"
)

// Kind identifies which command was compiled.
type Kind int

const (
	Ping Kind = iota
	Echo
	Get
	Set
	Info
	ReplConf
	Psync
	Wait
)

// ReplConfKind identifies the REPLCONF subcommand.
type ReplConfKind int

const (
	ListeningPort ReplConfKind = iota
	Capa
	Ack
	GetAck
	Other
)

// Command is the tagged union produced by Compile. Only the fields
// relevant to Kind are populated.
type Command struct {
	Kind Kind

	// Echo, Get, Info(section)
	Arg string

	// Set
	Key    []byte
	Value  []byte
	Expiry *int64 // milliseconds, nil if no PX or EX option given

	// ReplConf
	ReplConfKind ReplConfKind
	ReplConfArg  string // listening-port, capa or getack argument; unused for Ack and Other
	AckOffset    uint64

	// Wait
	ReplicaCount int
	TimeoutMS    int64

	// Raw is the original command name, upper-cased, used for error
	// messages and log fields.
	Raw string
}

// Compile turns a parsed Array-of-BulkString frame into a Command, or
// returns an error for bad arity, bad argument typing, or an unknown
// command name — all of which are Invalid per spec.md §4.2.
func Compile(v resp.Value) (Command, error) {
	name, args, err := v.CommandParts()
	if err != nil {
		return Command{}, errors.ErrSyntaxError
	}

	upper := strings.ToUpper(name)
	switch upper {
	case "PING":
		if len(args) != 0 {
			return Command{}, errors.WrongNumberOfArguments("ping")
		}
		return Command{Kind: Ping, Raw: upper}, nil

	case "ECHO":
		if len(args) != 1 {
			return Command{}, errors.WrongNumberOfArguments("echo")
		}
		return Command{Kind: Echo, Arg: string(args[0]), Raw: upper}, nil

	case "GET":
		if len(args) != 1 {
			return Command{}, errors.WrongNumberOfArguments("get")
		}
		return Command{Kind: Get, Arg: string(args[0]), Raw: upper}, nil

	case "SET":
		return compileSet(args)

	case "INFO":
		if len(args) != 1 {
			return Command{}, errors.WrongNumberOfArguments("info")
		}
		return Command{Kind: Info, Arg: string(args[0]), Raw: upper}, nil

	case "REPLCONF":
		return compileReplConf(args)

	case "PSYNC":
		if len(args) != 2 {
			return Command{}, errors.WrongNumberOfArguments("psync")
		}
		return Command{Kind: Psync, Raw: upper}, nil

	case "WAIT":
		return compileWait(args)

	default:
		return Command{}, errors.UnknownCommand(name)
	}
}

func compileSet(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return Command{}, errors.WrongNumberOfArguments("set")
	}

	cmd := Command{Kind: Set, Key: args[0], Value: args[1], Raw: "SET"}

	rest := args[2:]
	for len(rest) > 0 {
		option := strings.ToUpper(string(rest[0]))
		switch option {
		case "PX":
			if len(rest) < 2 {
				return Command{}, errors.ErrSyntaxError
			}
			ms, err := strconv.ParseInt(string(rest[1]), 10, 64)
			if err != nil || ms <= 0 {
				return Command{}, errors.InvalidExpireTime("set")
			}
			cmd.Expiry = &ms
			rest = rest[2:]

		case "EX":
			if len(rest) < 2 {
				return Command{}, errors.ErrSyntaxError
			}
			seconds, err := strconv.ParseInt(string(rest[1]), 10, 64)
			if err != nil || seconds <= 0 {
				return Command{}, errors.InvalidExpireTime("set")
			}
			ms := seconds * 1000
			cmd.Expiry = &ms
			rest = rest[2:]

		default:
			return Command{}, errors.ErrSyntaxError
		}
	}

	return cmd, nil
}

func compileReplConf(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return Command{}, errors.WrongNumberOfArguments("replconf")
	}

	sub := strings.ToLower(string(args[0]))
	cmd := Command{Kind: ReplConf, Raw: "REPLCONF"}

	switch sub {
	case "listening-port":
		if len(args) < 2 {
			return Command{}, errors.WrongNumberOfArguments("replconf")
		}
		cmd.ReplConfKind = ListeningPort
		cmd.ReplConfArg = string(args[1])
	case "capa":
		if len(args) < 2 {
			return Command{}, errors.WrongNumberOfArguments("replconf")
		}
		cmd.ReplConfKind = Capa
		cmd.ReplConfArg = string(args[1])
	case "ack":
		if len(args) < 2 {
			return Command{}, errors.WrongNumberOfArguments("replconf")
		}
		offset, err := strconv.ParseUint(string(args[1]), 10, 64)
		if err != nil {
			return Command{}, errors.ErrSyntaxError
		}
		cmd.ReplConfKind = Ack
		cmd.AckOffset = offset
	case "getack":
		if len(args) < 2 {
			return Command{}, errors.WrongNumberOfArguments("replconf")
		}
		cmd.ReplConfKind = GetAck
		cmd.ReplConfArg = string(args[1])
	default:
		cmd.ReplConfKind = Other
	}

	return cmd, nil
}

func compileWait(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return Command{}, errors.WrongNumberOfArguments("wait")
	}

	count, err := strconv.Atoi(string(args[0]))
	if err != nil || count < 0 {
		return Command{}, errors.ErrSyntaxError
	}

	timeout, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil || timeout < 0 {
		return Command{}, errors.ErrSyntaxError
	}

	return Command{Kind: Wait, ReplicaCount: count, TimeoutMS: timeout, Raw: "WAIT"}, nil
}
