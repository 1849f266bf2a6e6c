package redisc

import (
	"strconv"
	"strings"

	"github.com/gomodule/redigo/redis"
	"github.com/joomcode/errorx"
)

var (
	// Errors is the namespace of the errors that end a command without
	// retrying it.
	Errors = errorx.NewNamespace("redisc", traitTerminal)

	// ErrClosed is returned when the cluster is used after Close.
	ErrClosed = Errors.NewType("closed")
	// ErrClusterDown is returned when no node serves a slot, either because
	// the known slot mapping does not cover all slots or because a node
	// replied with a CLUSTERDOWN error.
	ErrClusterDown = Errors.NewType("cluster_down")
	// ErrConnection is returned when a connection to a node could not be
	// established, failed its handshake or broke while in use.
	ErrConnection = Errors.NewType("connection")
	// ErrProtocol is returned when a node's reply is not in the expected
	// format.
	ErrProtocol = Errors.NewType("protocol")
	// ErrRefresh is returned when no node could provide the slot mapping.
	ErrRefresh = Errors.NewType("refresh")

	traitTerminal = errorx.RegisterTrait("terminal")

	// PropertyAddr is the address of the node involved in an error.
	PropertyAddr = errorx.RegisterProperty("addr")
	// PropertySlot is the hash slot involved in an error.
	PropertySlot = errorx.RegisterProperty("slot")
)

// IsTerminal returns true if err ends a command without any retry. Errors
// that are not terminal are the MOVED, ASK and TRYAGAIN replies, which are
// only returned once the retry budget is exhausted. All other error replies
// from the server (e.g. WRONGTYPE or CLUSTERDOWN) and all errors of the
// Errors namespace are terminal.
func IsTerminal(err error) bool {
	if errorx.HasTrait(err, traitTerminal) {
		return true
	}
	switch err := err.(type) {
	case *RedirError:
		return false
	case *ServerError:
		return err.Code != "TRYAGAIN"
	case redis.Error:
		code := errorCode(string(err))
		return code != "TRYAGAIN" && code != "MOVED" && code != "ASK"
	}
	return false
}

// IsClusterDown returns true if err indicates that no node serves the
// requested slot.
func IsClusterDown(err error) bool {
	return errorx.IsOfType(err, ErrClusterDown) || isCode(err, "CLUSTERDOWN")
}

// IsTryAgain returns true if the error is a redis cluster error of type
// TRYAGAIN, meaning that the command is valid, but the cluster is in an
// unstable state and it can't complete the request at the moment.
func IsTryAgain(err error) bool {
	return isCode(err, "TRYAGAIN")
}

// IsCrossSlot returns true if the error is a redis cluster error of type
// CROSSSLOT, meaning that a command was sent with keys from different
// slots.
func IsCrossSlot(err error) bool {
	return isCode(err, "CROSSSLOT")
}

func isCode(err error, code string) bool {
	switch err := err.(type) {
	case *ServerError:
		return err.Code == code
	case *RedirError:
		return err.Type == code
	case redis.Error:
		return errorCode(string(err)) == code
	}
	return false
}

// ServerError is an error reply sent by a node, other than a redirection.
type ServerError struct {
	// Code is the first word of the reply, e.g. "TRYAGAIN" or "ERR".
	Code string
	// Message is the rest of the reply.
	Message string
}

// Error returns the error reply as "<code>: <message>".
func (e *ServerError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// RedirError is a cluster redirection error reply, MOVED or ASK.
type RedirError struct {
	// Type indicates if the redirection is a MOVED or an ASK.
	Type string
	// NewSlot is the slot number of the redirection.
	NewSlot int
	// Addr is the node address to redirect to.
	Addr NodeAddr

	raw string
}

// Error returns the error reply as "<type>: <slot> <addr>".
func (e *RedirError) Error() string {
	return e.Type + ": " + e.raw
}

// ParseRedir parses err into a RedirError. If err is not a MOVED or ASK
// error reply or if it fails to parse, it returns nil.
func ParseRedir(err error) *RedirError {
	switch err := err.(type) {
	case *RedirError:
		return err
	case redis.Error:
		re, _ := parseRedir(string(err), "")
		return re
	}
	return nil
}

// parseRedir parses a MOVED or ASK error reply. The host of the address
// may be empty in the reply, in which case host is used.
func parseRedir(txt, host string) (*RedirError, bool) {
	code := errorCode(txt)
	if code != "MOVED" && code != "ASK" {
		return nil, false
	}
	rest := strings.TrimSpace(txt[len(code):])
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return nil, true
	}
	slot, err := strconv.Atoi(parts[0])
	if err != nil || slot < 0 || slot >= HashSlots {
		return nil, true
	}
	addr, err := ParseNodeAddr(parts[1])
	if err != nil {
		return nil, true
	}
	if addr.Host == "" {
		addr.Host = host
	}
	return &RedirError{Type: code, NewSlot: slot, Addr: addr, raw: rest}, true
}

// newServerError splits an error reply in its code and message.
func newServerError(txt string) *ServerError {
	code := errorCode(txt)
	return &ServerError{Code: code, Message: strings.TrimSpace(txt[len(code):])}
}

func errorCode(txt string) string {
	if ix := strings.IndexByte(txt, ' '); ix >= 0 {
		return txt[:ix]
	}
	return txt
}
