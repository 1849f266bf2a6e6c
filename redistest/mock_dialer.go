package redistest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gomodule/redigo/redis"
	"github.com/slotroute/redisc/transport"
)

// Handler computes the reply of a mock node to a command. The returned
// value may be:
//
//     - nil, a string, a []byte, an int or int64;
//     - a SimpleString (e.g. "OK");
//     - an Error, sent as an error reply (e.g. "TRYAGAIN mock");
//     - an Array of any of those values;
//     - a Go error, which simulates a broken connection.
type Handler func(cmd string, args ...string) interface{}

// Error is an error reply.
type Error string

// SimpleString is a status reply.
type SimpleString string

// Array is an array reply.
type Array []interface{}

// MockDialer is an in-memory transport.Dialer. Each address is served by
// its own Handler, installed with Handle. Dialing an address without a
// handler fails.
type MockDialer struct {
	mu       sync.Mutex
	handlers map[string]Handler
	dials    map[string]int
	closed   map[string]int
}

var _ transport.Dialer = (*MockDialer)(nil)

// NewMockDialer returns a MockDialer with no handler installed.
func NewMockDialer() *MockDialer {
	return &MockDialer{
		handlers: make(map[string]Handler),
		dials:    make(map[string]int),
		closed:   make(map[string]int),
	}
}

// Handle installs the handler h for the node at addr, replacing any
// existing handler.
func (d *MockDialer) Handle(addr string, h Handler) {
	d.mu.Lock()
	d.handlers[addr] = h
	d.mu.Unlock()
}

// Dials returns the number of successful dials made to addr.
func (d *MockDialer) Dials(addr string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[addr]
}

// Closed returns the number of connections to addr that were closed.
func (d *MockDialer) Closed(addr string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed[addr]
}

// Dial implements transport.Dialer.
func (d *MockDialer) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.handlers[addr]
	if h == nil {
		return nil, fmt.Errorf("redistest: no handler installed for %s", addr)
	}
	d.dials[addr]++
	return &mockConn{d: d, addr: addr, h: h}, nil
}

type mockConn struct {
	d    *MockDialer
	addr string
	h    Handler

	mu     sync.Mutex
	closed bool
}

var errMockClosed = errors.New("redistest: connection closed")

func (c *mockConn) Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errMockClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strs := make([]string, len(args))
	for i, arg := range args {
		strs[i] = argString(arg)
	}
	return toReply(c.h(cmd, strs...))
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errMockClosed
	}
	c.closed = true

	c.d.mu.Lock()
	c.d.closed[c.addr]++
	c.d.mu.Unlock()
	return nil
}

// argString formats arg the way redigo writes it on the wire.
func argString(arg interface{}) string {
	switch arg := arg.(type) {
	case string:
		return arg
	case []byte:
		return string(arg)
	case int:
		return strconv.Itoa(arg)
	case int64:
		return strconv.FormatInt(arg, 10)
	case float64:
		return strconv.FormatFloat(arg, 'g', -1, 64)
	case bool:
		if arg {
			return "1"
		}
		return "0"
	case nil:
		return ""
	case redis.Argument:
		return argString(arg.RedisArg())
	default:
		return fmt.Sprint(arg)
	}
}

// toReply converts the handler's value to what redigo would have returned
// for the same reply on the wire.
func toReply(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case error:
		return nil, v
	case Error:
		return nil, redis.Error(v)
	case SimpleString:
		return string(v), nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case Array:
		vals := make([]interface{}, len(v))
		for i, el := range v {
			if e, ok := el.(Error); ok {
				vals[i] = redis.Error(e)
				continue
			}
			r, err := toReply(el)
			if err != nil {
				return nil, err
			}
			vals[i] = r
		}
		return vals, nil
	default:
		panic(fmt.Sprintf("redistest: unsupported reply type %T", v))
	}
}
