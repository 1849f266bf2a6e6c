// Package transport defines the connection factory used by the redisc
// cluster client to reach individual nodes, along with a default
// implementation on top of the redigo client package.
//
// A Conn is a single logical connection to one node. It exchanges one
// request for one reply; the encoding of commands and the decoding of
// replies is the responsibility of the implementation. Error replies sent
// by the server must be returned as a redis.Error so that callers can tell
// them apart from transport failures.
package transport

import (
	"context"
	"sync"

	"github.com/gomodule/redigo/redis"
)

// Conn is a logical connection to a single cluster node.
type Conn interface {
	// Do sends the command and returns the parsed reply. Server error
	// replies are returned as a redis.Error, any other error means the
	// connection is no longer usable.
	Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error)

	// Close releases the connection.
	Close() error
}

// AskingConn is implemented by connections that can send the ASKING
// marker immediately followed by a command, with no other command
// interleaved on the same connection.
type AskingConn interface {
	Conn
	DoAsking(ctx context.Context, cmd string, args ...interface{}) (interface{}, error)
}

// Dialer creates connections to cluster nodes. The address is in the
// "host:port" form.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// DialerFunc is a function that implements Dialer.
type DialerFunc func(ctx context.Context, addr string) (Conn, error)

// Dial implements Dialer.
func (fn DialerFunc) Dial(ctx context.Context, addr string) (Conn, error) {
	return fn(ctx, addr)
}

// RedigoDialer dials TCP connections using redigo.
type RedigoDialer struct {
	// Options is the list of options to set on each new connection.
	Options []redis.DialOption
}

// Dial implements Dialer.
func (d RedigoDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	c, err := redis.DialContext(ctx, "tcp", addr, d.Options...)
	if err != nil {
		return nil, err
	}
	return &redigoConn{c: c}, nil
}

// redigoConn serializes the use of a redigo connection, which does not
// support concurrent calls to Do.
type redigoConn struct {
	mu sync.Mutex
	c  redis.Conn
}

func (rc *redigoConn) Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return redis.DoContext(rc.c, ctx, cmd, args...)
}

func (rc *redigoConn) DoAsking(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, err := redis.DoContext(rc.c, ctx, "ASKING"); err != nil {
		return nil, err
	}
	return redis.DoContext(rc.c, ctx, cmd, args...)
}

func (rc *redigoConn) Close() error {
	return rc.c.Close()
}
