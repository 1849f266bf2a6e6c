package redisc

import (
	"context"
	"errors"
	"sync"

	"github.com/gomodule/redigo/redis"
)

// Conn returns a redigo redis.Conn that executes commands with the
// cluster's Do method, so that the redigo helpers (redis.Int, redis.String,
// etc.) can be used with the cluster. Only Do, DoContext, Close and Err can
// be called on that connection, pipelining methods (Send, Flush and
// Receive) return an error.
//
// The connection does not own any network resource, closing it only
// prevents further use.
func (c *Cluster) Conn() redis.Conn {
	return &clusterConn{c: c}
}

type clusterConn struct {
	c *Cluster

	mu  sync.Mutex
	err error
}

var (
	_ redis.Conn            = (*clusterConn)(nil)
	_ redis.ConnWithContext = (*clusterConn)(nil)

	errConnClosed = errors.New("redisc: closed")
)

func (cc *clusterConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	return cc.DoContext(context.Background(), cmd, args...)
}

func (cc *clusterConn) DoContext(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	if err := cc.Err(); err != nil {
		return nil, err
	}
	// redigo's Do with no command only flushes pending commands
	if cmd == "" {
		return nil, nil
	}
	return cc.c.Do(ctx, cmd, args...)
}

func (cc *clusterConn) Err() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.err
}

func (cc *clusterConn) Close() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.err != nil {
		return cc.err
	}
	cc.err = errConnClosed
	return nil
}

func (cc *clusterConn) Send(cmd string, args ...interface{}) error {
	return errors.New("redisc: unsupported call to Send")
}

func (cc *clusterConn) Receive() (interface{}, error) {
	return nil, errors.New("redisc: unsupported call to Receive")
}

func (cc *clusterConn) ReceiveContext(ctx context.Context) (interface{}, error) {
	return cc.Receive()
}

func (cc *clusterConn) Flush() error {
	return errors.New("redisc: unsupported call to Flush")
}
