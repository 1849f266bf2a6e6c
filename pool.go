package redisc

import (
	"context"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/slotroute/redisc/transport"
	"golang.org/x/sync/singleflight"
)

// connPool holds one connection per node address. Connections are created
// on first use, after a successful PING, and reused afterwards.
type connPool struct {
	dialer transport.Dialer
	// called after each attempt to create a connection
	onConnect func(addr string, err error)
	// bounds the dial and handshake, which are not tied to the context of
	// the caller that started them
	dialTimeout time.Duration

	group singleflight.Group // dedups concurrent dials to the same address

	mu     sync.RWMutex // protects following fields
	conns  map[string]transport.Conn
	closed bool
}

func newConnPool(dialer transport.Dialer, onConnect func(string, error), dialTimeout time.Duration) *connPool {
	return &connPool{
		dialer:      dialer,
		onConnect:   onConnect,
		dialTimeout: dialTimeout,
		conns:       make(map[string]transport.Conn),
	}
}

// get returns the connection for addr, creating it if needed.
func (p *connPool) get(ctx context.Context, addr string) (transport.Conn, error) {
	p.mu.RLock()
	conn, closed := p.conns[addr], p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrClosed.New("cluster is closed")
	}
	if conn != nil {
		return conn, nil
	}

	// the dial is shared by all concurrent callers for addr and outlives the
	// context of the one that started it
	dialCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(addr, func() (interface{}, error) {
		// a concurrent call may have stored it just before we entered DoChan
		p.mu.RLock()
		conn := p.conns[addr]
		p.mu.RUnlock()
		if conn != nil {
			return conn, nil
		}

		ctx, cancel := withTimeout(dialCtx, p.dialTimeout)
		defer cancel()
		conn, err := p.connect(ctx, addr)
		if p.onConnect != nil {
			p.onConnect(addr, err)
		}
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			conn.Close()
			return nil, ErrClosed.New("cluster is closed")
		}
		p.conns[addr] = conn
		return conn, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(transport.Conn), nil
	}
}

// withTimeout returns ctx bounded by d, or ctx unchanged if d <= 0.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// connect dials addr and checks that the node answers a PING.
func (p *connPool) connect(ctx context.Context, addr string) (transport.Conn, error) {
	conn, err := p.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, ErrConnection.Wrap(err, "dial failed").WithProperty(PropertyAddr, addr)
	}
	if _, err := conn.Do(ctx, "PING"); err != nil {
		conn.Close()
		return nil, ErrConnection.Wrap(err, "handshake failed").WithProperty(PropertyAddr, addr)
	}
	return conn, nil
}

// do sends the command to the node at addr, preceded by ASKING if asking
// is true. Error replies are returned as redis.Error values; any other
// failure closes the connection and is returned as an ErrConnection.
func (p *connPool) do(ctx context.Context, addr string, asking bool, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := p.get(ctx, addr)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if asking {
		v, err = doAsking(ctx, conn, cmd, args...)
	} else {
		v, err = conn.Do(ctx, cmd, args...)
	}
	if err != nil {
		if _, ok := err.(redis.Error); !ok {
			p.evict(addr, conn)
			return nil, ErrConnection.Wrap(err, "%s failed", cmd).WithProperty(PropertyAddr, addr)
		}
	}
	return v, err
}

func doAsking(ctx context.Context, conn transport.Conn, cmd string, args ...interface{}) (interface{}, error) {
	if ac, ok := conn.(transport.AskingConn); ok {
		return ac.DoAsking(ctx, cmd, args...)
	}
	if _, err := conn.Do(ctx, "ASKING"); err != nil {
		return nil, err
	}
	return conn.Do(ctx, cmd, args...)
}

// evict removes conn from the pool if it is still the connection for
// addr, and closes it.
func (p *connPool) evict(addr string, conn transport.Conn) {
	p.mu.Lock()
	if p.conns[addr] == conn {
		delete(p.conns, addr)
	}
	p.mu.Unlock()
	conn.Close()
}

// close closes all connections. The pool cannot be used afterwards.
func (p *connPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed.New("cluster is closed")
	}
	p.closed = true

	var err error
	for addr, conn := range p.conns {
		if e := conn.Close(); e != nil && err == nil {
			err = e
		}
		delete(p.conns, addr)
	}
	return err
}
