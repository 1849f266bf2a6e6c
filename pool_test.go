package redisc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/joomcode/errorx"
	"github.com/slotroute/redisc/redistest"
	"github.com/slotroute/redisc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(cmd string, args ...string) interface{} {
	switch cmd {
	case "PING":
		return redistest.SimpleString("PONG")
	case "ECHO":
		return args[0]
	case "BROKEN":
		return errors.New("broken")
	}
	return redistest.Error("ERR unknown command '" + cmd + "'")
}

func TestPoolGet(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, echoHandler)

	var connects int32
	p := newConnPool(d, func(addr string, err error) {
		assert.Equal(t, node1, addr)
		assert.NoError(t, err)
		atomic.AddInt32(&connects, 1)
	}, 0)
	defer p.close()

	c1, err := p.get(context.Background(), node1)
	require.NoError(t, err)
	c2, err := p.get(context.Background(), node1)
	require.NoError(t, err)
	assert.True(t, c1 == c2)
	assert.Equal(t, 1, d.Dials(node1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&connects))
}

func TestPoolGetConcurrent(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, echoHandler)
	p := newConnPool(d, nil, 0)
	defer p.close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.get(context.Background(), node1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, d.Dials(node1))
}

func TestPoolGetFails(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node2, func(cmd string, args ...string) interface{} {
		return redistest.Error("NOAUTH Authentication required")
	})

	var failures int32
	p := newConnPool(d, func(addr string, err error) {
		assert.Error(t, err)
		atomic.AddInt32(&failures, 1)
	}, 0)
	defer p.close()

	// no handler, dial fails
	_, err := p.get(context.Background(), node1)
	assert.True(t, errorx.IsOfType(err, ErrConnection), "%v", err)
	addr, _ := errorx.ExtractProperty(err, PropertyAddr)
	assert.Equal(t, node1, addr)

	// handshake fails, connection is closed
	_, err = p.get(context.Background(), node2)
	assert.True(t, errorx.IsOfType(err, ErrConnection), "%v", err)
	assert.Equal(t, 1, d.Closed(node2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&failures))

	// nothing is cached on failure
	_, err = p.get(context.Background(), node2)
	assert.Error(t, err)
	assert.Equal(t, 2, d.Dials(node2))
}

func TestPoolDo(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, echoHandler)
	p := newConnPool(d, nil, 0)
	defer p.close()

	v, err := redis.String(p.do(context.Background(), node1, false, "ECHO", "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	// error replies keep the connection
	_, err = p.do(context.Background(), node1, false, "NOPE")
	assert.Equal(t, redis.Error("ERR unknown command 'NOPE'"), err)
	assert.Equal(t, 0, d.Closed(node1))

	// transport failures evict it
	_, err = p.do(context.Background(), node1, false, "BROKEN")
	assert.True(t, errorx.IsOfType(err, ErrConnection), "%v", err)
	assert.Equal(t, 1, d.Closed(node1))

	v, err = redis.String(p.do(context.Background(), node1, false, "ECHO", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, d.Dials(node1))
}

func TestPoolDoAsking(t *testing.T) {
	var mu sync.Mutex
	var cmds []string

	d := redistest.NewMockDialer()
	d.Handle(node1, func(cmd string, args ...string) interface{} {
		mu.Lock()
		cmds = append(cmds, cmd)
		mu.Unlock()
		if cmd == "ASKING" {
			return redistest.SimpleString("OK")
		}
		return echoHandler(cmd, args...)
	})
	p := newConnPool(d, nil, 0)
	defer p.close()

	_, err := p.do(context.Background(), node1, true, "ECHO", "a")
	require.NoError(t, err)
	_, err = p.do(context.Background(), node1, false, "ECHO", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "ASKING", "ECHO", "ECHO"}, cmds)
}

func TestPoolClose(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, echoHandler)
	d.Handle(node2, echoHandler)
	p := newConnPool(d, nil, 0)

	_, err := p.get(context.Background(), node1)
	require.NoError(t, err)
	_, err = p.get(context.Background(), node2)
	require.NoError(t, err)

	require.NoError(t, p.close())
	assert.Equal(t, 1, d.Closed(node1))
	assert.Equal(t, 1, d.Closed(node2))

	_, err = p.get(context.Background(), node1)
	assert.True(t, errorx.IsOfType(err, ErrClosed), "%v", err)
	assert.True(t, errorx.IsOfType(p.close(), ErrClosed))
}

// blockingDialer returns a dialer that waits until release is closed or
// the dial context is done before dialing with d.
func blockingDialer(d *redistest.MockDialer, release <-chan struct{}) transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context, addr string) (transport.Conn, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return d.Dial(ctx, addr)
	})
}

func TestPoolGetSharedDialCallerDeadline(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, echoHandler)
	release := make(chan struct{})
	p := newConnPool(blockingDialer(d, release), nil, time.Second)
	defer p.close()

	ctxA, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = p.get(ctxA, node1)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		_, errB = p.get(context.Background(), node1)
	}()

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.True(t, errors.Is(errA, context.DeadlineExceeded), "%v", errA)
	assert.NoError(t, errB)
	assert.Equal(t, 1, d.Dials(node1))
}

func TestPoolGetDialTimeout(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, echoHandler)
	p := newConnPool(blockingDialer(d, make(chan struct{})), nil, 20*time.Millisecond)
	defer p.close()

	_, err := p.get(context.Background(), node1)
	require.True(t, errorx.IsOfType(err, ErrConnection), "%v", err)
	assert.Equal(t, context.DeadlineExceeded, errorx.Cast(err).Cause())
}
