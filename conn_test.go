package redisc

import (
	"context"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/slotroute/redisc/redistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn(t *testing.T) {
	d := redistest.NewMockDialer()
	d.Handle(node1, nodeHandler(slotsReply(node1), func(cmd string, args ...string) interface{} {
		switch cmd {
		case "GET":
			return "3"
		case "SET":
			return redistest.SimpleString("OK")
		}
		return redistest.Error("ERR unknown command")
	}))

	c := newTestCluster(d, node1)
	defer c.Close()

	conn := c.Conn()
	v, err := redis.Int(conn.Do("GET", "a"))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	s, err := redis.String(redis.DoContext(conn, context.Background(), "SET", "a", 4))
	require.NoError(t, err)
	assert.Equal(t, "OK", s)

	v2, err := conn.Do("")
	assert.NoError(t, err)
	assert.Nil(t, v2)

	assert.Error(t, conn.Send("GET", "a"))
	assert.Error(t, conn.Flush())
	_, err = conn.Receive()
	assert.Error(t, err)

	require.NoError(t, conn.Err())
	require.NoError(t, conn.Close())
	assert.Error(t, conn.Err())
	assert.Error(t, conn.Close())
	_, err = conn.Do("GET", "a")
	assert.Error(t, err)

	// the cluster is still usable
	_, err = c.Do(context.Background(), "GET", "a")
	assert.NoError(t, err)
}
