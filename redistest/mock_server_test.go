package redistest

import (
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockServer(t *testing.T) {
	s := StartMockServer(t, func(cmd string, args ...string) interface{} {
		switch cmd {
		case "ECHO":
			return args[0]
		case "PING":
			return SimpleString("PONG")
		case "CLUSTER":
			return Array{Array{0, 16383, Array{"127.0.0.1", 7000}}}
		}
		return Error("ERR unknown command '" + cmd + "'")
	})
	defer s.Close()

	c, err := redis.Dial("tcp", s.Addr)
	require.NoError(t, err, "Dial")
	defer c.Close()

	v, err := redis.String(c.Do("ECHO", "a"))
	require.NoError(t, err, "ECHO")
	assert.Equal(t, "a", v, "Should echo the argument")

	v, err = redis.String(c.Do("PING"))
	require.NoError(t, err, "PING")
	assert.Equal(t, "PONG", v)

	vals, err := redis.Values(c.Do("CLUSTER", "SLOTS"))
	require.NoError(t, err, "CLUSTER SLOTS")
	assert.Equal(t, []interface{}{
		[]interface{}{int64(0), int64(16383), []interface{}{[]byte("127.0.0.1"), int64(7000)}},
	}, vals)

	_, err = c.Do("FOO")
	if assert.Error(t, err, "FOO") {
		assert.Equal(t, redis.Error("ERR unknown command 'FOO'"), err)
	}
}
