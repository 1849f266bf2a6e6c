package redisc

import (
	"errors"
	"io"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedir(t *testing.T) {
	cases := []struct {
		in   error
		want *RedirError
	}{
		{nil, nil},
		{io.EOF, nil},
		{redis.Error("ERR some error"), nil},
		{redis.Error("MOVED 1 127.0.0.1:7000"), &RedirError{Type: "MOVED", NewSlot: 1, Addr: NodeAddr{Host: "127.0.0.1", Port: 7000}, raw: "1 127.0.0.1:7000"}},
		{redis.Error("ASK 16383 127.0.0.1:7001"), &RedirError{Type: "ASK", NewSlot: 16383, Addr: NodeAddr{Host: "127.0.0.1", Port: 7001}, raw: "16383 127.0.0.1:7001"}},
		{redis.Error("ASK 1"), nil},
		{redis.Error("MOVED 1 127.0.0.1"), nil},
		{redis.Error("MOVED -1 127.0.0.1:7000"), nil},
	}
	for _, c := range cases {
		got := ParseRedir(c.in)
		assert.Equal(t, c.want, got, "%v", c.in)
	}

	re := &RedirError{Type: "ASK", NewSlot: 2}
	assert.True(t, re == ParseRedir(re))
}

func TestRedirErrorString(t *testing.T) {
	re := ParseRedir(redis.Error("MOVED 3999 127.0.0.1:6381"))
	require.NotNil(t, re)
	assert.Equal(t, "MOVED: 3999 127.0.0.1:6381", re.Error())
}

func TestServerError(t *testing.T) {
	se := newServerError("TRYAGAIN mock")
	assert.Equal(t, &ServerError{Code: "TRYAGAIN", Message: "mock"}, se)
	assert.Equal(t, "TRYAGAIN: mock", se.Error())

	se = newServerError("LOADING")
	assert.Equal(t, "LOADING", se.Error())
}

func TestErrorPredicates(t *testing.T) {
	tryAgain := newServerError("TRYAGAIN mock")
	crossSlot := newServerError("CROSSSLOT Keys in request don't hash to the same slot")
	down := newServerError("CLUSTERDOWN The cluster is down")

	assert.True(t, IsTryAgain(tryAgain))
	assert.True(t, IsTryAgain(redis.Error("TRYAGAIN mock")))
	assert.False(t, IsTryAgain(crossSlot))
	assert.False(t, IsTryAgain(errors.New("TRYAGAIN")))

	assert.True(t, IsCrossSlot(crossSlot))
	assert.True(t, IsCrossSlot(redis.Error("CROSSSLOT x")))
	assert.False(t, IsCrossSlot(tryAgain))

	assert.True(t, IsClusterDown(down))
	assert.True(t, IsClusterDown(ErrClusterDown.New("slot 1 is not served")))
	assert.False(t, IsClusterDown(tryAgain))

	assert.True(t, IsTerminal(down))
	assert.True(t, IsTerminal(ErrClosed.New("closed")))
	assert.True(t, IsTerminal(ErrConnection.Wrap(io.EOF, "GET failed")))
	assert.True(t, IsTerminal(newServerError("WRONGTYPE Operation against a key holding the wrong kind of value")))
	assert.True(t, IsTerminal(crossSlot))
	assert.True(t, IsTerminal(redis.Error("ERR unknown command")))
	assert.False(t, IsTerminal(redis.Error("TRYAGAIN mock")))
	assert.False(t, IsTerminal(redis.Error("MOVED 1 127.0.0.1:7000")))
	assert.False(t, IsTerminal(tryAgain))
	assert.False(t, IsTerminal(ParseRedir(redis.Error("ASK 1 127.0.0.1:7000"))))
	assert.False(t, IsTerminal(io.EOF))
}
