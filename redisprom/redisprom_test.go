package redisprom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/slotroute/redisc"
	"github.com/slotroute/redisc/redistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.CommandDone("GET", 1, nil, time.Millisecond)
	m.CommandDone("GET", 3, errors.New("TRYAGAIN"), 10*time.Millisecond)
	m.Redirected("MOVED")
	m.Redirected("MOVED")
	m.ConnCreated("127.0.0.1:7000", nil)
	m.Refreshed(nil)

	mm := m.(*metrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.commandsTotal.WithLabelValues("GET", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.commandsTotal.WithLabelValues("GET", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(mm.redirectsTotal.WithLabelValues("MOVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.connsTotal.WithLabelValues("127.0.0.1:7000", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.refreshesTotal.WithLabelValues("true")))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["redisc_command_duration_seconds"])
	assert.True(t, names["redisc_command_attempts"])
	assert.True(t, names["redisc_redirects_total"])
}

func TestClusterMetrics(t *testing.T) {
	const addr = "127.0.0.1:7000"

	var tryAgain bool
	d := redistest.NewMockDialer()
	d.Handle(addr, func(cmd string, args ...string) interface{} {
		switch cmd {
		case "PING":
			return redistest.SimpleString("PONG")
		case "CLUSTER":
			return redistest.Array{redistest.Array{0, redisc.HashSlots - 1, redistest.Array{"127.0.0.1", 7000}}}
		}
		if !tryAgain {
			tryAgain = true
			return redistest.Error("TRYAGAIN mock")
		}
		return "v"
	})

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := &redisc.Cluster{
		StartupNodes: []string{addr},
		Dialer:       d,
		Backoff:      redisc.ConstantBackoff(0),
		Logger:       redisc.NoopLogger{},
		Metrics:      m,
	}
	defer c.Close()

	_, err := c.Do(context.Background(), "GET", "k")
	require.NoError(t, err)

	mm := m.(*metrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.commandsTotal.WithLabelValues("GET", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.redirectsTotal.WithLabelValues("TRYAGAIN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.connsTotal.WithLabelValues(addr, "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.refreshesTotal.WithLabelValues("true")))
}
