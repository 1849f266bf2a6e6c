package redisc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/joomcode/errorx"
	"github.com/slotroute/redisc/transport"
	"golang.org/x/sync/singleflight"
)

// Cluster manages a redis cluster. Its configuration fields must be set
// before the first call to one of its methods and must not be modified
// afterwards. It is safe for concurrent use.
type Cluster struct {
	// StartupNodes is the list of initial nodes that make up
	// the cluster. The values are expected as "address:port"
	// (e.g.: "111.222.333.444:6379").
	StartupNodes []string

	// DialOptions is the list of options to set on each new connection
	// when Dialer is nil.
	DialOptions []redis.DialOption

	// Dialer creates the connections to the nodes. If nil, connections
	// are created by a transport.RedigoDialer using DialOptions.
	Dialer transport.Dialer

	// DialTimeout bounds the creation of a connection, including its
	// handshake. Concurrent commands to the same node share a single dial,
	// which is not canceled when the context of one of them is done.
	// Defaults to 5s, a negative value means no timeout.
	DialTimeout time.Duration

	// RefreshTimeout bounds a refresh of the slot mapping, which is shared
	// in the same way by concurrent callers and is also run in the
	// background when RefreshOnMoved is set. Defaults to 10s, a negative
	// value means no timeout.
	RefreshTimeout time.Duration

	// Retries is the number of times a command is sent again after a
	// MOVED, ASK or TRYAGAIN reply. The zero value is unbounded.
	Retries RetryBudget

	// Backoff returns the delay before sending a command again after a
	// TRYAGAIN reply. Defaults to an exponential backoff starting at
	// 10ms, up to 1s.
	Backoff BackoffFunc

	// RefreshOnMoved triggers a refresh of the whole slot mapping in the
	// background after a MOVED reply, in addition to the update of the
	// moved slot.
	RefreshOnMoved bool

	// Name identifies the cluster in logs. Defaults to a random UUID.
	Name string

	// Logger receives the cluster's events. Defaults to DefaultLogger.
	Logger Logger

	// Metrics receives the cluster's measurements. Defaults to a no-op
	// implementation.
	Metrics Metrics

	mu   sync.Mutex // protects following fields
	err  error      // closed error
	pool *connPool

	mapping    atomic.Pointer[SlotMap] // current slot mapping, nil until the first refresh
	refreshes  singleflight.Group
	refreshing atomic.Bool // a background refresh is running
}

// SetRetries sets the retry budget and returns the cluster, so that it
// can be chained with other calls.
func (c *Cluster) SetRetries(b RetryBudget) *Cluster {
	c.Retries = b
	return c
}

// init creates the connection pool on first use.
func (c *Cluster) init() (*connPool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.pool == nil {
		if c.Name == "" {
			c.Name = uuid.NewString()
		}
		d := c.Dialer
		if d == nil {
			d = transport.RedigoDialer{Options: c.DialOptions}
		}
		c.pool = newConnPool(d, c.connected, timeoutOrDefault(c.DialTimeout, defaultDialTimeout))
	}
	return c.pool, nil
}

func (c *Cluster) connected(addr string, err error) {
	if err != nil {
		c.logger().Report(c, LogConnectFailed{Addr: addr, Error: err})
	} else {
		c.logger().Report(c, LogConnected{Addr: addr})
	}
	c.metrics().ConnCreated(addr, err)
}

// Refresh updates the cluster's mapping of hash slots to nodes. It calls
// CLUSTER SLOTS on each known node until one of them succeeds, starting
// with the nodes of the current mapping, then the startup nodes.
//
// It is called automatically by the first command if the mapping was
// never loaded. The mapping is kept up-to-date afterwards based on the
// MOVED replies.
func (c *Cluster) Refresh(ctx context.Context) error {
	pool, err := c.init()
	if err != nil {
		return err
	}
	return c.refresh(ctx, pool)
}

// refresh loads and installs the slot mapping. Concurrent calls share the
// same request, which runs until it completes or RefreshTimeout expires,
// even if the context of the caller that started it is done.
func (c *Cluster) refresh(ctx context.Context, pool *connPool) error {
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan("", func() (interface{}, error) {
		ctx, cancel := withTimeout(refreshCtx, timeoutOrDefault(c.RefreshTimeout, defaultRefreshTimeout))
		defer cancel()
		err := c.loadSlotMap(ctx, pool)
		c.metrics().Refreshed(err)
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Cluster) loadSlotMap(ctx context.Context, pool *connPool) error {
	var lastErr, downErr error
	for _, addr := range c.nodeAddrs() {
		sm, err := c.fetchSlotMap(ctx, pool, addr)
		if err == nil {
			c.mapping.Store(sm)
			c.logger().Report(c, LogRefreshed{Addr: addr, Ranges: len(sm.ranges), Nodes: len(sm.addrs)})
			return nil
		}
		if errorx.IsOfType(err, ErrClosed) {
			return err
		}
		c.logger().Report(c, LogRefreshFailed{Addr: addr, Error: err})
		if IsClusterDown(err) {
			downErr = err
		}
		lastErr = err
	}

	switch {
	case downErr != nil:
		return downErr
	case lastErr != nil:
		return ErrRefresh.Wrap(lastErr, "all nodes failed")
	default:
		return ErrRefresh.New("no node to query")
	}
}

func (c *Cluster) fetchSlotMap(ctx context.Context, pool *connPool, addr string) (*SlotMap, error) {
	na, err := ParseNodeAddr(addr)
	if err != nil {
		return nil, ErrProtocol.Wrap(err, "invalid node address").WithProperty(PropertyAddr, addr)
	}
	v, err := pool.do(ctx, addr, false, "CLUSTER", "SLOTS")
	if err != nil {
		if rerr, ok := err.(redis.Error); ok {
			err = newServerError(string(rerr))
		}
		return nil, err
	}
	ranges, err := parseClusterSlots(v, na.Host)
	if err != nil {
		return nil, err
	}
	return NewSlotMap(ranges)
}

// nodeAddrs returns the addresses to query for the slot mapping, without
// duplicates.
func (c *Cluster) nodeAddrs() []string {
	var addrs []string
	seen := make(map[string]bool)
	add := func(addr string) {
		if !seen[addr] {
			seen[addr] = true
			addrs = append(addrs, addr)
		}
	}

	if sm := c.mapping.Load(); sm != nil {
		for _, a := range sm.addrs {
			add(a.String())
		}
	}
	for _, addr := range c.StartupNodes {
		add(addr)
	}
	return addrs
}

// slotMap returns the current mapping, loading it if needed.
func (c *Cluster) slotMap(ctx context.Context, pool *connPool) (*SlotMap, error) {
	if sm := c.mapping.Load(); sm != nil {
		return sm, nil
	}
	if err := c.refresh(ctx, pool); err != nil {
		return nil, err
	}
	return c.mapping.Load(), nil
}

// SlotMap returns the current mapping of hash slots to nodes, or nil if
// it was never loaded.
func (c *Cluster) SlotMap() *SlotMap {
	return c.mapping.Load()
}

// reassign installs addr as the owner of slot, following a MOVED reply.
func (c *Cluster) reassign(slot int, addr NodeAddr) {
	for {
		old := c.mapping.Load()
		if old == nil || c.mapping.CompareAndSwap(old, old.WithSlot(slot, addr)) {
			break
		}
	}
	if c.RefreshOnMoved {
		c.needsRefresh()
	}
}

// needsRefresh starts a background refresh of the mapping, unless one is
// already running.
func (c *Cluster) needsRefresh() {
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.refreshing.Store(false)
		if pool, err := c.init(); err == nil {
			d := timeoutOrDefault(c.RefreshTimeout, defaultRefreshTimeout)
			if d <= 0 {
				d = defaultRefreshTimeout
			}
			ctx, cancel := context.WithTimeout(context.Background(), d)
			defer cancel()
			_ = c.refresh(ctx, pool)
		}
	}()
}

// Close releases the resources used by the cluster. It closes all the
// connections that were created, if any.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	c.err = ErrClosed.New("cluster is closed")
	if c.pool != nil {
		return c.pool.close()
	}
	return nil
}

const (
	defaultDialTimeout    = 5 * time.Second
	defaultRefreshTimeout = 10 * time.Second
)

// timeoutOrDefault returns def if d is 0, d otherwise. A negative result
// means no timeout.
func timeoutOrDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

func (c *Cluster) logger() Logger {
	if c.Logger == nil {
		return DefaultLogger{}
	}
	return c.Logger
}

func (c *Cluster) metrics() Metrics {
	if c.Metrics == nil {
		return nopMetrics{}
	}
	return c.Metrics
}

func (c *Cluster) backoff() BackoffFunc {
	if c.Backoff == nil {
		return defaultBackoff
	}
	return c.Backoff
}
