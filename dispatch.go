package redisc

import (
	"context"
	"math/rand"
	"time"
)

// pendingCommand is the state of a command being executed by Do.
type pendingCommand struct {
	name     string
	args     []interface{}
	slot     int // -1 if the command has no key
	attempts int

	// set when the next attempt must go to a specific node, after an ASK
	// or a TRYAGAIN reply
	target *NodeAddr
	asking bool
}

// Do sends the command to the node that serves the slot of its first
// argument, which is assumed to be a key, and returns the reply. Commands
// without arguments are sent to a random node.
//
// MOVED replies update the mapping of slots and the command is sent to the
// new node, ASK replies send the command once to the indicated node, and
// TRYAGAIN replies send the command again to the same node after a delay
// (see Backoff). Each of those consumes one retry of the Retries budget;
// once the budget is exhausted, the last reply is returned as error. Other
// error replies and connection failures are returned immediately.
//
// Server error replies are returned as *RedirError (MOVED and ASK) or
// *ServerError values.
func (c *Cluster) Do(ctx context.Context, cmd string, args ...interface{}) (v interface{}, err error) {
	start := time.Now()
	pc := &pendingCommand{name: cmd, args: args, slot: slotForArgs(args)}
	defer func() {
		c.metrics().CommandDone(cmd, pc.attempts, err, time.Since(start))
	}()

	pool, err := c.init()
	if err != nil {
		return nil, err
	}

	for {
		sm, err := c.slotMap(ctx, pool)
		if err != nil {
			return nil, err
		}
		addr, err := pc.node(sm)
		if err != nil {
			return nil, err
		}

		pc.attempts++
		v, err := pool.do(ctx, addr.String(), pc.asking, pc.name, pc.args...)
		r := classify(v, err, addr)

		act := decide(r.sig)
		switch act {
		case actReturn:
			return r.value, nil
		case actFail:
			return nil, r.err
		}

		if !c.Retries.allows(pc.attempts) {
			return nil, r.err
		}
		c.metrics().Redirected(r.sig.String())

		switch act {
		case actUpdateRetry:
			c.logger().Report(c, LogRedirect{Type: "MOVED", Slot: r.slot, From: addr.String(), To: r.addr.String()})
			c.reassign(r.slot, r.addr)
			pc.slot, pc.target, pc.asking = r.slot, nil, false

		case actRedirectOnce:
			c.logger().Report(c, LogRedirect{Type: "ASK", Slot: r.slot, From: addr.String(), To: r.addr.String()})
			to := r.addr
			pc.slot, pc.target, pc.asking = r.slot, &to, true

		case actBackoffRetry:
			delay := c.backoff()(pc.attempts)
			c.logger().Report(c, LogTryAgain{Addr: addr.String(), Attempt: pc.attempts, Delay: delay})
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			pc.target = &addr
		}
	}
}

// node returns the node to send the next attempt to.
func (pc *pendingCommand) node(sm *SlotMap) (NodeAddr, error) {
	if pc.target != nil {
		return *pc.target, nil
	}
	if pc.slot < 0 {
		addrs := sm.addrs
		return addrs[rand.Intn(len(addrs))], nil
	}
	addr, ok := sm.Owner(pc.slot)
	if !ok {
		return NodeAddr{}, ErrClusterDown.New("no node for slot %d", pc.slot).WithProperty(PropertySlot, pc.slot)
	}
	return addr, nil
}
