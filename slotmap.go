package redisc

import (
	"net"
	"sort"
	"strconv"

	"github.com/gomodule/redigo/redis"
)

// NodeAddr is the address of a cluster node.
type NodeAddr struct {
	Host string
	Port int
}

// ParseNodeAddr parses an address in the "host:port" form. The host may
// be empty.
func ParseNodeAddr(s string) (NodeAddr, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return NodeAddr{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return NodeAddr{}, ErrProtocol.New("invalid port in address %q", s)
	}
	return NodeAddr{Host: host, Port: p}, nil
}

// String returns the address in the "host:port" form.
func (a NodeAddr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// SlotRange is a range of hash slots, from Start to End inclusively,
// served by the node at Addr.
type SlotRange struct {
	Start, End int
	Addr       NodeAddr
}

// SlotMap is an immutable mapping of all hash slots to the nodes that
// serve them. Its ranges are sorted, do not overlap and cover all slots.
type SlotMap struct {
	ranges []SlotRange
	addrs  []NodeAddr
}

// NewSlotMap creates a SlotMap from the provided ranges, in any order. It
// returns an ErrClusterDown error if the ranges do not cover all hash
// slots, and an ErrProtocol error if a range is invalid or if ranges
// overlap.
func NewSlotMap(ranges []SlotRange) (*SlotMap, error) {
	rs := make([]SlotRange, len(ranges))
	copy(rs, ranges)
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Start < rs[j].Start
	})

	next := 0
	for _, r := range rs {
		if r.Start < 0 || r.End >= HashSlots || r.Start > r.End {
			return nil, ErrProtocol.New("invalid slot range %d-%d", r.Start, r.End)
		}
		if r.Start < next {
			return nil, ErrProtocol.New("slot range %d-%d overlaps previous range", r.Start, r.End)
		}
		if r.Start > next {
			return nil, ErrClusterDown.New("slots %d-%d are not served", next, r.Start-1).
				WithProperty(PropertySlot, next)
		}
		next = r.End + 1
	}
	if next != HashSlots {
		return nil, ErrClusterDown.New("slots %d-%d are not served", next, HashSlots-1).
			WithProperty(PropertySlot, next)
	}
	return newSlotMap(rs), nil
}

// newSlotMap creates the SlotMap from valid, sorted ranges, merging
// adjacent ranges served by the same node.
func newSlotMap(rs []SlotRange) *SlotMap {
	merged := make([]SlotRange, 0, len(rs))
	set := make(map[NodeAddr]bool)
	for _, r := range rs {
		set[r.Addr] = true
		if n := len(merged); n > 0 && merged[n-1].Addr == r.Addr {
			merged[n-1].End = r.End
			continue
		}
		merged = append(merged, r)
	}

	addrs := make([]NodeAddr, 0, len(set))
	for a := range set {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].String() < addrs[j].String()
	})
	return &SlotMap{ranges: merged, addrs: addrs}
}

// Owner returns the address of the node that serves slot. It returns false
// if slot is not a valid hash slot.
func (m *SlotMap) Owner(slot int) (NodeAddr, bool) {
	if slot < 0 || slot >= HashSlots {
		return NodeAddr{}, false
	}
	ix := m.find(slot)
	if ix < 0 {
		return NodeAddr{}, false
	}
	return m.ranges[ix].Addr, true
}

func (m *SlotMap) find(slot int) int {
	ix := sort.Search(len(m.ranges), func(i int) bool {
		return m.ranges[i].End >= slot
	})
	if ix == len(m.ranges) || m.ranges[ix].Start > slot {
		return -1
	}
	return ix
}

// WithSlot returns a new SlotMap where slot is served by addr, all other
// slots being unchanged. The receiver is not modified. If slot is not a
// valid hash slot or is already served by addr, the receiver is returned.
func (m *SlotMap) WithSlot(slot int, addr NodeAddr) *SlotMap {
	ix := m.find(slot)
	if ix < 0 || m.ranges[ix].Addr == addr {
		return m
	}

	cur := m.ranges[ix]
	rs := make([]SlotRange, 0, len(m.ranges)+2)
	rs = append(rs, m.ranges[:ix]...)
	if cur.Start < slot {
		rs = append(rs, SlotRange{Start: cur.Start, End: slot - 1, Addr: cur.Addr})
	}
	rs = append(rs, SlotRange{Start: slot, End: slot, Addr: addr})
	if slot < cur.End {
		rs = append(rs, SlotRange{Start: slot + 1, End: cur.End, Addr: cur.Addr})
	}
	rs = append(rs, m.ranges[ix+1:]...)
	return newSlotMap(rs)
}

// Ranges returns a copy of the slot ranges, sorted by start slot.
func (m *SlotMap) Ranges() []SlotRange {
	rs := make([]SlotRange, len(m.ranges))
	copy(rs, m.ranges)
	return rs
}

// Addrs returns the sorted list of distinct node addresses that serve at
// least one slot.
func (m *SlotMap) Addrs() []NodeAddr {
	addrs := make([]NodeAddr, len(m.addrs))
	copy(addrs, m.addrs)
	return addrs
}

// parseClusterSlots parses the reply to a CLUSTER SLOTS command. Only the
// master of each range is kept. An empty host in the reply is replaced by
// host, the host of the node that sent the reply.
func parseClusterSlots(reply interface{}, host string) ([]SlotRange, error) {
	vals, err := redis.Values(reply, nil)
	if err != nil {
		return nil, ErrProtocol.Wrap(err, "CLUSTER SLOTS reply is not an array")
	}
	if len(vals) == 0 {
		return nil, ErrClusterDown.New("node does not serve any slot")
	}

	ranges := make([]SlotRange, 0, len(vals))
	for i, v := range vals {
		elems, err := redis.Values(v, nil)
		if err != nil || len(elems) < 3 {
			return nil, ErrProtocol.New("CLUSTER SLOTS: invalid range at index %d", i)
		}
		start, err1 := redis.Int(elems[0], nil)
		end, err2 := redis.Int(elems[1], nil)
		if err1 != nil || err2 != nil {
			return nil, ErrProtocol.New("CLUSTER SLOTS: invalid range bounds at index %d", i)
		}

		master, err := redis.Values(elems[2], nil)
		if err != nil || len(master) < 2 {
			return nil, ErrProtocol.New("CLUSTER SLOTS: invalid node at index %d", i)
		}
		nodeHost, err1 := redis.String(master[0], nil)
		port, err2 := redis.Int(master[1], nil)
		if err1 != nil || err2 != nil || port <= 0 || port > 65535 {
			return nil, ErrProtocol.New("CLUSTER SLOTS: invalid node address at index %d", i)
		}
		if nodeHost == "" {
			nodeHost = host
		}
		ranges = append(ranges, SlotRange{Start: start, End: end, Addr: NodeAddr{Host: nodeHost, Port: port}})
	}
	return ranges, nil
}
