// Package redisc implements a redis cluster client on top of
// the redigo client package. See http://redis.io/topics/cluster-spec
// for details.
//
// Cluster
//
// The Cluster type manages a redis cluster. It keeps a mapping of the
// 16384 hash slots to the nodes that serve them, and one connection per
// node. Its main method is Do, which sends a command to the node that
// serves the slot of its first argument, assumed to be a key:
//
//     cluster := &redisc.Cluster{
//       StartupNodes: []string{"127.0.0.1:7000", "127.0.0.1:7001"},
//     }
//     defer cluster.Close()
//
//     v, err := redis.String(cluster.Do(ctx, "GET", "some-key"))
//
// The mapping is loaded from the startup nodes with CLUSTER SLOTS on the
// first command, or explicitly with the Refresh method. It is kept
// up-to-date afterwards based on the MOVED replies.
//
// Connections are created on first use and checked with a PING. A
// connection that fails while in use is closed and replaced by a new one
// on the next command to that node. The Dialer field can be set to
// provide a different transport (see package transport).
//
// A cluster must be closed once it is no longer used to release
// its resources.
//
// Redirections
//
// The redis cluster may return MOVED and ASK errors when the node
// that received the command doesn't currently hold the slot corresponding
// to the key, and TRYAGAIN errors during a resharding. Do handles those
// replies automatically:
//
//     - MOVED updates the mapping for that slot and sends the command
//       to the new node;
//     - ASK sends the command once to the indicated node, preceded by
//       ASKING, without updating the mapping;
//     - TRYAGAIN sends the command again to the same node after a delay
//       returned by the Backoff function.
//
// Each of those retries consumes one unit of the Retries budget. The zero
// value is unbounded; MaxRetries(n) allows at most n retries, after which
// the last reply is returned as error. CLUSTERDOWN replies, connection
// failures and other error replies end the command immediately.
//
// Errors
//
// Errors raised by the package belong to the errorx namespace Errors
// (e.g. ErrClosed, ErrClusterDown, ErrConnection) and are terminal, as
// reported by IsTerminal. Error replies sent by the nodes are returned as
// *ServerError values, or *RedirError for MOVED and ASK replies, and can
// be inspected with IsTryAgain, IsCrossSlot, IsClusterDown and
// ParseRedir.
//
// The Conn method returns a redigo redis.Conn that executes its commands
// with Do, for code that expects that interface.
//
package redisc
