// Package redistest provides test helpers to simulate redis cluster
// nodes, either in memory with a MockDialer or over TCP with a
// MockServer.
package redistest
