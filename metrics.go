package redisc

import "time"

// Metrics receives the measurements of the cluster client. See package
// redisprom for a Prometheus implementation. Implementations must be safe
// for concurrent use.
type Metrics interface {
	// CommandDone is called when a command completes, with the number of
	// attempts made, the returned error (nil on success) and the total
	// duration including backoff delays.
	CommandDone(cmd string, attempts int, err error, d time.Duration)
	// Redirected is called for each MOVED, ASK or TRYAGAIN reply that
	// leads to a retry.
	Redirected(kind string)
	// ConnCreated is called after each attempt to create a connection.
	ConnCreated(addr string, err error)
	// Refreshed is called after each attempt to refresh the slot mapping.
	Refreshed(err error)
}

type nopMetrics struct{}

func (nopMetrics) CommandDone(string, int, error, time.Duration) {}
func (nopMetrics) Redirected(string)                             {}
func (nopMetrics) ConnCreated(string, error)                     {}
func (nopMetrics) Refreshed(error)                               {}
