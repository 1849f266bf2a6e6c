package redisc

import (
	"log"
	"time"
)

// Logger is used to report the events that happen during the cluster's
// lifetime.
type Logger interface {
	// Report is called for each event. It must be safe for concurrent use.
	Report(c *Cluster, event LogEvent)
}

// LogEvent is a sumtype for events to be logged.
type LogEvent interface {
	logEvent()
}

// LogConnected is logged when a connection to a node is established.
type LogConnected struct {
	Addr string
}

// LogConnectFailed is logged when a connection to a node could not be
// established or failed its handshake.
type LogConnectFailed struct {
	Addr  string
	Error error
}

// LogRefreshed is logged when a new slot mapping is installed.
type LogRefreshed struct {
	Addr   string // node that provided the mapping
	Ranges int
	Nodes  int
}

// LogRefreshFailed is logged when a node could not provide the slot
// mapping.
type LogRefreshFailed struct {
	Addr  string
	Error error
}

// LogRedirect is logged when a command is redirected by a MOVED or ASK
// reply.
type LogRedirect struct {
	Type string
	Slot int
	From string
	To   string
}

// LogTryAgain is logged when a command received a TRYAGAIN reply and is
// about to be sent again.
type LogTryAgain struct {
	Addr    string
	Attempt int
	Delay   time.Duration
}

func (LogConnected) logEvent()     {}
func (LogConnectFailed) logEvent() {}
func (LogRefreshed) logEvent()     {}
func (LogRefreshFailed) logEvent() {}
func (LogRedirect) logEvent()      {}
func (LogTryAgain) logEvent()      {}

// DefaultLogger is a Logger that prints events with the standard log
// package.
type DefaultLogger struct{}

// Report implements Logger.Report.
func (DefaultLogger) Report(c *Cluster, event LogEvent) {
	switch ev := event.(type) {
	case LogConnected:
		log.Printf("redisc %s: connected to %s", c.Name, ev.Addr)
	case LogConnectFailed:
		log.Printf("redisc %s: connection to %s failed: %v", c.Name, ev.Addr, ev.Error)
	case LogRefreshed:
		log.Printf("redisc %s: slot mapping from %s: %d ranges on %d nodes", c.Name, ev.Addr, ev.Ranges, ev.Nodes)
	case LogRefreshFailed:
		log.Printf("redisc %s: 'CLUSTER SLOTS' request to %s failed: %v", c.Name, ev.Addr, ev.Error)
	case LogRedirect:
		log.Printf("redisc %s: %s slot %d from %s to %s", c.Name, ev.Type, ev.Slot, ev.From, ev.To)
	case LogTryAgain:
		log.Printf("redisc %s: TRYAGAIN from %s on attempt %d, retrying in %s", c.Name, ev.Addr, ev.Attempt, ev.Delay)
	}
}

// NoopLogger is a Logger that discards all events.
type NoopLogger struct{}

// Report implements Logger.Report.
func (NoopLogger) Report(*Cluster, LogEvent) {}
