package redisc

import "github.com/gomodule/redigo/redis"

// signal is the classification of the reply to one attempt of a command.
type signal int

const (
	sigSuccess signal = iota
	sigMoved
	sigAsk
	sigTryAgain
	sigClusterDown
	sigFatal
)

var signalNames = [...]string{
	sigSuccess:     "success",
	sigMoved:       "MOVED",
	sigAsk:         "ASK",
	sigTryAgain:    "TRYAGAIN",
	sigClusterDown: "CLUSTERDOWN",
	sigFatal:       "fatal",
}

func (s signal) String() string {
	return signalNames[s]
}

// reply is a classified reply. For sigMoved and sigAsk, slot and addr
// are the target of the redirection.
type reply struct {
	sig   signal
	value interface{}
	err   error
	slot  int
	addr  NodeAddr
}

// classify classifies the value and error returned by a node at addr.
// Server errors are expected as redis.Error values, any other error is
// fatal.
func classify(v interface{}, err error, from NodeAddr) reply {
	if err == nil {
		return reply{sig: sigSuccess, value: v}
	}

	rerr, ok := err.(redis.Error)
	if !ok {
		return reply{sig: sigFatal, err: err}
	}

	txt := string(rerr)
	if re, ok := parseRedir(txt, from.Host); ok {
		if re == nil {
			return reply{sig: sigFatal, err: ErrProtocol.New("invalid redirection %q", txt).
				WithProperty(PropertyAddr, from.String())}
		}
		sig := sigMoved
		if re.Type == "ASK" {
			sig = sigAsk
		}
		return reply{sig: sig, err: re, slot: re.NewSlot, addr: re.Addr}
	}

	se := newServerError(txt)
	switch se.Code {
	case "TRYAGAIN":
		return reply{sig: sigTryAgain, err: se}
	case "CLUSTERDOWN":
		return reply{sig: sigClusterDown, err: se}
	default:
		return reply{sig: sigFatal, err: se}
	}
}

// action is what the attempt loop does with a classified reply.
type action int

const (
	// return the value to the caller
	actReturn action = iota
	// install the new owner of the slot and send again
	actUpdateRetry
	// send again once to the indicated node, preceded by ASKING
	actRedirectOnce
	// wait, then send again to the same node
	actBackoffRetry
	// return the error to the caller
	actFail
)

// decide returns the action to take for a reply classified as s. Only
// actUpdateRetry, actRedirectOnce and actBackoffRetry consume the retry
// budget.
func decide(s signal) action {
	switch s {
	case sigSuccess:
		return actReturn
	case sigMoved:
		return actUpdateRetry
	case sigAsk:
		return actRedirectOnce
	case sigTryAgain:
		return actBackoffRetry
	default:
		return actFail
	}
}
