package redistest

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/slotroute/redisc/redistest/resp"
	"github.com/stretchr/testify/require"
)

// MockServer is a mock redis server listening on a TCP port of the
// loopback interface.
type MockServer struct {
	Addr string

	done chan struct{}
	wg   sync.WaitGroup
	h    Handler
	t    testing.TB
	l    net.Listener
}

// StartMockServer creates and starts a mock redis server. The handler is
// called for each command received by the server and the returned value is
// encoded in the redis protocol and sent to the client (see Handler for the
// supported values). The caller should close the server after use.
func StartMockServer(t testing.TB, handler Handler) *MockServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "net.Listen")

	s := &MockServer{
		Addr: l.Addr().String(),
		done: make(chan struct{}),
		h:    handler,
		t:    t,
		l:    l,
	}
	go s.serve()
	return s
}

// Close closes the mock redis server.
func (s *MockServer) Close() {
	select {
	case <-s.done:
		return
	default:
	}

	require.NoError(s.t, s.l.Close(), "Close listener")
	<-s.done
	exit := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exit)
	}()

	// wait for a few seconds for connections to finish, otherwise fail
	select {
	case <-exit:
		return
	case <-time.After(5 * time.Second):
		s.t.Fatal("failed to cleanly stop the mock server")
	}
}

func (s *MockServer) serve() {
	defer close(s.done)
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *MockServer) serveConn(c net.Conn) {
	defer s.wg.Done()

	go func() {
		<-s.done
		c.Close()
	}()

	br := bufio.NewReader(c)
	for {
		req, err := resp.ReadRequest(br)
		if err != nil {
			return
		}

		v := s.h(req[0], req[1:]...)
		if err, ok := v.(error); ok {
			// simulate a broken connection
			s.t.Logf("mock server: dropping connection: %v", err)
			c.Close()
			return
		}
		if err := resp.Encode(c, toWire(v)); err != nil {
			return
		}
	}
}

// toWire converts the handler's reply to the values understood by the
// resp encoder.
func toWire(v interface{}) interface{} {
	switch v := v.(type) {
	case Error:
		return resp.Error(v)
	case SimpleString:
		return resp.SimpleString(v)
	case Array:
		ar := make(resp.Array, len(v))
		for i, el := range v {
			ar[i] = toWire(el)
		}
		return ar
	default:
		return v
	}
}
