package channel

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"

	"github.com/ka2n/printbridge"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Handler runs one command, see printbridge.Dispatcher.
type Handler interface {
	Dispatch(ctx context.Context, method string, args map[string]any) (any, error)
}

// Server accepts connections concurrently and dispatches their commands one
// at a time.
type Server struct {
	Handler Handler
	Log     *logrus.Entry

	mu sync.Mutex

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool
}

// Listen creates the unix socket at path, replacing a stale one.
func Listen(path string) (net.Listener, error) {
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", path)
	}
	if err := os.Chmod(path, 0700); err != nil {
		ln.Close()
		return nil, errors.Wrapf(err, "chmod %s", path)
	}
	return ln, nil
}

// Serve accepts connections until ln is closed or ctx is done. Closing the
// listener is not an error. On return the listener and every open client
// connection are closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	s.connsMu.Lock()
	s.closed = false
	s.connsMu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		ln.Close()
		s.closeConns()
	}()

	var wg sync.WaitGroup
	defer func() {
		cancel()
		<-stopped
		wg.Wait()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		if !s.track(c) {
			c.Close()
			return nil
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrack(c)
			s.handleConn(ctx, c)
		}()
	}
}

func (s *Server) track(c net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closed {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// closeConns unblocks handlers still waiting for a request.
func (s *Server) closeConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()

	var req Request
	if err := json.NewDecoder(c).Decode(&req); err != nil {
		s.log().WithError(err).Warn("invalid request")
		s.reply(c, Response{Error: &printbridge.CallError{Code: CodeBadRequest, Message: "invalid request: " + err.Error()}})
		return
	}
	s.reply(c, s.Handle(ctx, req))
}

// Handle dispatches req and encodes the outcome.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	s.mu.Lock()
	result, err := s.Handler.Dispatch(ctx, req.Method, req.Arguments)
	s.mu.Unlock()

	var callErr *printbridge.CallError
	switch {
	case errors.Is(err, printbridge.ErrNotImplemented):
		return Response{NotImplemented: true}
	case errors.As(err, &callErr):
		return Response{Error: callErr}
	case err != nil:
		return Response{Error: &printbridge.CallError{Code: "ERROR", Message: err.Error()}}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return Response{Error: &printbridge.CallError{Code: "ERROR", Message: errors.Wrap(err, "encode result").Error()}}
	}
	return Response{Result: raw}
}

func (s *Server) reply(c net.Conn, resp Response) {
	if err := json.NewEncoder(c).Encode(resp); err != nil {
		s.log().WithError(err).Warn("write response")
	}
}

func (s *Server) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.WithField("component", "channel")
	}
	return s.Log
}
