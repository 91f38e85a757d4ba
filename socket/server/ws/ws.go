/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package ws implements a server-side socket over the ws:// scheme using
// golang.org/x/net/websocket, whose Message codec already preserves frame
// boundaries so no extra length-prefixing is needed.
package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	libsck "github.com/sabouaram/detectmate-core/socket"
)

type inbound struct {
	payload []byte
	conn    *websocket.Conn
}

// Server is a Socket bound to address, accepting any number of websocket
// clients; Recv yields frames from any of them, Send replies on the
// connection the last frame arrived on.
type Server struct {
	ln      net.Listener
	httpSrv *http.Server
	onState libsck.LogFunc

	mu       sync.Mutex
	timeout  time.Duration
	lastConn *websocket.Conn

	in        chan inbound
	closed    chan struct{}
	closeOnce sync.Once
}

// New binds address (host:port) and serves the websocket upgrade at path "/".
func New(address string, onState libsck.LogFunc) (*Server, error) {
	if onState == nil {
		onState = func(libsck.ConnState, error) {}
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:      ln,
		onState: onState,
		in:      make(chan inbound, 16),
		closed:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("/", websocket.Handler(s.handle))
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		_ = s.httpSrv.Serve(ln)
	}()

	return s, nil
}

func (s *Server) handle(ws *websocket.Conn) {
	s.onState(libsck.ConnectionNew, nil)
	defer func() {
		s.onState(libsck.ConnectionClose, nil)
		_ = ws.Close()
	}()

	for {
		var p []byte
		if err := websocket.Message.Receive(ws, &p); err != nil {
			s.onState(libsck.ConnectionRead, err)
			return
		}
		s.onState(libsck.ConnectionRead, nil)

		select {
		case s.in <- inbound{payload: p, conn: ws}:
		case <-s.closed:
			return
		}
	}
}

func (s *Server) Recv(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	timeout := s.timeout
	s.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case m := <-s.in:
		s.mu.Lock()
		s.lastConn = m.conn
		s.mu.Unlock()
		return m.payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("socket: ws server closed")
	}
}

func (s *Server) Send(ctx context.Context, p []byte) error {
	s.mu.Lock()
	conn := s.lastConn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("socket: no pending request to reply to")
	}
	return websocket.Message.Send(conn, p)
}

func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.ln.Close()
}

func (s *Server) SetRecvTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}
