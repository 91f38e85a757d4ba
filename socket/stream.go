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

package socket

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// LogFunc reports a connection's lifecycle transition, mirroring the
// RegisterFuncInfo/RegisterFuncError callbacks a server exposes.
type LogFunc func(state ConnState, err error)

func noopLog(ConnState, error) {}

type inbound struct {
	payload []byte
	reply   func([]byte) error
}

// streamServer accepts connections on a stream network (tcp*, unix) and
// turns each frame read off any connection into an inbound message. Replying
// writes the frame back on the same connection the message arrived on,
// which is what the manager's request/reply dialogs need; the engine's
// fire-and-forget input socket simply never calls Send.
type streamServer struct {
	ln      net.Listener
	onState LogFunc

	mu        sync.Mutex
	timeout   time.Duration
	lastReply func([]byte) error

	in     chan inbound
	closed chan struct{}
	once   sync.Once
}

// NewServerSocket serves the already-bound ln and returns a Socket whose Recv
// yields frames read from any accepted connection, and whose Send writes a
// reply frame back to the connection the most recent Recv came from.
func NewServerSocket(ln net.Listener, onState LogFunc) Socket {
	if onState == nil {
		onState = noopLog
	}
	s := &streamServer{
		ln:      ln,
		onState: onState,
		in:      make(chan inbound, 16),
		closed:  make(chan struct{}),
	}
	go s.acceptLoop()
	return s
}

func (s *streamServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ErrorFilter(err) != nil {
				s.onState(ConnectionNew, err)
			}
			return
		}
		s.onState(ConnectionNew, nil)
		go s.serveConn(conn)
	}
}

func (s *streamServer) serveConn(conn net.Conn) {
	defer func() {
		s.onState(ConnectionClose, nil)
		_ = conn.Close()
	}()

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		p, err := ReadFrame(conn)
		if err != nil {
			if ErrorFilter(err) != nil {
				s.onState(ConnectionRead, err)
			}
			return
		}
		s.onState(ConnectionRead, nil)

		reply := func(out []byte) error {
			s.onState(ConnectionWrite, nil)
			err := WriteFrame(conn, out)
			if err != nil {
				s.onState(ConnectionWrite, err)
			}
			return err
		}

		select {
		case s.in <- inbound{payload: p, reply: reply}:
		case <-s.closed:
			return
		}
	}
}

func (s *streamServer) Recv(ctx context.Context) ([]byte, error) {
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
		s.lastReply = m.reply
		s.mu.Unlock()
		return m.payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("socket: server closed")
	}
}

func (s *streamServer) Send(ctx context.Context, p []byte) error {
	s.mu.Lock()
	reply := s.lastReply
	s.mu.Unlock()

	if reply == nil {
		return errors.New("socket: no pending request to reply to")
	}
	return reply(p)
}

func (s *streamServer) Close() error {
	s.once.Do(func() { close(s.closed) })
	return s.ln.Close()
}

func (s *streamServer) SetRecvTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// NewClientSocket dials network/address in the background, retrying every
// retryInterval until the first successful connection is made or the socket
// is closed, so a client started before its server is listening still
// succeeds. ctx does not stop the retry; Send and Recv wait for the
// connection only as long as their own ctx allows.
func NewClientSocket(ctx context.Context, network, address string, dialTimeout, retryInterval time.Duration, onState LogFunc) (Socket, error) {
	if onState == nil {
		onState = noopLog
	}
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}

	c := &streamClient{
		network:     network,
		address:     address,
		dialTimeout: dialTimeout,
		onState:     onState,
		ready:       make(chan struct{}),
		closed:      make(chan struct{}),
	}

	conn, err := c.dialOnce()
	if err == nil {
		c.setConn(conn)
		close(c.ready)
		return c, nil
	}

	go c.dialRetry(retryInterval)
	return c, nil
}

type streamClient struct {
	network, address string
	dialTimeout       time.Duration
	onState           LogFunc

	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	ready   chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func (c *streamClient) dialOnce() (net.Conn, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.Dial(c.network, c.address)
	if err != nil {
		c.onState(ConnectionDial, err)
		return nil, err
	}
	c.onState(ConnectionDial, nil)
	return conn, nil
}

func (c *streamClient) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *streamClient) dialRetry(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			conn, err := c.dialOnce()
			if err == nil {
				c.setConn(conn)
				close(c.ready)
				return
			}
		}
	}
}

func (c *streamClient) waitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return errors.New("socket: client closed")
	}
}

func (c *streamClient) Recv(ctx context.Context) ([]byte, error) {
	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	conn := c.conn
	timeout := c.timeout
	c.mu.Unlock()

	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	p, err := ReadFrame(conn)
	if err != nil {
		return nil, ErrorFilter(err)
	}
	return p, nil
}

func (c *streamClient) Send(ctx context.Context, p []byte) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	return WriteFrame(conn, p)
}

func (c *streamClient) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *streamClient) SetRecvTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// RemoveStaleUnixSocket removes a leftover unix rendezvous file before bind,
// matching the stale-IPC-file cleanup the original relies on.
func RemoveStaleUnixSocket(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
