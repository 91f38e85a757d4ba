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
	"sync"
	"time"
)

// inprocRegistry keeps the named hubs backing the inproc:// scheme, so a
// server and client created with the same address in the same process find
// each other without a real transport.
var inprocRegistry = struct {
	mu   sync.Mutex
	hubs map[string]*inprocHub
}{hubs: map[string]*inprocHub{}}

type inprocHub struct {
	toServer chan inprocMsg
	mu       sync.Mutex
	clients  map[*inprocClientSocket]bool
}

type inprocMsg struct {
	payload []byte
	from    *inprocClientSocket
}

func getOrCreateHub(address string) *inprocHub {
	inprocRegistry.mu.Lock()
	defer inprocRegistry.mu.Unlock()
	h, ok := inprocRegistry.hubs[address]
	if !ok {
		h = &inprocHub{toServer: make(chan inprocMsg, 16), clients: map[*inprocClientSocket]bool{}}
		inprocRegistry.hubs[address] = h
	}
	return h
}

// NewInprocServer returns a Socket bound to address using an in-memory hub;
// Recv yields messages sent by any client dialing the same address, Send
// replies to the client whose message was last received.
func NewInprocServer(address string) Socket {
	h := getOrCreateHub(address)
	return &inprocServerSocket{hub: h, closed: make(chan struct{})}
}

// NewInprocClient dials the in-memory hub at address.
func NewInprocClient(address string) Socket {
	h := getOrCreateHub(address)
	c := &inprocClientSocket{hub: h, fromServer: make(chan []byte, 16), closed: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

type inprocServerSocket struct {
	hub       *inprocHub
	mu        sync.Mutex
	timeout   time.Duration
	lastFrom  *inprocClientSocket
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *inprocServerSocket) Recv(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	timeout := s.timeout
	s.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case m := <-s.hub.toServer:
		s.mu.Lock()
		s.lastFrom = m.from
		s.mu.Unlock()
		return m.payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("socket: inproc server closed")
	}
}

func (s *inprocServerSocket) Send(ctx context.Context, p []byte) error {
	s.mu.Lock()
	to := s.lastFrom
	s.mu.Unlock()
	if to == nil {
		return errors.New("socket: no pending request to reply to")
	}
	select {
	case to.fromServer <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *inprocServerSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *inprocServerSocket) SetRecvTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

type inprocClientSocket struct {
	hub        *inprocHub
	fromServer chan []byte
	mu         sync.Mutex
	timeout    time.Duration
	closed     chan struct{}
	closeOnce  sync.Once
}

func (c *inprocClientSocket) Send(ctx context.Context, p []byte) error {
	select {
	case c.hub.toServer <- inprocMsg{payload: p, from: c}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return errors.New("socket: inproc client closed")
	}
}

func (c *inprocClientSocket) Recv(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case p := <-c.fromServer:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("socket: inproc client closed")
	}
}

func (c *inprocClientSocket) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()
	})
	return nil
}

func (c *inprocClientSocket) SetRecvTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}
