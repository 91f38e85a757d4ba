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

// Package ws implements a client-side socket over the ws:// scheme.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	libsck "github.com/sabouaram/detectmate-core/socket"
)

// New dials a websocket server at url (e.g. "ws://host:port/") in the
// background, retrying every retryInterval: a peer that starts listening
// after New returns still gets attached, mirroring the other transports'
// late-binding dial behavior.
func New(ctx context.Context, url, origin string, retryInterval time.Duration) (libsck.Socket, error) {
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}

	c := &client{
		url:    url,
		origin: origin,
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}

	if ws, err := websocket.Dial(url, "", origin); err == nil {
		c.setConn(ws)
		close(c.ready)
		return c, nil
	}

	go c.dialRetry(retryInterval)
	return c, nil
}

type client struct {
	url, origin string

	mu      sync.Mutex
	ws      *websocket.Conn
	timeout time.Duration
	ready   chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func (c *client) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *client) dialRetry(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			ws, err := websocket.Dial(c.url, "", c.origin)
			if err != nil {
				continue
			}
			c.setConn(ws)
			close(c.ready)
			return
		}
	}
}

func (c *client) waitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.closed:
		return errors.New("socket: ws client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *client) Recv(ctx context.Context) ([]byte, error) {
	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	ws, timeout := c.ws, c.timeout
	c.mu.Unlock()

	if timeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(timeout))
	}
	var p []byte
	if err := websocket.Message.Receive(ws, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *client) Send(ctx context.Context, p []byte) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	return websocket.Message.Send(ws, p)
}

func (c *client) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	return ws.Close()
}

func (c *client) SetRecvTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}
