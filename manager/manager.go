/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package manager serves the request/reply command channel and dispatches
// textual verbs to handlers registered by the owning service.
package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	liblog "github.com/sabouaram/detectmate-core/logger"
	libsck "github.com/sabouaram/detectmate-core/socket"
)

// Handler serves one command verb. It receives the full, trimmed command
// string so a handler can parse its own payload; handlers that don't need it
// simply ignore the parameter.
type Handler func(cmd string) (string, error)

// Manager owns the command socket and the verb registry; it is built once
// and its handlers registered before Start is called.
type Manager struct {
	sock        libsck.Socket
	recvTimeout time.Duration
	joinTimeout time.Duration
	log         liblog.Logger

	mu       sync.RWMutex
	registry map[string]Handler

	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// New builds a Manager bound to sock. recvTimeout bounds each Recv call;
// joinTimeout bounds how long Close waits for the worker to exit.
func New(sock libsck.Socket, recvTimeout, joinTimeout time.Duration, log liblog.Logger) *Manager {
	sock.SetRecvTimeout(recvTimeout)
	return &Manager{
		sock:        sock,
		recvTimeout: recvTimeout,
		joinTimeout: joinTimeout,
		log:         log,
		registry:    map[string]Handler{},
		stopped:     make(chan struct{}),
	}
}

// Register binds verb (case-insensitively) to h. Registering "ping"
// overrides the built-in pong reply.
func (m *Manager) Register(verb string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[strings.ToLower(verb)] = h
}

// Start launches the command worker. It is not idempotent by design: a
// Manager is started exactly once, at Service construction time.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.loop()
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopped:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.recvTimeout)
		raw, err := m.sock.Recv(ctx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return
		}

		cmd := strings.TrimSpace(string(raw))
		if cmd == "" {
			continue
		}

		reply := m.dispatch(cmd)

		if err := m.sock.Send(context.Background(), []byte(reply)); err != nil {
			return
		}
	}
}

func (m *Manager) dispatch(cmd string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			reply = fmt.Sprintf("error: %v", r)
		}
	}()

	verb := strings.ToLower(strings.Fields(cmd)[0])

	m.mu.RLock()
	h, ok := m.registry[verb]
	m.mu.RUnlock()

	if ok {
		out, err := h(cmd)
		if err != nil {
			return fmt.Sprintf("error: %s", err)
		}
		return out
	}

	if verb == "ping" {
		return "pong"
	}

	return fmt.Sprintf("unknown command: %s", cmd)
}

// Close tears down the Manager: signals the worker to stop, lets an
// in-flight command finish, closes the socket (unblocking a pending Recv),
// then joins the worker with joinTimeout.
func (m *Manager) Close() error {
	var sockErr error

	m.once.Do(func() {
		close(m.stopped)
		time.Sleep(50 * time.Millisecond)
		sockErr = m.sock.Close()
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(m.joinTimeout):
	}

	return sockErr
}
