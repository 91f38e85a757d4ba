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

// Package engine drives the receive -> process -> fan-out worker loop over
// one input socket and N output sockets.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/detectmate-core/ctxstore"
	liberr "github.com/sabouaram/detectmate-core/errors"
	liblog "github.com/sabouaram/detectmate-core/logger"
	"github.com/sabouaram/detectmate-core/processor"
	"github.com/sabouaram/detectmate-core/settings"
	libsck "github.com/sabouaram/detectmate-core/socket"
)

// MetaKey names the values an Engine publishes into every processor call's
// context via ctxstore, so a Processor can identify its owning component
// without the interface growing extra parameters.
type MetaKey string

const (
	MetaComponentID   MetaKey = "component_id"
	MetaComponentType MetaKey = "component_type"
	MetaEngineAddr    MetaKey = "engine_addr"
)

type State uint8

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// SocketFactory produces a bound socket for an engine input or output
// address. The core never references a concrete transport outside this
// seam.
type SocketFactory interface {
	CreateInput(ctx context.Context, addr settings.Address, log liblog.Logger) (libsck.Socket, error)
	CreateOutput(ctx context.Context, addr settings.Address, dialTimeout time.Duration, log liblog.Logger) (libsck.Socket, error)
}

// Engine owns one input socket and N output sockets and runs exactly one
// background worker driving the receive/process/fan-out loop.
type Engine struct {
	settings  settings.Settings
	processor processor.Processor
	log       liblog.Logger

	in  libsck.Socket
	out []libsck.Socket

	procCtx context.Context

	state atomic.Int32
	wg    sync.WaitGroup
}

// New builds the input and output sockets per the settings, autostarting if
// configured. A failure to build the input socket is returned. A failure to
// build an output socket is logged and that address is skipped, so New still
// returns an Engine, possibly with no outputs (reply mode); once the input
// socket exists, New returns no error.
func New(ctx context.Context, s settings.Settings, p processor.Processor, factory SocketFactory, log liblog.Logger) (*Engine, error) {
	e := &Engine{settings: s, processor: p, log: log}

	procCtx, meta := ctxstore.New[MetaKey, string](context.Background())
	meta.Set(MetaComponentID, s.ComponentID)
	meta.Set(MetaComponentType, s.ComponentType)
	meta.Set(MetaEngineAddr, s.EngineAddress().String())
	e.procCtx = procCtx

	in, err := factory.CreateInput(ctx, s.EngineAddress(), log)
	if err != nil {
		return nil, liberr.New(liberr.CodeTransport, "create engine input socket", err)
	}
	in.SetRecvTimeout(s.EngineRecvTimeout())
	e.in = in

	for _, addr := range s.OutAddresses() {
		out, err := factory.CreateOutput(ctx, addr, s.OutDialTimeout(), log)
		if err != nil {
			log.WithField("addr", addr.String()).Error("failed to create engine output socket: ", err)
			continue
		}
		e.out = append(e.out, out)
	}

	if s.EngineAutostart {
		e.Start()
	}

	return e, nil
}

// Start is idempotent: spawning a second worker while one runs is a no-op.
func (e *Engine) Start() string {
	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return "engine already running"
	}
	e.wg.Add(1)
	go e.run()
	return "engine started"
}

func (e *Engine) run() {
	defer e.wg.Done()

	for State(e.state.Load()) == StateRunning {
		ctx, cancel := context.WithTimeout(context.Background(), e.settings.EngineRecvTimeout())
		raw, err := e.in.Recv(ctx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				continue // recv timeout, recheck stop predicate
			}
			if State(e.state.Load()) == StateStopping {
				return
			}
			e.log.Error("engine recv error: ", err)
			continue
		}

		if len(raw) == 0 {
			continue
		}

		out, perr := e.processor.Run(e.procCtx, raw)
		if perr != nil {
			e.log.Error("engine processor error: ", perr)
			continue
		}
		if out == nil {
			continue
		}

		e.fanOut(out)
	}
}

func (e *Engine) fanOut(payload []byte) {
	sendCtx := context.Background()

	if len(e.out) == 0 {
		if err := e.in.Send(sendCtx, payload); err != nil {
			e.log.Error("engine reply send error: ", err)
		}
		return
	}

	for _, o := range e.out {
		if err := o.Send(sendCtx, payload); err != nil {
			e.log.Error("engine output send error: ", err)
		}
	}
}

// Stop is idempotent: it returns immediately if already stopped. It closes
// the input socket first (unblocking a pending Recv), then every output
// socket concurrently (logging individual failures, matching "remain
// running even if one output is permanently unreachable" outside of
// shutdown), then joins the worker with ManagerThreadJoinTimeout-equivalent
// patience. A failure to close the input socket is a lifecycle error, not
// just a log line: it is raised via the errors package and surfaced in the
// returned message.
func (e *Engine) Stop(joinTimeout time.Duration) string {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		if State(e.state.Load()) == StateStopped {
			return "engine not running"
		}
		return "engine not running"
	}

	var closeErr error
	if err := e.in.Close(); err != nil {
		closeErr = liberr.New(liberr.CodeEngineLifecycle, "close engine input socket", err)
		e.log.Error("engine stop error: ", closeErr)
	}

	var g errgroup.Group
	for _, o := range e.out {
		o := o
		g.Go(func() error {
			if err := o.Close(); err != nil {
				e.log.Error("engine output socket close error: ", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(joinTimeout):
		e.state.Store(int32(StateStopped))
		return "error: engine worker failed to stop within timeout"
	}

	e.state.Store(int32(StateStopped))

	if closeErr != nil {
		return "error: " + closeErr.Error()
	}
	return "engine stopped"
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) IsRunning() bool {
	return State(e.state.Load()) == StateRunning
}
