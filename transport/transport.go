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

// Package transport maps the settings.Address scheme set onto the concrete
// socket transports, the single SocketFactory implementation the CLI wires
// into Engine and Service construction.
package transport

import (
	"context"
	"fmt"
	"time"

	liblog "github.com/sabouaram/detectmate-core/logger"
	libptc "github.com/sabouaram/detectmate-core/network/protocol"
	"github.com/sabouaram/detectmate-core/settings"
	libsck "github.com/sabouaram/detectmate-core/socket"
	clientinproc "github.com/sabouaram/detectmate-core/socket/client/inproc"
	clienttcp "github.com/sabouaram/detectmate-core/socket/client/tcp"
	clientunix "github.com/sabouaram/detectmate-core/socket/client/unix"
	clientws "github.com/sabouaram/detectmate-core/socket/client/ws"
	libcfg "github.com/sabouaram/detectmate-core/socket/config"
	serverinproc "github.com/sabouaram/detectmate-core/socket/server/inproc"
	servertcp "github.com/sabouaram/detectmate-core/socket/server/tcp"
	serverunix "github.com/sabouaram/detectmate-core/socket/server/unix"
	serverws "github.com/sabouaram/detectmate-core/socket/server/ws"
)

const defaultRetryInterval = 500 * time.Millisecond

// Factory implements engine.SocketFactory (and serves the Manager's and the
// CLI's request sockets too) by dispatching on addr.Scheme().
type Factory struct{}

func onState(log liblog.Logger) libsck.LogFunc {
	return func(state libsck.ConnState, err error) {
		if err == nil {
			return
		}
		if ferr := libsck.ErrorFilter(err); ferr == nil {
			return
		}
		log.WithField("conn_state", state.String()).Error("transport error: ", err)
	}
}

// CreateInput binds a server-side socket at addr.
func (Factory) CreateInput(ctx context.Context, addr settings.Address, log liblog.Logger) (libsck.Socket, error) {
	switch addr.Scheme() {
	case "ipc":
		return serverunix.New(libcfg.Server{Network: libptc.NetworkUnix, Address: addr.Path()}, onState(log))
	case "tcp", "tls+tcp":
		cfg := libcfg.Server{Network: libptc.NetworkTCP, Address: addr.Host()}
		if addr.Scheme() == "tls+tcp" {
			cfg.TLS.Enable = true
		}
		return servertcp.New(cfg, onState(log))
	case "ws":
		return serverws.New(addr.Host(), onState(log))
	case "inproc":
		return serverinproc.New(addr.Host())
	default:
		return nil, fmt.Errorf("transport: unsupported input scheme %q", addr.Scheme())
	}
}

// CreateOutput dials a client-side socket at addr, retrying in the
// background so a peer that starts later still gets attached.
func (Factory) CreateOutput(ctx context.Context, addr settings.Address, dialTimeout time.Duration, log liblog.Logger) (libsck.Socket, error) {
	switch addr.Scheme() {
	case "ipc":
		cfg := libcfg.Client{Network: libptc.NetworkUnix, Address: addr.Path()}
		return clientunix.New(ctx, cfg, dialTimeout, defaultRetryInterval, onState(log))
	case "tcp", "tls+tcp":
		cfg := libcfg.Client{Network: libptc.NetworkTCP, Address: addr.Host()}
		return clienttcp.New(ctx, cfg, dialTimeout, defaultRetryInterval, onState(log))
	case "ws":
		return clientws.New(ctx, "ws://"+addr.Host()+"/", "http://"+addr.Host(), defaultRetryInterval)
	case "inproc":
		return clientinproc.New(addr.Host())
	default:
		return nil, fmt.Errorf("transport: unsupported output scheme %q", addr.Scheme())
	}
}
