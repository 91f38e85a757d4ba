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

// Package tcp implements a server-side socket over TCP.
package tcp

import (
	"crypto/tls"
	"net"

	libsck "github.com/sabouaram/detectmate-core/socket"
	libcfg "github.com/sabouaram/detectmate-core/socket/config"
)

// New binds address and returns a Socket that accepts any number of
// connections, delivering every frame read from any of them through Recv.
func New(cfg libcfg.Server, onState libsck.LogFunc) (libsck.Socket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	network := cfg.Network.String()
	var (
		ln  net.Listener
		err error
	)

	if cfg.TLS.Enable {
		cert, cerr := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if cerr != nil {
			return nil, cerr
		}
		ln, err = tls.Listen(network, cfg.Address, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		ln, err = net.Listen(network, cfg.Address)
	}
	if err != nil {
		return nil, err
	}

	return libsck.NewServerSocket(ln, onState), nil
}
