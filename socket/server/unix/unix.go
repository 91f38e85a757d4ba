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

// Package unix implements a server-side socket over a unix domain socket,
// the transport behind the ipc:// scheme.
package unix

import (
	"net"
	"os"

	libsck "github.com/sabouaram/detectmate-core/socket"
	libcfg "github.com/sabouaram/detectmate-core/socket/config"
)

// New binds the unix rendezvous file at cfg.Address, removing a stale one
// left behind by a previous crash, and applies the configured permissions.
func New(cfg libcfg.Server, onState libsck.LogFunc) (libsck.Socket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := libsck.RemoveStaleUnixSocket(cfg.Address); err != nil {
		return nil, err
	}

	ln, err := net.Listen(cfg.Network.String(), cfg.Address)
	if err != nil {
		return nil, err
	}

	if cfg.PermFile != 0 {
		if err := os.Chmod(cfg.Address, cfg.PermFile.FileMode()); err != nil {
			_ = ln.Close()
			return nil, err
		}
	}
	if cfg.GroupPerm > 0 {
		if err := os.Chown(cfg.Address, -1, int(cfg.GroupPerm)); err != nil {
			_ = ln.Close()
			return nil, err
		}
	}

	return libsck.NewServerSocket(ln, onState), nil
}
