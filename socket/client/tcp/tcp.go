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

// Package tcp implements a client-side socket over TCP, dialing with
// background retry so an output socket can be created before its peer is
// listening.
package tcp

import (
	"context"
	"time"

	libsck "github.com/sabouaram/detectmate-core/socket"
	libcfg "github.com/sabouaram/detectmate-core/socket/config"
)

// New dials cfg.Address, retrying in the background until it connects or the
// socket is closed.
func New(ctx context.Context, cfg libcfg.Client, dialTimeout, retryInterval time.Duration, onState libsck.LogFunc) (libsck.Socket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return libsck.NewClientSocket(ctx, cfg.Network.String(), cfg.Address, dialTimeout, retryInterval, onState)
}
