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

package settings

import (
	"fmt"
	"net/url"
)

var allowedSchemes = map[string]bool{
	"ipc":     true,
	"tcp":     true,
	"tls+tcp": true,
	"ws":      true,
	"inproc":  true,
}

// Address is a validated URL on one of the supported transport schemes.
type Address struct {
	raw string
	u   *url.URL
}

// NewAddress parses and validates s.
func NewAddress(s string) (Address, error) {
	var a Address
	if err := a.parse(s); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (a *Address) parse(s string) error {
	if s == "" {
		*a = Address{}
		return nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}

	if !allowedSchemes[u.Scheme] {
		return fmt.Errorf("invalid address %q: unsupported scheme %q", s, u.Scheme)
	}

	switch u.Scheme {
	case "tcp", "tls+tcp", "ws":
		if u.Port() == "" {
			return fmt.Errorf("invalid address %q: port is required for scheme %q", s, u.Scheme)
		}
	case "ipc":
		if u.Path == "" && u.Opaque == "" {
			return fmt.Errorf("invalid address %q: path is required for scheme ipc", s)
		}
	}

	a.raw = s
	a.u = u
	return nil
}

func (a Address) String() string {
	return a.raw
}

func (a Address) Scheme() string {
	if a.u == nil {
		return ""
	}
	return a.u.Scheme
}

// Path returns the filesystem/ipc path portion of the address, preferring
// Opaque (used for "ipc:///tmp/x.ipc"-style URLs parsed without //) to Path.
func (a Address) Path() string {
	if a.u == nil {
		return ""
	}
	if a.u.Opaque != "" {
		return a.u.Opaque
	}
	return a.u.Path
}

// Host returns "host:port" for network schemes.
func (a Address) Host() string {
	if a.u == nil {
		return ""
	}
	return a.u.Host
}

func (a Address) IsZero() bool {
	return a.raw == ""
}

func (a *Address) UnmarshalText(text []byte) error {
	return a.parse(string(text))
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.raw), nil
}
