/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package config holds the validated client/server connection parameters for
// every concrete socket transport.
package config

import (
	"errors"
	"fmt"
	"net"

	libprm "github.com/sabouaram/detectmate-core/file/perm"
	libptc "github.com/sabouaram/detectmate-core/network/protocol"
)

const MaxGID = 32767

var (
	ErrInvalidProtocol = errors.New("invalid protocol")
	ErrInvalidTLSConfig = errors.New("invalid TLS config")
	ErrInvalidGroup     = errors.New("invalid unix group")
)

// TLS carries the optional transport-layer-security parameters for a socket.
type TLS struct {
	Enable   bool   `mapstructure:"enable" yaml:"enable"`
	CertFile string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file"`
}

func (t TLS) Validate() error {
	if !t.Enable {
		return nil
	}
	if t.CertFile == "" || t.KeyFile == "" {
		return fmt.Errorf("%w: cert_file and key_file are required when enabled", ErrInvalidTLSConfig)
	}
	return nil
}

// Client is the dial-side socket configuration, used by the engine's output
// sockets and by the CLI's manager dialogs.
type Client struct {
	Network libptc.NetworkProtocol `mapstructure:"network" yaml:"network"`
	Address string                 `mapstructure:"address" yaml:"address"`
	TLS     TLS                    `mapstructure:"tls" yaml:"tls"`
}

func (c Client) Validate() error {
	if err := c.TLS.Validate(); err != nil {
		return err
	}

	switch c.Network {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		if _, err := net.ResolveTCPAddr(c.Network.String(), c.Address); err != nil {
			return err
		}
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		if _, err := net.ResolveUDPAddr(c.Network.String(), c.Address); err != nil {
			return err
		}
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		if _, err := net.ResolveUnixAddr(c.Network.String(), c.Address); err != nil {
			return err
		}
	default:
		return ErrInvalidProtocol
	}

	return nil
}

// Server is the bind-side socket configuration, used by the manager's
// request socket and by the engine's input socket.
type Server struct {
	Network   libptc.NetworkProtocol `mapstructure:"network" yaml:"network"`
	Address   string                 `mapstructure:"address" yaml:"address"`
	PermFile  libprm.Perm            `mapstructure:"perm_file" yaml:"perm_file"`
	GroupPerm int32                  `mapstructure:"group_perm" yaml:"group_perm"`
	TLS       TLS                    `mapstructure:"tls" yaml:"tls"`
}

func (s Server) Validate() error {
	if err := s.TLS.Validate(); err != nil {
		return err
	}

	if s.GroupPerm < 0 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}

	switch s.Network {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		if _, err := net.ResolveTCPAddr(s.Network.String(), s.Address); err != nil {
			return err
		}
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		if _, err := net.ResolveUDPAddr(s.Network.String(), s.Address); err != nil {
			return err
		}
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		if _, err := net.ResolveUnixAddr(s.Network.String(), s.Address); err != nil {
			return err
		}
	default:
		return ErrInvalidProtocol
	}

	return nil
}
