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

// Package settings is the immutable, env-overridable typed configuration for
// a service instance: identity, addresses, timeouts, log policy, outputs.
package settings

import (
	"fmt"
	"time"
)

// Settings is frozen after Validate succeeds; nothing in the supervisor
// mutates it afterwards.
type Settings struct {
	ComponentName string `mapstructure:"component_name" yaml:"component_name"`
	ComponentID   string `mapstructure:"component_id" yaml:"component_id"`
	ComponentType string `mapstructure:"component_type" yaml:"component_type"`

	LogDir        string `mapstructure:"log_dir" yaml:"log_dir"`
	LogToConsole  bool   `mapstructure:"log_to_console" yaml:"log_to_console"`
	LogToFile     bool   `mapstructure:"log_to_file" yaml:"log_to_file"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`

	ManagerAddr               string `mapstructure:"manager_addr" yaml:"manager_addr"`
	ManagerRecvTimeoutMS      int    `mapstructure:"manager_recv_timeout" yaml:"manager_recv_timeout"`
	ManagerThreadJoinTimeoutS float64 `mapstructure:"manager_thread_join_timeout" yaml:"manager_thread_join_timeout"`

	EngineAddr          string   `mapstructure:"engine_addr" yaml:"engine_addr"`
	EngineAutostart     bool     `mapstructure:"engine_autostart" yaml:"engine_autostart"`
	EngineRecvTimeoutMS int      `mapstructure:"engine_recv_timeout" yaml:"engine_recv_timeout"`
	OutAddr             []string `mapstructure:"out_addr" yaml:"out_addr"`
	OutDialTimeoutMS    int      `mapstructure:"out_dial_timeout" yaml:"out_dial_timeout"`
	OutBufferSize       int      `mapstructure:"out_buffer_size" yaml:"out_buffer_size"`

	ConfigFile string `mapstructure:"config_file" yaml:"config_file"`

	// parsed forms, populated by Validate
	managerAddress Address
	engineAddress  Address
	outAddresses   []Address
}

// Defaults returns the field defaults from the specification's Settings table.
func Defaults() Settings {
	return Settings{
		ComponentType:             "core",
		LogDir:                    "./logs",
		LogToConsole:              true,
		LogToFile:                 true,
		LogLevel:                  "INFO",
		ManagerAddr:               "ipc:///tmp/detectmate.cmd.ipc",
		ManagerRecvTimeoutMS:      100,
		ManagerThreadJoinTimeoutS: 1.0,
		EngineAddr:                "ipc:///tmp/detectmate.engine.ipc",
		EngineAutostart:           true,
		EngineRecvTimeoutMS:       100,
		OutAddr:                   []string{},
		OutDialTimeoutMS:          1000,
		OutBufferSize:             8192,
	}
}

// Validate parses and validates every address, then derives component_id per
// the three-rule algorithm. It must run exactly once, right after loading.
func (s *Settings) Validate() error {
	m, err := NewAddress(s.ManagerAddr)
	if err != nil {
		return fmt.Errorf("manager_addr: %w", err)
	}
	e, err := NewAddress(s.EngineAddr)
	if err != nil {
		return fmt.Errorf("engine_addr: %w", err)
	}

	outs := make([]Address, 0, len(s.OutAddr))
	for i, raw := range s.OutAddr {
		a, err := NewAddress(raw)
		if err != nil {
			return fmt.Errorf("out_addr[%d]: %w", i, err)
		}
		outs = append(outs, a)
	}

	s.managerAddress = m
	s.engineAddress = e
	s.outAddresses = outs

	s.ComponentID = deriveComponentID(s.ComponentID, s.ComponentType, s.ComponentName, s.ManagerAddr, s.EngineAddr)

	return nil
}

func (s Settings) ManagerAddress() Address { return s.managerAddress }
func (s Settings) EngineAddress() Address  { return s.engineAddress }
func (s Settings) OutAddresses() []Address { return s.outAddresses }

func (s Settings) ManagerRecvTimeout() time.Duration {
	return time.Duration(s.ManagerRecvTimeoutMS) * time.Millisecond
}

func (s Settings) EngineRecvTimeout() time.Duration {
	return time.Duration(s.EngineRecvTimeoutMS) * time.Millisecond
}

func (s Settings) OutDialTimeout() time.Duration {
	return time.Duration(s.OutDialTimeoutMS) * time.Millisecond
}

func (s Settings) ManagerThreadJoinTimeout() time.Duration {
	return time.Duration(s.ManagerThreadJoinTimeoutS * float64(time.Second))
}
