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

// Package service composes Manager and Engine under one identity and
// exposes the canonical lifecycle commands.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sabouaram/detectmate-core/configmgr"
	"github.com/sabouaram/detectmate-core/engine"
	liberr "github.com/sabouaram/detectmate-core/errors"
	liblog "github.com/sabouaram/detectmate-core/logger"
	"github.com/sabouaram/detectmate-core/manager"
	"github.com/sabouaram/detectmate-core/processor"
	"github.com/sabouaram/detectmate-core/settings"
)

// SetupFunc is the subclass hook run when a caller Acquires the service, the
// Go rendition of Python's setup_io(); it is where a concrete component
// would load models or warm caches.
type SetupFunc func(ctx context.Context) error

// Service composes a Manager and an Engine under one identity, owning the
// stop latch and the optional ConfigManager.
type Service struct {
	id       string
	settings settings.Settings
	log      liblog.Logger

	mgr *manager.Manager
	eng *engine.Engine
	cfg *configmgr.Manager

	setup SetupFunc

	stopCh        chan struct{}
	stopOnce      sync.Once
	stopRequested atomic.Bool
}

// New performs the construction order mandated for every component:
// settings/id/logger, the processor, the Manager (with canonical commands
// registered), the Engine (which may autostart), and, if config_file is
// set, the ConfigManager.
func New(ctx context.Context, s settings.Settings, p processor.Processor, factory engine.SocketFactory, schema configmgr.Schema, log liblog.Logger) (*Service, error) {
	svc := &Service{
		id:       s.ComponentID,
		settings: s,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	mgrSock, err := factory.CreateInput(ctx, s.ManagerAddress(), log)
	if err != nil {
		return nil, liberr.New(liberr.CodeTransport, "create manager socket", err)
	}
	svc.mgr = manager.New(mgrSock, s.ManagerRecvTimeout(), s.ManagerThreadJoinTimeout(), log)
	svc.registerCommands()

	eng, err := engine.New(ctx, s, p, factory, log)
	if err != nil {
		_ = svc.mgr.Close()
		return nil, err
	}
	svc.eng = eng

	if s.ConfigFile != "" {
		cfg, err := configmgr.New(s.ConfigFile, schema)
		if err != nil {
			_ = svc.mgr.Close()
			_ = svc.eng.Stop(s.ManagerThreadJoinTimeout())
			return nil, err
		}
		svc.cfg = cfg
	}

	svc.mgr.Start()

	return svc, nil
}

// SetSetup installs the setup_io-equivalent hook run by Acquire.
func (s *Service) SetSetup(fn SetupFunc) {
	s.setup = fn
}

func (s *Service) registerCommands() {
	s.mgr.Register("start", func(string) (string, error) {
		return s.eng.Start(), nil
	})
	s.mgr.Register("stop", func(string) (string, error) {
		return s.cmdStop(), nil
	})
	s.mgr.Register("status", func(string) (string, error) {
		return s.cmdStatus()
	})
	s.mgr.Register("reconfigure", func(cmd string) (string, error) {
		return s.cmdReconfigure(cmd), nil
	})
}

// cmdStop is idempotent: the first call sets the lifecycle latch and stops
// the Engine; every subsequent call observes the latch already set and
// replies without touching the Engine again.
func (s *Service) cmdStop() string {
	if !s.stopRequested.CompareAndSwap(false, true) {
		return "already stopping or stopped"
	}

	s.stopOnce.Do(func() { close(s.stopCh) })

	msg := s.eng.Stop(s.settings.ManagerThreadJoinTimeout())
	if strings.HasPrefix(msg, "error:") {
		return fmt.Sprintf("error: failed to stop engine - %s", strings.TrimPrefix(msg, "error: "))
	}
	return msg
}

type statusReport struct {
	Status struct {
		ComponentType string `json:"component_type"`
		ComponentID   string `json:"component_id"`
		Running       bool   `json:"running"`
	} `json:"status"`
	Settings any `json:"settings"`
	Configs  any `json:"configs"`
}

func (s *Service) cmdStatus() (string, error) {
	var r statusReport
	r.Status.ComponentType = s.settings.ComponentType
	r.Status.ComponentID = s.settings.ComponentID
	r.Status.Running = s.eng.IsRunning()
	r.Settings = s.settings

	if s.cfg != nil {
		if v := s.cfg.Get(); v != nil {
			r.Configs = v
		} else {
			r.Configs = map[string]any{}
		}
	} else {
		r.Configs = map[string]any{}
		s.log.Warn("status requested with no config manager configured")
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// cmdReconfigure parses "reconfigure [persist] <json>": an optional literal
// "persist" keyword, then a JSON payload, validated through the
// ConfigManager and saved to disk only if persist was given.
func (s *Service) cmdReconfigure(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) < 2 {
		return "reconfigure: no-op (no payload)"
	}

	rest := fields[1:]
	persist := false
	if rest[0] == "persist" {
		persist = true
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return "reconfigure: no-op (no payload)"
	}

	payload := strings.Join(rest, " ")

	if s.cfg == nil {
		return "reconfigure: no config manager configured"
	}

	target := s.cfg.Blank()
	if target == nil {
		var raw map[string]any
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return "reconfigure: invalid JSON"
		}
		target = raw
	} else if err := json.Unmarshal([]byte(payload), target); err != nil {
		return "reconfigure: invalid JSON"
	}

	if err := s.cfg.Update(target); err != nil {
		return fmt.Sprintf("reconfigure: error - %s", err)
	}

	if persist {
		if err := s.cfg.Save(); err != nil {
			return fmt.Sprintf("reconfigure: error - %s", err)
		}
	}

	return "reconfigure: ok"
}

// Run blocks until the stop latch fires or ctx is cancelled, starting the
// Engine first if it is not already running.
func (s *Service) Run(ctx context.Context) error {
	if !s.eng.IsRunning() {
		s.log.Info(s.eng.Start())
	}

	select {
	case <-s.stopCh:
	case <-ctx.Done():
	}

	if s.eng.IsRunning() {
		s.log.Info(s.cmdStop())
	}

	return ctx.Err()
}

// Acquire is the Go rendition of Python's context-managed acquisition: it
// runs the setup hook and returns a release func the caller defers, which
// stops the Engine (if the lifecycle latch is unset) and tears down the
// Manager. Cleanup always runs even if the caller's own work panics,
// provided they defer the returned func immediately.
func (s *Service) Acquire(ctx context.Context) (func(), error) {
	if s.setup != nil {
		if err := s.setup(ctx); err != nil {
			return nil, err
		}
	}

	release := func() {
		if !s.stopRequested.Load() {
			s.log.Info(s.cmdStop())
		}
		if err := s.mgr.Close(); err != nil {
			s.log.Error("manager close error: ", err)
		}
		_ = s.log.Close()
	}

	return release, nil
}

func (s *Service) ID() string { return s.id }

func (s *Service) Settings() settings.Settings { return s.settings }

// ConfigManager returns the service's ConfigManager, or nil when no
// config_file was set at construction.
func (s *Service) ConfigManager() *configmgr.Manager { return s.cfg }
