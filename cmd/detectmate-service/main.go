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

// Command detectmate-service is the reference CLI over a DetectMate-style
// pipeline service: it can boot one in-process, or talk to a running one
// over its command channel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	liblog "github.com/sabouaram/detectmate-core/logger"
	"github.com/sabouaram/detectmate-core/processor"
	"github.com/sabouaram/detectmate-core/service"
	"github.com/sabouaram/detectmate-core/settings"
	"github.com/sabouaram/detectmate-core/transport"
)

func main() {
	root := &cobra.Command{
		Use:   "detectmate-service",
		Short: "Control a DetectMate-style pipeline service",
	}

	var settingsPath, configPath string
	var persist, watch bool

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the service and block until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(settingsPath, configPath, watch)
		},
	}
	startCmd.Flags().StringVar(&settingsPath, "settings", "", "service settings YAML file (optional)")
	startCmd.Flags().StringVar(&configPath, "config", "", "parameters YAML file (optional)")
	startCmd.Flags().BoolVar(&watch, "watch", false, "reload parameters on config file change")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(settingsPath, "stop")
		},
	}
	stopCmd.Flags().StringVar(&settingsPath, "settings", "", "service settings YAML file")
	_ = stopCmd.MarkFlagRequired("settings")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Get the current status of a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(settingsPath, "status")
		},
	}
	statusCmd.Flags().StringVar(&settingsPath, "settings", "", "service settings YAML file")
	_ = statusCmd.MarkFlagRequired("settings")

	reconfigureCmd := &cobra.Command{
		Use:   "reconfigure",
		Short: "Push new parameters to a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconfigure(settingsPath, configPath, persist)
		},
	}
	reconfigureCmd.Flags().StringVar(&settingsPath, "settings", "", "service settings YAML file")
	reconfigureCmd.Flags().StringVar(&configPath, "config", "", "new parameters YAML file")
	reconfigureCmd.Flags().BoolVar(&persist, "persist", false, "persist the change to disk")
	_ = reconfigureCmd.MarkFlagRequired("settings")
	_ = reconfigureCmd.MarkFlagRequired("config")

	root.AddCommand(startCmd, stopCmd, statusCmd, reconfigureCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings(path string) (settings.Settings, error) {
	if path == "" {
		s := settings.Defaults()
		if err := s.Validate(); err != nil {
			return settings.Settings{}, err
		}
		return s, nil
	}
	return settings.Load(path)
}

func runStart(settingsPath, configPath string, watch bool) error {
	s, err := loadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}
	if configPath != "" {
		s.ConfigFile = configPath
	}

	log, err := liblog.New(s.ComponentType+"."+s.ComponentID, liblog.Options{
		Level:        logLevel(s.LogLevel),
		LogToConsole: s.LogToConsole,
		LogToFile:    s.LogToFile,
		LogDir:       s.LogDir,
	})
	if err != nil {
		return fmt.Errorf("error building logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := service.New(ctx, s, processor.Identity(), transport.Factory{}, nil, log)
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}

	release, err := svc.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("error during setup: %w", err)
	}
	defer release()

	if watch {
		if cfg := svc.ConfigManager(); cfg != nil {
			go func() {
				if err := cfg.Watch(ctx, func(err error) {
					if err != nil {
						log.Error("config reload failed: ", err)
						return
					}
					log.Info("configuration reloaded from disk")
				}); err != nil && ctx.Err() == nil {
					log.Error("config watch stopped: ", err)
				}
			}()
		} else {
			log.Warn("--watch given but no --config file was set, ignoring")
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	return svc.Run(ctx)
}

func logLevel(name string) liblog.Level {
	switch name {
	case "DEBUG", "debug":
		return liblog.LevelDebug
	case "WARN", "warn", "WARNING", "warning":
		return liblog.LevelWarn
	case "ERROR", "error":
		return liblog.LevelError
	default:
		return liblog.LevelInfo
	}
}

func runCommand(settingsPath, cmd string) error {
	s, err := loadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	reply, err := dial(s, cmd)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

func runReconfigure(settingsPath, configPath string, persist bool) error {
	s, err := loadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading parameters file: %w", err)
	}

	var data any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("invalid YAML in parameters file: %w", err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error serializing parameters: %w", err)
	}

	cmd := "reconfigure "
	if persist {
		cmd += "persist "
	}
	cmd += string(payload)

	reply, err := dial(s, cmd)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

func dial(s settings.Settings, cmd string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.OutDialTimeout())
	defer cancel()

	sock, err := transport.Factory{}.CreateOutput(ctx, s.ManagerAddress(), s.OutDialTimeout(), noopLogger{})
	if err != nil {
		return "", fmt.Errorf("communication error: %w", err)
	}
	defer sock.Close()

	if err := sock.Send(ctx, []byte(cmd)); err != nil {
		return "", fmt.Errorf("communication error: %w", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer recvCancel()

	reply, err := sock.Recv(recvCtx)
	if err != nil {
		return "", fmt.Errorf("communication error: %w", err)
	}

	return string(reply), nil
}

type noopLogger struct{}

func (noopLogger) Debug(args ...interface{}) {}
func (noopLogger) Info(args ...interface{})  {}
func (noopLogger) Warn(args ...interface{})  {}
func (noopLogger) Error(args ...interface{}) {}
func (l noopLogger) WithField(string, interface{}) liblog.Logger {
	return l
}
func (noopLogger) Close() error { return nil }
