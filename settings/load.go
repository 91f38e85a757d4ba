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
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Load reads yamlPath (if present), overlays DETECTMATE_* environment
// variables, and validates the result. A missing file is not an error — the
// defaults apply.
func Load(yamlPath string) (Settings, error) {
	d := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	for key, val := range defaultsMap(d) {
		v.SetDefault(key, val)
	}

	if yamlPath != "" {
		v.SetConfigFile(yamlPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Settings{}, fmt.Errorf("[config] %s", err.Error())
			}
		}
	}

	v.SetEnvPrefix("DETECTMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("[config] %s", err.Error())
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("[config] %s", err.Error())
	}

	return s, nil
}

func defaultsMap(d Settings) map[string]interface{} {
	return map[string]interface{}{
		"component_name":               d.ComponentName,
		"component_type":               d.ComponentType,
		"log_dir":                      d.LogDir,
		"log_to_console":               d.LogToConsole,
		"log_to_file":                  d.LogToFile,
		"log_level":                    d.LogLevel,
		"manager_addr":                 d.ManagerAddr,
		"manager_recv_timeout":         d.ManagerRecvTimeoutMS,
		"manager_thread_join_timeout":  d.ManagerThreadJoinTimeoutS,
		"engine_addr":                  d.EngineAddr,
		"engine_autostart":             d.EngineAutostart,
		"engine_recv_timeout":          d.EngineRecvTimeoutMS,
		"out_addr":                     d.OutAddr,
		"out_dial_timeout":             d.OutDialTimeoutMS,
		"out_buffer_size":              d.OutBufferSize,
		"config_file":                  d.ConfigFile,
	}
}
