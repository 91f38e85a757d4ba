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

// Package configmgr owns the validated, file-backed runtime parameters
// document: thread-safe load/get/update/save, with atomic update+save kept
// as two distinct operations so callers control persistence explicitly.
package configmgr

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	liberr "github.com/sabouaram/detectmate-core/errors"
)

// Validatable is a custom, hand-written constraint check on a parameters
// value (mirrors a pydantic model_validator).
type Validatable interface {
	Validate() error
}

// BaseConfig is the empty parameters schema for services that don't need
// one; it satisfies Validatable trivially.
type BaseConfig struct{}

func (BaseConfig) Validate() error { return nil }

// Schema is anything that can be both struct-tag validated and YAML
// (de)serialized: a concrete parameters document.
type Schema interface {
	Validatable
}

// Manager is the thread-safe owner of one parameters document.
type Manager struct {
	mu       sync.RWMutex
	path     string
	schema   Schema
	value    any
	validate *validator.Validate
}

// New constructs a Manager for path with an optional schema. If the file
// does not exist and a schema is given, the schema value as passed (its
// defaults) is used and immediately saved; without a schema, parameters are
// left unset.
func New(path string, schema Schema) (*Manager, error) {
	m := &Manager{path: path, schema: schema, validate: validator.New()}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if schema != nil {
			m.value = schema
			if err := m.Save(); err != nil {
				return nil, err
			}
		}
		return m, nil
	} else if err != nil {
		return nil, liberr.New(liberr.CodeConfig, "stat config file", err)
	}

	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load re-reads the file from disk, validating against the schema if one is
// configured and the payload is non-empty.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return liberr.New(liberr.CodeConfig, "read config file", err)
	}
	if len(raw) == 0 {
		return nil
	}

	if m.schema != nil {
		v := newLike(m.schema)
		if err := yaml.Unmarshal(raw, v); err != nil {
			return liberr.New(liberr.CodeConfig, "parse config YAML", err)
		}
		if err := validateValue(m.validate, v); err != nil {
			return liberr.New(liberr.CodeConfig, "validate config", err)
		}
		m.value = v
		return nil
	}

	var raw2 map[string]any
	if err := yaml.Unmarshal(raw, &raw2); err != nil {
		return liberr.New(liberr.CodeConfig, "parse config YAML", err)
	}
	m.value = raw2
	return nil
}

// Blank returns a fresh pointer to the schema's underlying type, ready to be
// unmarshaled into and passed to Update; it returns nil when the Manager was
// built without a schema, since Update then accepts any value directly.
func (m *Manager) Blank() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.schema == nil {
		return nil
	}
	return newLike(m.schema)
}

// Get returns the current parameters value: the schema value given to New
// (when New created the file), a pointer to the schema's type (after Load),
// whatever was passed to Update, a raw map[string]any, or nil if never set.
func (m *Manager) Get() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Update replaces the current value. If a schema is configured, v is
// validated first and the in-memory parameters are left unchanged on
// failure.
func (m *Manager) Update(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.schema != nil {
		sv, ok := v.(Validatable)
		if !ok {
			return liberr.New(liberr.CodeConfig, "update value does not satisfy schema", nil)
		}
		if err := validateValue(m.validate, sv); err != nil {
			return liberr.New(liberr.CodeConfig, "validate update", err)
		}
		m.value = sv
		return nil
	}

	m.value = v
	return nil
}

// Save persists the current value as block-style YAML, creating the parent
// directory if needed.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return liberr.New(liberr.CodeConfig, "create config directory", err)
	}

	out, err := yaml.Marshal(m.value)
	if err != nil {
		return liberr.New(liberr.CodeConfig, "marshal config", err)
	}

	if err := os.WriteFile(m.path, out, 0o644); err != nil {
		return liberr.New(liberr.CodeConfig, "write config file", err)
	}
	return nil
}

// newLike returns a pointer to a zero value of schema's underlying type, so
// yaml.Unmarshal has somewhere to write into regardless of whether schema
// was registered by value or by pointer.
func newLike(schema Schema) any {
	t := reflect.TypeOf(schema)
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}

func validateValue(v *validator.Validate, value any) error {
	if err := value.(Validatable).Validate(); err != nil {
		return err
	}
	return v.Struct(value)
}
