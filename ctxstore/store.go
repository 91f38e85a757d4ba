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

// Package ctxstore carries cross-cutting values (component id, shutdown
// signal) alongside a context.Context without growing a struct field per
// value on every component that needs one.
package ctxstore

import (
	"context"
	"sync"
)

type key int

const storeKey key = 0

// Store is a thread-safe key/value bag attached to a context.Context.
type Store[K comparable, V any] struct {
	m sync.Map
}

// New returns a context carrying a fresh Store[K,V] reachable via From.
func New[K comparable, V any](parent context.Context) (context.Context, *Store[K, V]) {
	s := &Store[K, V]{}
	return context.WithValue(parent, storeKey, s), s
}

// From extracts the Store[K,V] previously attached by New, if any.
func From[K comparable, V any](ctx context.Context) (*Store[K, V], bool) {
	v, ok := ctx.Value(storeKey).(*Store[K, V])
	return v, ok
}

func (s *Store[K, V]) Set(k K, v V) {
	s.m.Store(k, v)
}

func (s *Store[K, V]) Get(k K) (V, bool) {
	var zero V
	v, ok := s.m.Load(k)
	if !ok {
		return zero, false
	}
	return v.(V), true
}

func (s *Store[K, V]) Delete(k K) {
	s.m.Delete(k)
}

func (s *Store[K, V]) Range(fn func(k K, v V) bool) {
	s.m.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}
