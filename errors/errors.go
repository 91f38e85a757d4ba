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

// Package errors provides a small code-carrying error type used across the
// supervisor components, so a failure can be matched by code instead of by
// string comparison and still chain back to its cause.
package errors

import "fmt"

type Code uint16

const (
	CodeUnknown Code = iota
	CodeConfig
	CodeTransport
	CodeProcessor
	CodeEngineLifecycle
	CodeCommandDispatch
)

func (c Code) String() string {
	switch c {
	case CodeConfig:
		return "config"
	case CodeTransport:
		return "transport"
	case CodeProcessor:
		return "processor"
	case CodeEngineLifecycle:
		return "engine-lifecycle"
	case CodeCommandDispatch:
		return "command-dispatch"
	default:
		return "unknown"
	}
}

// Error is a small chainable error carrying a Code for programmatic matching.
type Error interface {
	error
	Code() Code
	Unwrap() error
	Is(error) bool
	WithParent(parent error) Error
}

type ers struct {
	code   Code
	msg    string
	parent error
}

// New builds an Error with the given code, message and optional parent cause.
func New(code Code, msg string, parent error) Error {
	return &ers{code: code, msg: msg, parent: parent}
}

func (e *ers) Code() Code {
	return e.code
}

func (e *ers) Error() string {
	if e.parent == nil {
		return fmt.Sprintf("[%s] %s", e.code, e.msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.code, e.msg, e.parent.Error())
}

func (e *ers) Unwrap() error {
	return e.parent
}

func (e *ers) Is(target error) bool {
	if target == nil {
		return false
	}
	if o, ok := target.(*ers); ok {
		return o.code == e.code
	}
	return false
}

func (e *ers) WithParent(parent error) Error {
	return &ers{code: e.code, msg: e.msg, parent: parent}
}
