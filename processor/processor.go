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

// Package processor defines the pluggable transform the Engine drives on
// every received message.
package processor

import "context"

// Processor turns one raw message into zero or one output messages. A nil
// result with a nil error is the "no output" signal — the Engine drops the
// message silently rather than sending an empty payload.
type Processor interface {
	Run(ctx context.Context, raw []byte) ([]byte, error)
}

// Func adapts a plain function to Processor.
type Func func(ctx context.Context, raw []byte) ([]byte, error)

func (f Func) Run(ctx context.Context, raw []byte) ([]byte, error) {
	return f(ctx, raw)
}

// Identity returns every message unchanged; used for reply-mode scenarios.
func Identity() Processor {
	return Func(func(_ context.Context, raw []byte) ([]byte, error) {
		return raw, nil
	})
}
