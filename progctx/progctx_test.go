// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package progctx

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	ctx := New(context.Background())
	_ = context.Context(ctx)  // ProgCtx should implement context.Context
	ctx2 := New(nil)          // nolint
	_ = context.Context(ctx2) // ProgCtx should implement context.Context
}

func TestProgCtx_CancelOnce(t *testing.T) {
	ctx := New(context.Background())
	calls := 0
	ctx.Defer(func() { calls++ })

	first := errors.Errorf("first")
	ctx.Cancel(first)
	ctx.Cancel(errors.Errorf("second"))
	<-ctx.Done()

	assert.Equal(t, context.Canceled, ctx.Err())
	assert.Equal(t, first, ctx.CancelReason())
	assert.Equal(t, 1, calls)
	assert.Panics(t, func() { ctx.Defer(func() {}) })
}

func TestProgCtx_CancelConcurrent(t *testing.T) {
	ctx := New(context.Background())
	calls := make(chan struct{}, 10)
	ctx.Defer(func() { calls <- struct{}{} })

	for i := 0; i < 5; i++ {
		go ctx.Cancel(nil)
	}
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, calls, 1)
}

func TestProgCtx_Wait(t *testing.T) {
	ctx := New(context.Background())
	ctx.WaitAdd("test1", 1)
	go func() {
		ctx.WaitDone("test1")
	}()

	ctx.WaitAdd("test2", 2)
	for i := 0; i < 2; i++ {
		go func() { defer ctx.WaitDone("test2") }()
	}

	ctx.Wait()
	assert.Equal(t, 0, ctx.WaitCount())
}

func TestProgCtx_WaitTimeout(t *testing.T) {
	ctx := New(context.Background())
	ctx.WaitAdd("blocked", 1)
	assert.Equal(t, 1, ctx.WaitCount())
	assert.False(t, ctx.WaitTimeout(20*time.Millisecond))

	ctx.WaitDone("blocked")
	assert.True(t, ctx.WaitTimeout(time.Second))
	assert.Panics(t, func() { ctx.WaitDone("blocked") })
}

func TestProgCtx_HandleSignals(t *testing.T) {
	ctx := New(context.Background())
	ctx.HandleSignals(syscall.SIGUSR1)
	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("signal did not cancel the context")
	}
	assert.True(t, ctx.WaitTimeout(time.Second))
	assert.Error(t, ctx.CancelReason().(error))
}
