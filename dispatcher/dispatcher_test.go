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

package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/progctx"
	. "github.com/otns-qos/qosns/types"
	"github.com/otns-qos/qosns/visualize"
)

type recordingHandler struct {
	events []*event.Event
	times  []uint64
	d      *Dispatcher
}

func (rh *recordingHandler) HandleEvent(evt *event.Event) {
	rh.events = append(rh.events, evt)
	rh.times = append(rh.times, rh.d.CurTime)
}

type windowRecorder struct {
	visualize.Visualizer
	windows []*visualize.TimeWindowStatsInfo
	stopped bool
}

func (wr *windowRecorder) UpdateTimeWindowStats(info *visualize.TimeWindowStatsInfo) {
	wr.windows = append(wr.windows, info)
}

func (wr *windowRecorder) Stop() {
	wr.stopped = true
}

func newTestDispatcher(t *testing.T, winWidthUs uint64) (*Dispatcher, *recordingHandler, *progctx.ProgCtx) {
	ctx := progctx.New(context.Background())
	t.Cleanup(func() { ctx.Cancel(nil) })
	cfg := DefaultConfig()
	cfg.WinWidthUs = winWidthUs
	rh := &recordingHandler{}
	d := NewDispatcher(ctx, cfg, rh)
	rh.d = d
	return d, rh, ctx
}

func TestEventOrder(t *testing.T) {
	d, rh, _ := newTestDispatcher(t, 0)
	d.PostEvent(event.NewRecvEvent(1, 1, 100, 3000, ""))
	d.PostEvent(event.NewSendEvent(1, 1, 100, 1000))
	d.PostEvent(event.NewSendEvent(2, 2, 100, 3000))
	d.PostEvent(event.NewTrafficClassEvent(1, TrafficClassVoip, 0))

	d.Drain()
	require.Len(t, rh.events, 4)
	assert.Equal(t, event.EventTypeTrafficClass, rh.events[0].Type)
	assert.Equal(t, event.EventTypeSend, rh.events[1].Type)
	// same timestamp: insertion order
	assert.Equal(t, event.EventTypeRecv, rh.events[2].Type)
	assert.Equal(t, FlowId(2), rh.events[3].FlowId)
	assert.Equal(t, []uint64{0, 1000, 3000, 3000}, rh.times)
	assert.Equal(t, uint64(3000), d.CurTime)
	assert.Equal(t, uint64(2), d.Counters.SendEvents)
	assert.Equal(t, uint64(1), d.Counters.RecvEvents)
	assert.Equal(t, uint64(1), d.Counters.ClassEvents)
}

func TestRunUntil(t *testing.T) {
	d, rh, _ := newTestDispatcher(t, 0)
	d.PostEvent(event.NewSendEvent(1, 1, 100, 1000))
	d.PostEvent(event.NewSendEvent(1, 2, 100, 2000))
	d.PostEvent(event.NewSendEvent(1, 3, 100, 5000))

	d.RunUntil(2000)
	assert.Len(t, rh.events, 2)
	assert.Equal(t, uint64(2000), d.CurTime)
	assert.Equal(t, 1, d.PendingEvents())

	d.RunUntil(4000)
	assert.Len(t, rh.events, 2)
	assert.Equal(t, uint64(4000), d.CurTime)

	// time never goes back
	d.RunUntil(100)
	assert.Equal(t, uint64(4000), d.CurTime)

	d.Drain()
	assert.Len(t, rh.events, 3)
	assert.Equal(t, uint64(5000), d.CurTime)
	assert.Equal(t, 0, d.PendingEvents())
}

func TestLateAndInvalidEvents(t *testing.T) {
	d, rh, _ := newTestDispatcher(t, 0)
	d.RunUntil(10_000)

	d.PostEvent(event.NewRecvEvent(1, 1, 100, 5000, ""))
	d.PostEvent(event.NewSendEvent(0, 1, 100, 20_000))
	d.PostEvent(&event.Event{Type: 99, FlowId: 1})
	d.Drain()

	require.Len(t, rh.events, 1)
	assert.Equal(t, uint64(5000), rh.events[0].Timestamp)
	assert.Equal(t, uint64(10_000), rh.times[0])
	assert.Equal(t, uint64(1), d.Counters.LateEvents)
	assert.Equal(t, uint64(2), d.Counters.InvalidEvents)
	assert.Equal(t, uint64(10_000), d.CurTime)
}

func TestClearEvents(t *testing.T) {
	d, rh, _ := newTestDispatcher(t, 0)
	d.PostEvent(event.NewSendEvent(1, 1, 100, 1000))
	d.ClearEvents()
	d.Drain()
	assert.Empty(t, rh.events)
}

func TestTimeWindowStats(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 1_000_000)
	wr := &windowRecorder{Visualizer: visualize.NewNopVisualizer()}
	d.SetVisualizer(wr)

	d.PostEvent(event.NewSendEvent(1, 1, 100, 500_000))
	d.PostEvent(event.NewRecvEvent(1, 1, 100, 520_000, ""))
	d.PostEvent(event.NewSendEvent(2, 2, 1000, 1_500_000))
	d.PostEvent(event.NewSendEvent(1, 3, 100, 3_200_000))
	d.PostEvent(event.NewEndOfRunEvent(3_500_000))
	d.Drain()

	require.Len(t, wr.windows, 4)
	w := wr.windows[0]
	assert.Equal(t, uint64(0), w.WinStartUs)
	assert.Equal(t, uint64(1), w.TxPackets[1])
	assert.Equal(t, uint64(1), w.RxPackets[1])
	assert.Equal(t, uint64(100), w.RxBytes[1])
	assert.InDelta(t, 0.8, w.RxKbps(), 1e-9)

	assert.Equal(t, uint64(1), wr.windows[1].TxPackets[2])
	assert.Equal(t, 0, wr.windows[2].NumActiveFlows())

	last := wr.windows[3]
	assert.Equal(t, uint64(3_000_000), last.WinStartUs)
	assert.Equal(t, uint64(500_000), last.WinWidthUs)
	assert.Equal(t, uint64(1), last.TotalTx())

	d.Stop()
	assert.True(t, wr.stopped)
	assert.True(t, d.IsStopped())
	assert.Len(t, wr.windows, 4)
}

func TestRunLoop(t *testing.T) {
	d, rh, ctx := newTestDispatcher(t, 0)
	go d.Run()

	d.PostAsync(func() {
		d.PostEvent(event.NewSendEvent(1, 1, 100, 100_000))
		d.PostEvent(event.NewRecvEvent(1, 1, 100, 2_500_000, ""))
	})
	<-d.Go(time.Second)

	curTime := make(chan uint64)
	d.PostAsync(func() {
		curTime <- d.CurTime
	})
	assert.Equal(t, uint64(1_000_000), <-curTime)

	<-d.Go(GoEver)
	d.PostAsync(func() {
		curTime <- d.CurTime
	})
	assert.Equal(t, uint64(2_500_000), <-curTime)

	ctx.Cancel(nil)
	ctx.Wait()
	assert.Len(t, rh.events, 2)
	assert.True(t, d.IsStopped())
}
