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
	"time"

	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/progctx"
	. "github.com/otns-qos/qosns/types"
	"github.com/otns-qos/qosns/visualize"
)

// EventHandler consumes the events delivered by the dispatcher, one at a time, in virtual-time order.
type EventHandler interface {
	HandleEvent(evt *event.Event)
}

// GoEver is the Go duration that runs until no more events are queued.
const GoEver = time.Duration(1<<63 - 1)

type goDuration struct {
	duration time.Duration
	done     chan struct{}
}

type Dispatcher struct {
	ctx            *progctx.ProgCtx
	cfg            Config
	handler        EventHandler
	CurTime        uint64
	pauseTime      uint64
	evtQueue       *eventQueue
	vis            visualize.Visualizer
	taskChan       chan func()
	goDurationChan chan goDuration
	timeWinStats   TimeWindowStats

	Counters struct {
		// Event counters
		SendEvents    uint64
		RecvEvents    uint64
		ClassEvents   uint64
		EndEvents     uint64
		LateEvents    uint64
		InvalidEvents uint64
	}
	stopped bool
}

func NewDispatcher(ctx *progctx.ProgCtx, cfg *Config, handler EventHandler) *Dispatcher {
	logger.AssertNotNil(ctx)
	logger.AssertNotNil(handler)

	d := &Dispatcher{
		ctx:            ctx,
		cfg:            *cfg,
		handler:        handler,
		evtQueue:       newEventQueue(),
		vis:            visualize.NewNopVisualizer(),
		taskChan:       make(chan func(), 100),
		goDurationChan: make(chan goDuration, 10),
	}
	d.timeWinStats = newTimeWindowStats(0, cfg.WinWidthUs)
	logger.Debugf("dispatcher started: cfg=%+v", *cfg)
	return d
}

func (d *Dispatcher) SetVisualizer(vis visualize.Visualizer) {
	logger.AssertNotNil(vis)
	d.vis = vis
}

func (d *Dispatcher) Stop() {
	if d.stopped {
		return
	}
	d.stopped = true
	d.finalizeTimeWindowStats()
	d.vis.Stop()
}

func (d *Dispatcher) IsStopped() bool {
	return d.stopped
}

// PostEvent queues an event for delivery. It must be called from the dispatcher goroutine, or while
// the dispatcher is not running.
func (d *Dispatcher) PostEvent(evt *event.Event) {
	if !evt.IsValid() {
		d.Counters.InvalidEvents++
		logger.Warnf("dropping invalid event %v", evt)
		return
	}
	d.evtQueue.Add(evt)
}

// PostAsync runs task in the dispatcher goroutine. It returns false if the task was not accepted
// because the dispatcher is exiting.
func (d *Dispatcher) PostAsync(task func()) bool {
	if d.ctx.Err() != nil {
		return false
	}
	select {
	case d.taskChan <- task:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// PendingEvents returns the number of queued, not yet delivered, events.
func (d *Dispatcher) PendingEvents() int {
	return d.evtQueue.Len()
}

// ClearEvents drops all queued events and restarts the time window stats at the current time.
func (d *Dispatcher) ClearEvents() {
	d.evtQueue.Clear()
	d.timeWinStats = newTimeWindowStats(d.CurTime, d.cfg.WinWidthUs)
}

// Go requests the running dispatcher to advance virtual time by duration. The returned channel is
// closed when done. A duration that reaches Ever runs until the queue is empty.
func (d *Dispatcher) Go(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	select {
	case d.goDurationChan <- goDuration{duration: duration, done: done}:
	case <-d.ctx.Done():
		close(done)
	}
	return done
}

func (d *Dispatcher) Run() {
	d.ctx.WaitAdd("dispatcher", 1)
	defer d.ctx.WaitDone("dispatcher")
	defer logger.Debugf("dispatcher exit.")

	defer d.Stop()

	done := d.ctx.Done()
loop:
	for {
		select {
		case f := <-d.taskChan:
			f()
		case duration := <-d.goDurationChan:
			d.RunUntil(d.pauseTimeAfter(duration.duration))
			close(duration.done)
			if d.ctx.Err() != nil {
				break loop
			}
		case <-done:
			break loop
		}
	}
}

func (d *Dispatcher) pauseTimeAfter(duration time.Duration) uint64 {
	if duration < 0 {
		return d.CurTime
	}
	if uint64(duration/time.Microsecond) >= Ever-d.CurTime || duration == GoEver {
		return Ever
	}
	pauseTime := d.CurTime + uint64(duration/time.Microsecond)
	if pauseTime > Ever || pauseTime < d.CurTime {
		pauseTime = Ever
	}
	return pauseTime
}

// RunUntil delivers all queued events with a timestamp up to ts and then advances the virtual time
// to ts. With ts >= Ever, it runs until the queue is empty and time stays at the last event.
// Not to be called concurrently with Run.
func (d *Dispatcher) RunUntil(ts uint64) {
	if ts < d.CurTime {
		ts = d.CurTime
	}
	d.pauseTime = ts
	d.goUntilPauseTime()
}

// Drain delivers all queued events.
func (d *Dispatcher) Drain() {
	d.RunUntil(Ever)
}

func (d *Dispatcher) goUntilPauseTime() {
	for d.ctx.Err() == nil {
		d.handleTasks()
		if !d.processNextEvent() {
			break
		}
	}

	if d.ctx.Err() != nil || d.pauseTime >= Ever {
		d.pauseTime = d.CurTime
		return
	}
	d.advanceTime(d.pauseTime)
}

func (d *Dispatcher) handleTasks() {
	for {
		select {
		case f := <-d.taskChan:
			f()
		default:
			return
		}
	}
}

// processNextEvent delivers the next queued event, if it is due before the pause time.
func (d *Dispatcher) processNextEvent() bool {
	if d.evtQueue.Len() == 0 || d.evtQueue.NextTimestamp() > d.pauseTime {
		return false
	}

	evt := d.evtQueue.PopNext()
	if evt.Timestamp < d.CurTime {
		// the virtual clock never goes back; the event keeps its own timestamp for accounting.
		d.Counters.LateEvents++
		logger.Debugf("late event delivered at %d: %v", d.CurTime, evt)
	} else {
		d.advanceTime(evt.Timestamp)
	}
	d.deliver(evt)
	return true
}

func (d *Dispatcher) deliver(evt *event.Event) {
	logger.Tracef("dispatch %v", evt)

	switch evt.Type {
	case event.EventTypeSend:
		d.Counters.SendEvents++
		d.timeWinStats.countTx(evt.FlowId)
		d.vis.OnSend(evt.FlowId, evt.PacketId, evt.SizeBytes, evt.Timestamp)
	case event.EventTypeRecv:
		d.Counters.RecvEvents++
		d.timeWinStats.countRx(evt.FlowId, evt.SizeBytes)
		d.vis.OnReceive(evt.FlowId, evt.PacketId, evt.SizeBytes, evt.Timestamp)
	case event.EventTypeTrafficClass:
		d.Counters.ClassEvents++
		d.vis.SetTrafficClass(evt.FlowId, evt.Label)
	case event.EventTypeEndOfRun:
		d.Counters.EndEvents++
		d.finalizeTimeWindowStats()
	}

	d.handler.HandleEvent(evt)
}

func (d *Dispatcher) advanceTime(ts uint64) {
	logger.AssertTrue(ts >= d.CurTime)
	if ts == d.CurTime {
		return
	}
	d.CurTime = ts
	d.updateTimeWindowStats()
	d.vis.AdvanceTime(ts)
}
