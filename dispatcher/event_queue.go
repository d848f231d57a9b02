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
	"container/heap"

	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/logger"
	. "github.com/otns-qos/qosns/types"
)

type queuedEvent struct {
	evt *event.Event
	seq uint64 // insertion order, breaks timestamp ties

	index int
}

type eventHeap []*queuedEvent

func (eh eventHeap) Len() int {
	return len(eh)
}

func (eh eventHeap) Less(i, j int) bool {
	if eh[i].evt.Timestamp != eh[j].evt.Timestamp {
		return eh[i].evt.Timestamp < eh[j].evt.Timestamp
	}
	return eh[i].seq < eh[j].seq
}

func (eh eventHeap) Swap(i, j int) {
	a, b := eh[i], eh[j]
	if a.index != i && b.index != j {
		logger.Panicf("wrong index")
	}

	eh[i], eh[j] = b, a             // swap the elements
	eh[i].index, eh[j].index = i, j // fix the indexes
}

func (eh *eventHeap) Push(x interface{}) {
	e := x.(*queuedEvent)
	*eh = append(*eh, e)
	e.index = len(*eh) - 1
}

func (eh *eventHeap) Pop() (elem interface{}) {
	ehlen := len(*eh)
	elem = (*eh)[ehlen-1]
	(*eh)[ehlen-1] = nil
	*eh = (*eh)[:ehlen-1]
	return
}

// eventQueue orders events by (timestamp, insertion sequence).
type eventQueue struct {
	q       eventHeap
	nextSeq uint64
}

func newEventQueue() *eventQueue {
	eq := &eventQueue{
		q: eventHeap{},
	}
	heap.Init(&eq.q)
	return eq
}

func (eq *eventQueue) Add(evt *event.Event) {
	heap.Push(&eq.q, &queuedEvent{evt: evt, seq: eq.nextSeq})
	eq.nextSeq++
}

func (eq *eventQueue) Len() int {
	return len(eq.q)
}

func (eq *eventQueue) NextTimestamp() uint64 {
	if len(eq.q) == 0 {
		return Ever
	}
	return eq.q[0].evt.Timestamp
}

func (eq *eventQueue) PopNext() *event.Event {
	if len(eq.q) == 0 {
		return nil
	}
	return heap.Pop(&eq.q).(*queuedEvent).evt
}

func (eq *eventQueue) Clear() {
	eq.q = eventHeap{}
}
