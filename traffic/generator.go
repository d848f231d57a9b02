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

package traffic

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"

	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/logger"
	. "github.com/otns-qos/qosns/types"
)

// EventSink accepts the generated flow events.
type EventSink interface {
	PostEvent(evt *event.Event)
}

type flowState struct {
	flow    FlowSpec
	srcAddr string
	sent    uint64
	route   *RouteFailureCtrl
}

// Generator produces the send and receive events of constant bit-rate flows over a LinkModel.
// Events are emitted in virtual-time order.
type Generator struct {
	evtMgr       *evtm.EventManager
	flows        []*flowState
	link         *LinkModel
	sink         EventSink
	sinkStartSec float64
	sinkStopSec  float64
	nextPacketId PacketId

	Counters struct {
		Sent      uint64
		Lost      uint64
		Delivered uint64
		// lost because the route of the flow was broken
		RouteLost uint64
		// receives outside the sink's active time
		Dropped uint64
	}
}

// NewGenerator creates a generator for flows; receptions are only delivered while the sink is
// active, in [sinkStartSec, sinkStopSec).
func NewGenerator(flows []FlowSpec, link *LinkModel, sink EventSink, sinkStartSec, sinkStopSec float64) *Generator {
	g := &Generator{
		evtMgr:       evtm.New(),
		link:         link,
		sink:         sink,
		sinkStartSec: sinkStartSec,
		sinkStopSec:  sinkStopSec,
		nextPacketId: 1,
	}
	for _, f := range flows {
		g.flows = append(g.flows, &flowState{
			flow:    f,
			srcAddr: NodeAddr(f.SrcNode),
			route:   link.NewRouteFailureCtrl(),
		})
	}
	return g
}

// Run registers the traffic class of all flows and generates their traffic until totalTimeSec.
func (g *Generator) Run(totalTimeSec float64) {
	for _, fs := range g.flows {
		g.sink.PostEvent(event.NewTrafficClassEvent(fs.flow.FlowId, fs.flow.Profile.Class, 0))
		if fs.flow.Profile.IntervalSec() <= 0 || fs.flow.StartSec >= fs.flow.StopSec {
			logger.Warnf("flow %d does not send: %+v", fs.flow.FlowId, fs.flow)
			continue
		}
		g.evtMgr.Schedule(fs, nil, g.sendPacket, vrtime.SecondsToTime(fs.flow.StartSec))
	}

	g.evtMgr.Run(totalTimeSec)
	logger.Debugf("traffic generator done: sent %d, lost %d, delivered %d, dropped %d", g.Counters.Sent,
		g.Counters.Lost, g.Counters.Delivered, g.Counters.Dropped)
}

func (g *Generator) sendPacket(evtMgr *evtm.EventManager, context any, data any) any {
	fs := context.(*flowState)
	now := evtMgr.CurrentSeconds()
	if now >= fs.flow.StopSec {
		return nil
	}

	pktId := g.nextPacketId
	g.nextPacketId++
	fs.sent++
	g.Counters.Sent++
	g.sink.PostEvent(event.NewSendEvent(fs.flow.FlowId, pktId, fs.flow.Profile.PacketSize, SecondsToUs(now)))

	if fs.route.IsFailedAt(SecondsToUs(now)) {
		g.Counters.Lost++
		g.Counters.RouteLost++
	} else if delaySec, lost := g.link.Transmit(); lost {
		g.Counters.Lost++
	} else {
		evtMgr.Schedule(fs, pktId, g.receivePacket, vrtime.SecondsToTime(delaySec))
	}

	evtMgr.Schedule(fs, nil, g.sendPacket, vrtime.SecondsToTime(fs.flow.Profile.IntervalSec()))
	return nil
}

func (g *Generator) receivePacket(evtMgr *evtm.EventManager, context any, data any) any {
	fs := context.(*flowState)
	pktId := data.(PacketId)
	now := evtMgr.CurrentSeconds()
	if now < g.sinkStartSec || now >= g.sinkStopSec {
		g.Counters.Dropped++
		return nil
	}

	g.Counters.Delivered++
	g.sink.PostEvent(event.NewRecvEvent(fs.flow.FlowId, pktId, fs.flow.Profile.PacketSize, SecondsToUs(now),
		fs.srcAddr))
	return nil
}
