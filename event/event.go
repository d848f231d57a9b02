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

package event

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/otns-qos/qosns/types"
)

type EventType = uint8

const (
	// Flow lifecycle event type IDs, as used in recorded binary traces.
	EventTypeSend         EventType = 0
	EventTypeRecv         EventType = 1
	EventTypeTrafficClass EventType = 2
	EventTypeEndOfRun     EventType = 3
	numEventTypes                   = 4
)

const eventMsgHeaderLen = 27 // ts(8) type(1) flow(4) packet(8) size(4) payloadLen(2)

// maxFlowId is the largest flow id the binary encoding can carry.
const maxFlowId = math.MaxUint32

// maxPayloadLen limits the address/label payload.
const maxPayloadLen = 0xffff

type Event struct {
	Timestamp uint64 // virtual time in us
	Type      EventType
	FlowId    types.FlowId
	PacketId  types.PacketId
	SizeBytes uint32

	// payload, depending on the event type.
	SrcAddr string // EventTypeRecv
	Label   string // EventTypeTrafficClass
}

func NewSendEvent(flowId types.FlowId, packetId types.PacketId, sizeBytes uint32, ts uint64) *Event {
	return &Event{Type: EventTypeSend, FlowId: flowId, PacketId: packetId, SizeBytes: sizeBytes, Timestamp: ts}
}

func NewRecvEvent(flowId types.FlowId, packetId types.PacketId, sizeBytes uint32, ts uint64, srcAddr string) *Event {
	return &Event{Type: EventTypeRecv, FlowId: flowId, PacketId: packetId, SizeBytes: sizeBytes, Timestamp: ts,
		SrcAddr: srcAddr}
}

func NewTrafficClassEvent(flowId types.FlowId, label types.TrafficClass, ts uint64) *Event {
	return &Event{Type: EventTypeTrafficClass, FlowId: flowId, Label: label, Timestamp: ts}
}

// NewEndOfRunEvent creates the event that closes a run; its timestamp is the total simulated time.
func NewEndOfRunEvent(ts uint64) *Event {
	return &Event{Type: EventTypeEndOfRun, Timestamp: ts}
}

func (e *Event) payload() string {
	switch e.Type {
	case EventTypeRecv:
		return e.SrcAddr
	case EventTypeTrafficClass:
		return e.Label
	default:
		return ""
	}
}

func (e *Event) Serialize() []byte {
	payload := []byte(e.payload())
	if len(payload) > maxPayloadLen {
		payload = payload[:maxPayloadLen]
	}

	msg := make([]byte, eventMsgHeaderLen+len(payload))
	binary.LittleEndian.PutUint64(msg[0:8], e.Timestamp)
	msg[8] = e.Type
	binary.LittleEndian.PutUint32(msg[9:13], uint32(e.FlowId))
	binary.LittleEndian.PutUint64(msg[13:21], e.PacketId)
	binary.LittleEndian.PutUint32(msg[21:25], e.SizeBytes)
	binary.LittleEndian.PutUint16(msg[25:27], uint16(len(payload)))
	copy(msg[eventMsgHeaderLen:], payload)
	return msg
}

// Deserialize parses one event from data and returns the number of bytes consumed, or 0 if data
// does not hold a complete event.
func (e *Event) Deserialize(data []byte) int {
	n := len(data)
	if n < eventMsgHeaderLen {
		return 0
	}
	datalen := int(binary.LittleEndian.Uint16(data[25:27]))
	if datalen > n-eventMsgHeaderLen {
		return 0
	}

	e.Timestamp = binary.LittleEndian.Uint64(data[0:8])
	e.Type = data[8]
	e.FlowId = types.FlowId(binary.LittleEndian.Uint32(data[9:13]))
	e.PacketId = binary.LittleEndian.Uint64(data[13:21])
	e.SizeBytes = binary.LittleEndian.Uint32(data[21:25])
	e.SrcAddr = ""
	e.Label = ""

	payload := string(data[eventMsgHeaderLen : eventMsgHeaderLen+datalen])
	switch e.Type {
	case EventTypeRecv:
		e.SrcAddr = payload
	case EventTypeTrafficClass:
		e.Label = payload
	default:
		break
	}
	return eventMsgHeaderLen + datalen
}

// DeserializeAll parses consecutive events. Trailing bytes that don't form a complete event are
// returned as the remainder.
func DeserializeAll(data []byte) ([]*Event, []byte) {
	var evts []*Event
	for len(data) > 0 {
		ev := &Event{}
		n := ev.Deserialize(data)
		if n == 0 {
			break
		}
		evts = append(evts, ev)
		data = data[n:]
	}
	return evts, data
}

// IsValid checks the parts of the event the engine relies on, and that the flow id fits the
// binary encoding. Invalid events are skipped by the dispatcher rather than failing the run.
func (e *Event) IsValid() bool {
	if e.Type >= numEventTypes {
		return false
	}
	if e.Type == EventTypeEndOfRun {
		return true
	}
	return types.ValidFlowId(e.FlowId) && uint64(e.FlowId) <= maxFlowId
}

func (e *Event) TypeName() string {
	switch e.Type {
	case EventTypeSend:
		return "send"
	case EventTypeRecv:
		return "recv"
	case EventTypeTrafficClass:
		return "class"
	case EventTypeEndOfRun:
		return "end"
	default:
		return fmt.Sprintf("type%d", e.Type)
	}
}

func (e *Event) String() string {
	paylStr := ""
	if p := e.payload(); len(p) > 0 {
		paylStr = fmt.Sprintf(",payl=%s", p)
	}
	return fmt.Sprintf("Ev{%s,ts=%d,flow=%d,pkt=%d,size=%d%s}", e.TypeName(), e.Timestamp, e.FlowId,
		e.PacketId, e.SizeBytes, paylStr)
}
