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

package types

import (
	"math"
)

type FlowId = int
type PacketId = uint64
type NodeId = int
type TrafficClass = string

const (
	InvalidFlowId FlowId = 0
	SinkNodeId    NodeId = 0
)

const (
	TrafficClassVoip    TrafficClass = "VoIP"
	TrafficClassVideo   TrafficClass = "Video"
	TrafficClassUnknown TrafficClass = "Unknown"
)

const (
	// Ever is the virtual time, in us, used as 'never' for pending events and pause times.
	Ever uint64 = math.MaxUint64 / 2
)

// SecondsToUs converts a virtual time in seconds to microseconds, rounded to the nearest us.
func SecondsToUs(sec float64) uint64 {
	if sec <= 0 {
		return 0
	}
	us := math.Round(sec * 1e6)
	if us >= float64(Ever) {
		return Ever
	}
	return uint64(us)
}

func UsToSeconds(us uint64) float64 {
	return float64(us) / 1e6
}

// UsToMs converts a signed us time difference to milliseconds.
func UsToMs(us int64) float64 {
	return float64(us) / 1e3
}

// ValidFlowId returns true if the id can identify a flow; flow ids are positive.
func ValidFlowId(id FlowId) bool {
	return id > InvalidFlowId
}
