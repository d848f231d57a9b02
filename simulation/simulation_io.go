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

package simulation

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/otns-qos/qosns/event"
	. "github.com/otns-qos/qosns/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteLabel quotes a label unless it is a single identifier.
func quoteLabel(label string) string {
	if identPattern.MatchString(label) {
		return label
	}
	return strconv.Quote(label)
}

// traceLine formats an event as the CLI command that recreates it, so that trace logs can be
// replayed as scripts.
func traceLine(evt *event.Event) string {
	ts := UsToSeconds(evt.Timestamp)
	switch evt.Type {
	case event.EventTypeSend:
		return fmt.Sprintf("send %d %d %d %.6f", evt.FlowId, evt.PacketId, evt.SizeBytes, ts)
	case event.EventTypeRecv:
		if len(evt.SrcAddr) > 0 {
			return fmt.Sprintf("recv %d %d %d %.6f %q", evt.FlowId, evt.PacketId, evt.SizeBytes, ts, evt.SrcAddr)
		}
		return fmt.Sprintf("recv %d %d %d %.6f", evt.FlowId, evt.PacketId, evt.SizeBytes, ts)
	case event.EventTypeTrafficClass:
		return fmt.Sprintf("class %d %s", evt.FlowId, quoteLabel(evt.Label))
	case event.EventTypeEndOfRun:
		return fmt.Sprintf("end %.6f", ts)
	default:
		return fmt.Sprintf("# %v", evt)
	}
}
