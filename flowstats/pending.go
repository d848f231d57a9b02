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

package flowstats

import (
	. "github.com/otns-qos/qosns/types"
)

// PendingIndex maps in-flight packet ids to their send timestamp. Entries are removed when the
// matching receive is seen, so the index only holds packets that are still in flight (or lost).
type PendingIndex struct {
	sendTimes map[PacketId]uint64
}

func NewPendingIndex() *PendingIndex {
	return &PendingIndex{
		sendTimes: make(map[PacketId]uint64),
	}
}

// Insert stores the send time for packetId, overwriting any existing entry. It returns true if an
// entry was overwritten.
func (pi *PendingIndex) Insert(packetId PacketId, timestamp uint64) bool {
	_, exists := pi.sendTimes[packetId]
	pi.sendTimes[packetId] = timestamp
	return exists
}

// TakeAndRemove looks up and deletes the entry for packetId. ok is false if there was none.
func (pi *PendingIndex) TakeAndRemove(packetId PacketId) (timestamp uint64, ok bool) {
	timestamp, ok = pi.sendTimes[packetId]
	if ok {
		delete(pi.sendTimes, packetId)
	}
	return
}

func (pi *PendingIndex) Len() int {
	return len(pi.sendTimes)
}

// Clear drops all entries, including the ones of lost packets.
func (pi *PendingIndex) Clear() {
	pi.sendTimes = make(map[PacketId]uint64)
}
