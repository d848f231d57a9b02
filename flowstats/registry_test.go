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
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/otns-qos/qosns/types"
)

func TestPendingIndex(t *testing.T) {
	pi := NewPendingIndex()
	assert.False(t, pi.Insert(1, 1000))
	assert.False(t, pi.Insert(2, 2000))
	assert.Equal(t, 2, pi.Len())

	ts, ok := pi.TakeAndRemove(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(1000), ts)
	_, ok = pi.TakeAndRemove(1)
	assert.False(t, ok)

	assert.True(t, pi.Insert(2, 2500))
	ts, ok = pi.TakeAndRemove(2)
	assert.True(t, ok)
	assert.Equal(t, uint64(2500), ts)
	assert.Equal(t, 0, pi.Len())

	pi.Insert(3, 3000)
	pi.Clear()
	assert.Equal(t, 0, pi.Len())
}

func TestTwoPacketFlow(t *testing.T) {
	r := NewRegistry()
	r.RegisterTrafficClass(1, TrafficClassVoip)
	r.RecordSend(1, 1, 160, 1_000_000)
	r.RecordSend(1, 2, 160, 1_020_000)
	d, ok := r.RecordReceive(1, 1, 160, 1_010_000)
	assert.True(t, ok)
	assert.Equal(t, int64(10_000), d)
	d, ok = r.RecordReceive(1, 2, 160, 1_050_000)
	assert.True(t, ok)
	assert.Equal(t, int64(30_000), d)

	f := r.Flow(1)
	assert.NotNil(t, f)
	assert.Equal(t, TrafficClassVoip, f.TrafficClass)
	assert.Equal(t, uint64(2), f.SentPackets)
	assert.Equal(t, uint64(2), f.ReceivedPackets)
	assert.Equal(t, uint64(320), f.SentBytes)
	assert.Equal(t, uint64(320), f.ReceivedBytes)
	assert.Equal(t, uint64(1_000_000), f.FirstSendTime)
	assert.Equal(t, uint64(1_050_000), f.LastReceiveTime)
	assert.Equal(t, int64(40_000), f.DelaySumUs)
	assert.Equal(t, uint64(2), f.DelaySamples)
	assert.Equal(t, int64(20_000), f.JitterSumUs)
	assert.Equal(t, uint64(1), f.JitterSamples)
	assert.Equal(t, 0, r.NumPending())
}

func TestLostPacketStaysPending(t *testing.T) {
	r := NewRegistry()
	r.RecordSend(2, 10, 1024, 5_000_000)
	r.RecordSend(2, 11, 1024, 5_010_000)
	_, ok := r.RecordReceive(2, 11, 1024, 5_030_000)
	assert.True(t, ok)

	f := r.Flow(2)
	assert.Equal(t, uint64(2), f.SentPackets)
	assert.Equal(t, uint64(1), f.ReceivedPackets)
	assert.Equal(t, uint64(1), f.DelaySamples)
	assert.Equal(t, uint64(0), f.JitterSamples)
	assert.Equal(t, TrafficClassUnknown, f.TrafficClass)
	assert.Equal(t, 1, r.NumPending())
}

func TestUnmatchedReceive(t *testing.T) {
	r := NewRegistry()
	_, ok := r.RecordReceive(4, 99, 100, 1000)
	assert.False(t, ok)

	f := r.Flow(4)
	assert.Equal(t, uint64(1), f.ReceivedPackets)
	assert.Equal(t, uint64(0), f.DelaySamples)
	assert.False(t, f.HasSent)
	assert.Equal(t, uint64(1), r.Anomalies().UnmatchedReceives)

	// first send after the record was created by the receive still sets the first send time.
	r.RecordSend(4, 100, 100, 2000)
	assert.Equal(t, uint64(2000), r.Flow(4).FirstSendTime)
}

func TestNegativeDelayCountsAsZero(t *testing.T) {
	r := NewRegistry()
	r.RecordSend(1, 1, 100, 5000)
	d, ok := r.RecordReceive(1, 1, 100, 4000)
	assert.True(t, ok)
	assert.Equal(t, int64(0), d)
	assert.Equal(t, int64(0), r.Flow(1).DelaySumUs)
	assert.Equal(t, uint64(1), r.Anomalies().NegativeDelays)
}

func TestDuplicatePacketId(t *testing.T) {
	r := NewRegistry()
	r.RecordSend(1, 7, 100, 1000)
	r.RecordSend(1, 7, 100, 3000)
	d, ok := r.RecordReceive(1, 7, 100, 4000)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), d)
	assert.Equal(t, uint64(1), r.Anomalies().DuplicatePacketIds)
}

func TestTrafficClassSetOnce(t *testing.T) {
	r := NewRegistry()
	r.RecordSend(3, 1, 100, 1000)
	assert.True(t, r.RegisterTrafficClass(3, TrafficClassVideo))
	assert.False(t, r.RegisterTrafficClass(3, TrafficClassVoip))
	assert.False(t, r.RegisterTrafficClass(3, TrafficClassVideo))
	assert.Equal(t, TrafficClassVideo, r.Flow(3).TrafficClass)
	assert.Equal(t, uint64(1), r.Anomalies().ClassRelabels)
}

func TestJitterSampleCountInvariant(t *testing.T) {
	r := NewRegistry()
	delays := []uint64{5000, 9000, 7000, 7000, 12000}
	for i, d := range delays {
		ts := uint64(i) * 100_000
		r.RecordSend(1, PacketId(i), 100, ts)
		r.RecordReceive(1, PacketId(i), 100, ts+d)

		f := r.Flow(1)
		assert.Equal(t, uint64(i+1), f.DelaySamples)
		assert.Equal(t, uint64(i), f.JitterSamples)
	}
	// |9-5| + |7-9| + |7-7| + |12-7| = 11ms
	assert.Equal(t, int64(11000), r.Flow(1).JitterSumUs)
}

func TestFlowIdsAndSnapshot(t *testing.T) {
	r := NewRegistry()
	r.RecordSend(5, 1, 10, 0)
	r.RecordSend(2, 2, 10, 0)
	r.RegisterTrafficClass(9, TrafficClassVoip)
	assert.Equal(t, []FlowId{2, 5, 9}, r.FlowIds())
	assert.Equal(t, 3, r.NumFlows())

	snap := r.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, FlowId(2), snap[0].FlowId)
	assert.Equal(t, FlowId(9), snap[2].FlowId)

	// copies must not alias registry state
	snap[0].SentPackets = 1000
	assert.Equal(t, uint64(1), r.Flow(2).SentPackets)
	assert.Nil(t, r.Flow(42))
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.RecordSend(1, 1, 10, 0)
	r.RecordReceive(1, 2, 10, 0)
	r.Reset()
	assert.Equal(t, 0, r.NumFlows())
	assert.Equal(t, 0, r.NumPending())
	assert.Equal(t, Anomalies{}, r.Anomalies())
}
