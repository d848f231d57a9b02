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
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
)

func TestRouteFailureNonFailure(t *testing.T) {
	fc := NewRouteFailureCtrl(NonFailTime, &fixedRand{u01: []float64{0.5}})
	for ts := uint64(0); ts < 10_000_000; ts += 1_000_000 {
		assert.False(t, fc.IsFailedAt(ts))
	}
	assert.Equal(t, 0, fc.NumFailures)

	// a duration that fills the whole interval is not a valid fail time
	ft := FailTime{FailDuration: 10, FailInterval: 10}
	assert.False(t, ft.CanFail())
	assert.False(t, NewRouteFailureCtrl(ft, &fixedRand{u01: []float64{0.5}}).IsFailedAt(5))
}

func TestRouteFailureCycle(t *testing.T) {
	ft := FailTime{
		FailDuration: 30_000_000,
		FailInterval: 60_000_000,
	}
	fc := NewRouteFailureCtrl(ft, &fixedRand{u01: []float64{0.5}, hops: 10_000_000})

	assert.False(t, fc.IsFailedAt(9_999_999))
	assert.True(t, fc.IsFailedAt(10_000_000))
	assert.True(t, fc.IsFailedAt(39_999_999))
	assert.False(t, fc.IsFailedAt(40_000_000))
	assert.False(t, fc.IsFailedAt(69_999_999))
	assert.True(t, fc.IsFailedAt(70_000_000))
	assert.Equal(t, 2, fc.NumFailures)

	// jumping over whole cycles
	assert.True(t, fc.IsFailedAt(250_000_000))
	assert.False(t, fc.IsFailedAt(280_000_000))
	assert.Equal(t, 5, fc.NumFailures)
}

func TestRouteFailureHalfOfTheTime(t *testing.T) {
	ft := FailTime{
		FailDuration: 30_000_000,
		FailInterval: 60_000_000,
	}
	fc := NewRouteFailureCtrl(ft, rngstream.New("route-failure-test"))

	failCount := 0
	worksCount := 0
	// simulate a 10-hour period
	for ts := uint64(0); ts < 36_000_000_000; ts += 100_000 {
		if fc.IsFailedAt(ts) {
			failCount++
		} else {
			worksCount++
		}
	}
	assert.InDelta(t, 0.5, float64(failCount)/float64(failCount+worksCount), 0.01)
	assert.InDelta(t, 600, fc.NumFailures, 1)
}

func TestLinkConfigRouteFailTime(t *testing.T) {
	cfg := DefaultLinkConfig()
	assert.Equal(t, NonFailTime, cfg.RouteFailTime())

	cfg.RouteFailDurationSec = 2
	cfg.RouteFailIntervalSec = 10
	assert.Equal(t, FailTime{FailDuration: 2_000_000, FailInterval: 10_000_000}, cfg.RouteFailTime())

	cfg.RouteFailIntervalSec = 1
	assert.Equal(t, NonFailTime, cfg.RouteFailTime())
}

func TestGeneratorRouteFailures(t *testing.T) {
	ec := &eventCollector{}
	flows := []FlowSpec{
		{FlowId: 1, SrcNode: 1, Profile: VoipProfile, StartSec: 0, StopSec: 2},
	}
	cfg := DefaultLinkConfig()
	cfg.BaseLoss = 0
	cfg.RouteFailDurationSec = 0.5
	cfg.RouteFailIntervalSec = 1.0
	// failures start as late as possible in each cycle: broken in [0.5, 1.0) and [1.5, 2.0)
	lm := NewLinkModel(cfg, 0, &fixedRand{u01: []float64{0.5}, hops: 1_000_000})
	g := NewGenerator(flows, lm, ec, 0, 10)
	g.Run(10)

	assert.InDelta(t, 100, g.Counters.Sent, 2)
	assert.InDelta(t, 50, g.Counters.RouteLost, 2)
	assert.Equal(t, g.Counters.RouteLost, g.Counters.Lost)
	assert.Equal(t, g.Counters.Sent, g.Counters.Lost+g.Counters.Delivered)
}
