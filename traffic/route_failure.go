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
	"github.com/otns-qos/qosns/logger"
)

// FailTime configures route failures of a flow: in every FailInterval, the route is broken once
// for FailDuration, starting at a random moment.
type FailTime struct {
	FailDuration uint64 // unit: us
	FailInterval uint64 // unit: us
}

var (
	NonFailTime = FailTime{0, 0}
)

func (ft FailTime) CanFail() bool {
	return ft.FailDuration > 0 && ft.FailInterval > ft.FailDuration
}

// RouteFailureCtrl tracks the broken and working periods of one route as time advances.
type RouteFailureCtrl struct {
	failTime  FailTime
	rng       RandSource
	curTime   uint64
	failed    bool
	recoverTs uint64 // unit: us; end of the current failure (valid if failed)
	failTs    uint64 // unit: us; start of the next failure (valid if not failed)
	remainTm  uint64 // unit: us; time that remains in this fail cycle after the failure ended.

	NumFailures int
}

func NewRouteFailureCtrl(failTime FailTime, rng RandSource) *RouteFailureCtrl {
	fc := &RouteFailureCtrl{
		failTime: failTime,
		rng:      rng,
	}
	fc.calcNextFailTimestamp()
	return fc
}

// IsFailedAt advances the route state to ts and returns whether the route is broken. Times must
// not decrease.
func (fc *RouteFailureCtrl) IsFailedAt(ts uint64) bool {
	if !fc.failTime.CanFail() {
		return false
	}
	logger.AssertTrue(ts >= fc.curTime)
	fc.curTime = ts

	for {
		if fc.failed {
			if ts < fc.recoverTs {
				return true
			}
			fc.failed = false
			fc.curTime = fc.recoverTs
			fc.recoverTs = 0
			fc.calcNextFailTimestamp()
			fc.curTime = ts
			continue
		}
		if ts < fc.failTs {
			return false
		}
		fc.failed = true
		fc.NumFailures++
		fc.recoverTs = fc.failTs + fc.failTime.FailDuration
		fc.failTs = 0
	}
}

func (fc *RouteFailureCtrl) calcNextFailTimestamp() {
	if !fc.failTime.CanFail() {
		return
	}
	failStartTimeMax := int(fc.failTime.FailInterval - fc.failTime.FailDuration)
	failTsRel := uint64(fc.rng.RandInt(0, failStartTimeMax))
	fc.failTs = failTsRel + fc.curTime + fc.remainTm
	fc.remainTm = fc.failTime.FailInterval - fc.failTime.FailDuration - failTsRel
	logger.AssertTrue(fc.remainTm < fc.failTime.FailInterval)
}
