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
	"math"

	"github.com/iti/rngstream"

	. "github.com/otns-qos/qosns/types"
)

// RandSource provides uniform random numbers; satisfied by *rngstream.RngStream.
type RandSource interface {
	RandU01() float64
	RandInt(i, j int) int
}

type LinkConfig struct {
	BaseLoss      float64 `yaml:"base_loss"`        // packet loss probability of a static network
	LossPerMps    float64 `yaml:"loss_per_mps"`     // additional loss probability per m/s node speed
	MaxLoss       float64 `yaml:"max_loss"`         // upper bound of the loss probability
	PerHopDelayMs float64 `yaml:"per_hop_delay_ms"` // forwarding delay per hop
	MaxHops       int     `yaml:"max_hops"`         // routes use 1..MaxHops hops
	JitterMs      float64 `yaml:"jitter_ms"`        // uniform queueing delay variation per packet

	// route breaks, e.g. by node mobility; all packets sent on a broken route are lost.
	RouteFailDurationSec float64 `yaml:"route_fail_duration"`
	RouteFailIntervalSec float64 `yaml:"route_fail_interval"`
}

func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		BaseLoss:      0.02,
		LossPerMps:    0.01,
		MaxLoss:       0.9,
		PerHopDelayMs: 2.0,
		MaxHops:       4,
		JitterMs:      5.0,
	}
}

func (cfg LinkConfig) RouteFailTime() FailTime {
	ft := FailTime{
		FailDuration: SecondsToUs(cfg.RouteFailDurationSec),
		FailInterval: SecondsToUs(cfg.RouteFailIntervalSec),
	}
	if !ft.CanFail() {
		return NonFailTime
	}
	return ft
}

// LinkModel decides per packet whether it gets lost, and its end-to-end delay.
type LinkModel struct {
	cfg      LinkConfig
	speedMps float64
	rng      RandSource
}

func NewLinkModel(cfg LinkConfig, speedMps float64, rng RandSource) *LinkModel {
	return &LinkModel{
		cfg:      cfg,
		speedMps: speedMps,
		rng:      rng,
	}
}

// NewLinkModelStream creates a link model on a fresh rngstream stream. The seed selects which
// stream of the generator sequence is used.
func NewLinkModelStream(cfg LinkConfig, speedMps float64, seed int) *LinkModel {
	for i := 0; i < seed; i++ {
		rngstream.New("skip")
	}
	return NewLinkModel(cfg, speedMps, rngstream.New("link"))
}

// NewRouteFailureCtrl creates the route failure control of one flow, on the random source of the link.
func (lm *LinkModel) NewRouteFailureCtrl() *RouteFailureCtrl {
	return NewRouteFailureCtrl(lm.cfg.RouteFailTime(), lm.rng)
}

func (lm *LinkModel) LossProbability() float64 {
	p := lm.cfg.BaseLoss + lm.cfg.LossPerMps*lm.speedMps
	maxLoss := lm.cfg.MaxLoss
	if maxLoss <= 0 || maxLoss > 1 {
		maxLoss = 1
	}
	return math.Max(0, math.Min(p, maxLoss))
}

// Transmit samples the fate of one packet. The delay is in seconds and only meaningful if not lost.
func (lm *LinkModel) Transmit() (delaySec float64, lost bool) {
	if lm.rng.RandU01() < lm.LossProbability() {
		return 0, true
	}

	hops := 1
	if lm.cfg.MaxHops > 1 {
		hops = lm.rng.RandInt(1, lm.cfg.MaxHops)
	}
	delayMs := float64(hops)*lm.cfg.PerHopDelayMs + lm.rng.RandU01()*lm.cfg.JitterMs
	return delayMs / 1000.0, false
}
