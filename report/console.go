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

package report

import (
	"fmt"
	"io"

	"github.com/otns-qos/qosns/kpi"
)

// WriteSummary writes the human-readable QoS summary of a run.
func WriteSummary(w io.Writer, k *kpi.Kpi) {
	ff := FormatFloat
	_, _ = fmt.Fprintf(w, "\n=== QoS ANALYSIS RESULTS ===\n")
	for _, f := range k.Flows {
		_, _ = fmt.Fprintf(w, "Flow %d [%s]: Tx=%d, Rx=%d, Thpt=%s kbps, Delay=%s ms, Jitter=%s ms, Loss=%s %%\n",
			f.FlowId, f.Class, f.TxPackets, f.RxPackets, ff(f.ThroughputKbps), ff(f.DelayMs), ff(f.JitterMs),
			ff(f.LossPercent))
	}

	if !k.HasValidFlows() {
		_, _ = fmt.Fprintf(w, "\nNo valid flows found!\n")
		return
	}

	ov := k.Overall
	_, _ = fmt.Fprintf(w, "\n=== OVERALL QoS SUMMARY ===\n")
	_, _ = fmt.Fprintf(w, "Flows: %d\n", ov.NumFlows)
	_, _ = fmt.Fprintf(w, "Avg Throughput: %s kbps\n", ff(ov.ThroughputKbps))
	_, _ = fmt.Fprintf(w, "Avg Delay: %s ms\n", ff(ov.DelayMs))
	_, _ = fmt.Fprintf(w, "Avg Jitter: %s ms\n", ff(ov.JitterMs))
	_, _ = fmt.Fprintf(w, "PDR: %s %%\n", ff(ov.PdrPercent))

	for _, c := range k.Classes {
		_, _ = fmt.Fprintf(w, "\n=== %s QoS ===\n", c.Class)
		_, _ = fmt.Fprintf(w, "Avg Throughput: %s kbps\n", ff(c.ThroughputKbps))
		_, _ = fmt.Fprintf(w, "Avg Delay: %s ms\n", ff(c.DelayMs))
		_, _ = fmt.Fprintf(w, "Avg Jitter: %s ms\n", ff(c.JitterMs))
		_, _ = fmt.Fprintf(w, "Avg Loss: %s %%\n", ff(c.LossPercent))
	}

	an := k.Anomalies
	if an.UnmatchedReceives+an.NegativeDelays+an.DuplicatePacketIds+an.ClassRelabels > 0 {
		_, _ = fmt.Fprintf(w, "\nAnomalies: unmatched-rx=%d, negative-delay=%d, duplicate-pkt-id=%d, class-relabel=%d\n",
			an.UnmatchedReceives, an.NegativeDelays, an.DuplicatePacketIds, an.ClassRelabels)
	}
}
