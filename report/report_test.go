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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otns-qos/qosns/flowstats"
	"github.com/otns-qos/qosns/kpi"
	. "github.com/otns-qos/qosns/types"
)

func twoClassKpi() *kpi.Kpi {
	reg := flowstats.NewRegistry()
	reg.RegisterTrafficClass(1, TrafficClassVoip)
	reg.RegisterTrafficClass(2, TrafficClassVideo)
	reg.RecordSend(1, 1, 160, 1_000_000)
	reg.RecordReceive(1, 1, 160, 1_020_000)
	reg.RecordSend(2, 2, 1024, 1_000_000)
	reg.RecordSend(2, 3, 1024, 1_100_000)
	reg.RecordReceive(2, 2, 1024, 1_040_000)
	return kpi.Calculate(reg, kpi.RunInfo{Routing: "DSR", SpeedMps: 5, Nodes: 10, Clients: 2, TotalTimeSec: 10})
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "100", FormatFloat(100))
	assert.Equal(t, "0", FormatFloat(0))
	assert.Equal(t, "1.5534", FormatFloat(1.5534))
	assert.Equal(t, "66.6667", FormatFloat(200.0/3.0))
	assert.Equal(t, "-50", FormatFloat(-50))
	assert.Equal(t, "1e+06", FormatFloat(1e6))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "qos_dsr_20node_speed5_4client.txt", FileName("DSR", 20, 5, 4))
	assert.Equal(t, "qos_aodv_10node_speed2.5_3client.txt", FileName("AODV", 10, 2.5, 3))
}

func TestRows(t *testing.T) {
	rows := Rows(twoClassKpi())
	expected := [][]string{
		CsvHeader,
		{"DSR", "5", "VoIP", "1", "1", "1", "64", "20", "0", "0"},
		{"DSR", "5", "Video", "2", "2", "1", "204.8", "40", "0", "50"},
		{"DSR", "5", "Overall", "Average", "", "", "134.4", "30", "0", "33.3333"},
		{"DSR", "5", "VoIP", "Average", "", "", "64", "20", "0", "0"},
		{"DSR", "5", "Video", "Average", "", "", "204.8", "40", "0", "50"},
	}
	assert.Equal(t, expected, rows)
}

func TestRowsNoValidFlows(t *testing.T) {
	reg := flowstats.NewRegistry()
	reg.RecordSend(1, 1, 100, 0)
	rows := Rows(kpi.Calculate(reg, kpi.RunInfo{Routing: "DSR", TotalTimeSec: 1}))
	assert.Equal(t, [][]string{CsvHeader}, rows)
}

func TestEmitCsv(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCsvSink(&buf)
	require.NoError(t, Emit(sink, twoClassKpi()))
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Routing,Speed,TrafficType,FlowID,TxPackets,RxPackets,Throughput(kbps),Delay(ms),Jitter(ms),Loss(%)", lines[0])
	assert.Equal(t, "DSR,5,Overall,Average,,,134.4,30,0,33.3333", lines[3])
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt", FileName("DSR", 10, 5, 2))
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())
	require.NoError(t, Emit(sink, twoClassKpi()))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Routing,Speed,"))
	assert.Contains(t, string(data), "DSR,5,Video,Average,,,204.8,40,0,50\n")
}

type fakePublisher struct {
	subjects []string
	msgs     [][]byte
	err      error
}

func (fp *fakePublisher) Publish(subj string, data []byte) error {
	if fp.err != nil {
		return fp.err
	}
	fp.subjects = append(fp.subjects, subj)
	fp.msgs = append(fp.msgs, data)
	return nil
}

func TestNatsSink(t *testing.T) {
	fp := &fakePublisher{}
	sink := &NatsSink{pub: fp, subject: "qos.report", runId: "run-1"}
	require.NoError(t, Emit(sink, twoClassKpi()))
	require.NoError(t, sink.Close())
	require.Len(t, fp.msgs, 6)
	assert.Equal(t, "qos.report", fp.subjects[5])

	var row natsRow
	require.NoError(t, json.Unmarshal(fp.msgs[1], &row))
	assert.Equal(t, "run-1", row.RunId)
	assert.Equal(t, 1, row.Seq)
	assert.Equal(t, "VoIP", row.Fields[2])

	fp.err = errors.New("no responders")
	assert.Error(t, sink.WriteRow([]string{"x"}))
}

func TestMultiSink(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	fp := &fakePublisher{err: errors.New("down")}
	ms := NewMultiSink(NewCsvSink(&buf1))
	ms.AddSink(&NatsSink{pub: fp, subject: "s"})
	ms.AddSink(NewCsvSink(&buf2))

	err := Emit(ms, twoClassKpi())
	assert.Error(t, err)
	require.NoError(t, ms.Close())
	// a failing sink does not stop the others
	assert.Equal(t, buf1.String(), buf2.String())
	assert.Equal(t, 6, strings.Count(buf2.String(), "\n"))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, twoClassKpi())
	out := buf.String()
	assert.Contains(t, out, "=== QoS ANALYSIS RESULTS ===")
	assert.Contains(t, out, "Flow 1 [VoIP]: Tx=1, Rx=1, Thpt=64 kbps, Delay=20 ms, Jitter=0 ms, Loss=0 %\n")
	assert.Contains(t, out, "Flow 2 [Video]: Tx=2, Rx=1, Thpt=204.8 kbps, Delay=40 ms, Jitter=0 ms, Loss=50 %\n")
	assert.Contains(t, out, "=== OVERALL QoS SUMMARY ===\nFlows: 2\n")
	assert.Contains(t, out, "PDR: 66.6667 %\n")
	assert.Contains(t, out, "=== VoIP QoS ===")
	assert.Contains(t, out, "=== Video QoS ===")
	assert.NotContains(t, out, "Anomalies")
	assert.Less(t, strings.Index(out, "VoIP QoS"), strings.Index(out, "Video QoS"))
}

func TestWriteSummaryNoValidFlows(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, kpi.Calculate(flowstats.NewRegistry(), kpi.RunInfo{TotalTimeSec: 1}))
	assert.Contains(t, buf.String(), "No valid flows found!")
	assert.NotContains(t, buf.String(), "OVERALL")
}

func TestWriteYaml(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYaml(&buf, twoClassKpi()))
	assert.Contains(t, buf.String(), "status: ok")
	assert.Contains(t, buf.String(), "routing: DSR")
	assert.Contains(t, buf.String(), "class: Video")
}
