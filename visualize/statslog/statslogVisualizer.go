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

package visualize_statslog

import (
	"fmt"
	"os"

	"github.com/otns-qos/qosns/logger"
	. "github.com/otns-qos/qosns/types"
	. "github.com/otns-qos/qosns/visualize"
)

type statslogVisualizer struct {
	logFile       *os.File
	logFileName   string
	isFileEnabled bool
	timestampUs   uint64 // simulation current timestamp
	numEntries    int
	flowClasses   map[FlowId]TrafficClass
}

// NewStatslogVisualizer creates a new Visualizer that writes a CSV log of per-time-window traffic stats to file.
func NewStatslogVisualizer(outputDir string, simulationId int) Visualizer {
	return &statslogVisualizer{
		logFileName:   GetStatsLogFileName(outputDir, simulationId),
		isFileEnabled: true,
		flowClasses:   make(map[FlowId]TrafficClass, 64),
	}
}

func (sv *statslogVisualizer) Init() {
	sv.createLogFile()
}

func (sv *statslogVisualizer) Stop() {
	sv.close()
	logger.Debugf("statslogVisualizer stopped and CSV log file closed (%d entries).", sv.numEntries)
}

func (sv *statslogVisualizer) AdvanceTime(ts uint64) {
	sv.timestampUs = ts
}

func (sv *statslogVisualizer) SetTrafficClass(flowId FlowId, class TrafficClass) {
	sv.flowClasses[flowId] = class
}

func (sv *statslogVisualizer) OnSend(FlowId, PacketId, uint32, uint64) {
}

func (sv *statslogVisualizer) OnReceive(FlowId, PacketId, uint32, uint64) {
}

func (sv *statslogVisualizer) UpdateTimeWindowStats(info *TimeWindowStatsInfo) {
	sv.writeLogEntry(info)
}

func (sv *statslogVisualizer) createLogFile() {
	logger.AssertNil(sv.logFile)

	var err error
	_ = os.Remove(sv.logFileName)

	sv.logFile, err = os.OpenFile(sv.logFileName, os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		logger.Errorf("creating new stats log file %s failed: %+v", sv.logFileName, err)
		sv.isFileEnabled = false
		return
	}
	sv.writeLogFileHeader()
	logger.Debugf("Stats log file '%s' created.", sv.logFileName)
}

func (sv *statslogVisualizer) writeLogFileHeader() {
	// RFC 4180 CSV file: no leading or trailing spaces in header field names
	header := "timeSec,nFlows,nVoipFlows,nVideoFlows,txPackets,rxPackets,rxKbps"
	_ = sv.writeToLogFile(header)
}

func (sv *statslogVisualizer) countClass(info *TimeWindowStatsInfo, class TrafficClass) int {
	c := 0
	for id, n := range info.TxPackets {
		if n > 0 && sv.flowClasses[id] == class {
			c++
		}
	}
	return c
}

func (sv *statslogVisualizer) writeLogEntry(info *TimeWindowStatsInfo) {
	timeSec := UsToSeconds(info.WinStartUs + info.WinWidthUs)
	entry := fmt.Sprintf("%12.6f,%4d,%4d,%4d,%6d,%6d,%10.3f", timeSec, info.NumActiveFlows(),
		sv.countClass(info, TrafficClassVoip), sv.countClass(info, TrafficClassVideo),
		info.TotalTx(), info.TotalRx(), info.RxKbps())
	if sv.isFileEnabled && sv.writeToLogFile(entry) == nil {
		sv.numEntries++
	}
	logger.Tracef("statslog entry added: %s", entry)
}

func (sv *statslogVisualizer) writeToLogFile(line string) error {
	if !sv.isFileEnabled {
		return nil
	}
	_, err := sv.logFile.WriteString(line + "\n")
	if err != nil {
		sv.close()
		sv.isFileEnabled = false
		logger.Errorf("couldn't write to stats log file (%s), closing it", sv.logFileName)
	}
	return err
}

func (sv *statslogVisualizer) close() {
	if sv.logFile != nil {
		_ = sv.logFile.Close()
		sv.logFile = nil
		sv.isFileEnabled = false
	}
}

func GetStatsLogFileName(outputDir string, simId int) string {
	return fmt.Sprintf("%s/%d_stats.csv", outputDir, simId)
}
