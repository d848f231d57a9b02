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

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TraceLogger writes the event trace of a single run to a file. Header lines start with '#', so
// the file can be replayed as a CLI script.
type TraceLogger struct {
	logFile       *os.File
	logFileName   string
	isFileEnabled bool
	numLines      int
}

func NewTraceLogger(outputDir string, runName string) *TraceLogger {
	tl := &TraceLogger{
		logFileName:   GetTraceLogFileName(outputDir, runName),
		isFileEnabled: true,
	}
	tl.createLogFile()
	return tl
}

func GetTraceLogFileName(outputDir string, runName string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_trace.log", runName))
}

func (tl *TraceLogger) createLogFile() {
	var err error
	_ = os.Remove(tl.logFileName)
	tl.logFile, err = os.OpenFile(tl.logFileName, os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		Errorf("creating trace log file %s failed: %+v", tl.logFileName, err)
		tl.isFileEnabled = false
		return
	}

	header := fmt.Sprintf("#\n# QoS-NS event trace, created %s\n", time.Now().Format(time.RFC3339)) +
		"# command  flow  packet  size  time(s)  [addr]"
	_ = tl.writeToLogFile(header)
	Debugf("Trace log file '%s' created.", tl.logFileName)
}

// Writef appends one line to the trace.
func (tl *TraceLogger) Writef(format string, args ...interface{}) {
	if !tl.isFileEnabled {
		return
	}
	if tl.writeToLogFile(getMessage(format, args)) == nil {
		tl.numLines++
	}
}

func (tl *TraceLogger) writeToLogFile(line string) error {
	_, err := tl.logFile.WriteString(line + "\n")
	if err != nil {
		tl.Close()
		Errorf("couldn't write to trace log file (%s), closing it", tl.logFileName)
	}
	return err
}

func (tl *TraceLogger) FileName() string {
	return tl.logFileName
}

func (tl *TraceLogger) NumLines() int {
	return tl.numLines
}

func (tl *TraceLogger) IsFileEnabled() bool {
	return tl.isFileEnabled
}

func (tl *TraceLogger) Close() {
	if tl.logFile != nil {
		_ = tl.logFile.Close()
		tl.logFile = nil
	}
	tl.isFileEnabled = false
}
