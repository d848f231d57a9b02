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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/logger"
)

const eventLogReadSize = 64 * 1024

// EventLog records delivered events in their binary form, so a run can be replayed exactly.
type EventLog struct {
	fileName string
	f        *os.File
	w        *bufio.Writer
	count    int
}

func GetEventLogFileName(outputDir string, simId int) string {
	return fmt.Sprintf("%s/%d_events.bin", outputDir, simId)
}

func NewEventLog(fileName string) (*EventLog, error) {
	f, err := os.Create(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create event log %s", fileName)
	}
	return &EventLog{
		fileName: fileName,
		f:        f,
		w:        bufio.NewWriter(f),
	}, nil
}

func (el *EventLog) Write(evt *event.Event) {
	if el.f == nil {
		return
	}
	if _, err := el.w.Write(evt.Serialize()); err != nil {
		logger.Errorf("writing event log %s failed, closing it: %v", el.fileName, err)
		el.Close()
		return
	}
	el.count++
}

func (el *EventLog) Count() int {
	return el.count
}

func (el *EventLog) FileName() string {
	return el.fileName
}

func (el *EventLog) Close() {
	if el.f == nil {
		return
	}
	if err := el.w.Flush(); err != nil {
		logger.Errorf("flushing event log %s failed: %v", el.fileName, err)
	}
	_ = el.f.Close()
	el.f = nil
}

// ReadEvents reads all events of a binary event log. A truncated last event is an error.
func ReadEvents(r io.Reader) ([]*event.Event, error) {
	var evts []*event.Event
	var rest []byte
	buf := make([]byte, eventLogReadSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			var parsed []*event.Event
			parsed, rest = event.DeserializeAll(append(rest, buf[:n]...))
			evts = append(evts, parsed...)
		}
		if err == io.EOF {
			break
		} else if err != nil {
			return evts, errors.Wrap(err, "reading event log failed")
		}
	}
	if len(rest) > 0 {
		return evts, errors.Errorf("event log has %d trailing bytes", len(rest))
	}
	return evts, nil
}

// ReadEventLogFile reads all events of a binary event log file.
func ReadEventLogFile(fileName string) ([]*event.Event, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open event log %s", fileName)
	}
	defer f.Close()
	return ReadEvents(f)
}
