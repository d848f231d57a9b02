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
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/otns-qos/qosns/logger"
)

// RowSink accepts ordered text rows of the structured report.
type RowSink interface {
	WriteRow(fields []string) error
	Flush() error
	Close() error
}

type CsvSink struct {
	w      *csv.Writer
	closer io.Closer
	path   string
}

// NewCsvSink writes rows as CSV to w. If w is an io.Closer, Close closes it.
func NewCsvSink(w io.Writer) *CsvSink {
	s := &CsvSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// NewFileSink creates (or truncates) the file at path, creating parent directories as needed.
func NewFileSink(path string) (*CsvSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create report directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create report file %s", path)
	}
	s := NewCsvSink(f)
	s.path = path
	return s, nil
}

func (s *CsvSink) Path() string {
	return s.path
}

func (s *CsvSink) WriteRow(fields []string) error {
	return s.w.Write(fields)
}

func (s *CsvSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

func (s *CsvSink) Close() error {
	err := s.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}

type publisher interface {
	Publish(subj string, data []byte) error
}

type natsRow struct {
	RunId  string   `json:"run_id"`
	Seq    int      `json:"seq"`
	Fields []string `json:"fields"`
}

// NatsSink publishes each row as a JSON message on a NATS subject.
type NatsSink struct {
	nc      *nats.Conn
	pub     publisher
	subject string
	runId   string
	seq     int
}

func NewNatsSink(url string, subject string, runId string) (*NatsSink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to NATS server at %s", url)
	}
	logger.Infof("Connected to NATS server at %s, publishing report to '%s'", url, subject)
	return &NatsSink{nc: nc, pub: nc, subject: subject, runId: runId}, nil
}

func (s *NatsSink) WriteRow(fields []string) error {
	data, err := json.Marshal(&natsRow{RunId: s.runId, Seq: s.seq, Fields: fields})
	if err != nil {
		return err
	}
	s.seq++
	return errors.Wrapf(s.pub.Publish(s.subject, data), "publish to %s failed", s.subject)
}

func (s *NatsSink) Flush() error {
	if s.nc != nil {
		return s.nc.Flush()
	}
	return nil
}

// Close drains and closes the NATS connection.
func (s *NatsSink) Close() error {
	if s.nc != nil {
		err := s.nc.Drain()
		s.nc = nil
		return err
	}
	return nil
}

// MultiSink forwards rows to all of its sinks, in order, and returns the first error.
type MultiSink struct {
	sinks []RowSink
}

func NewMultiSink(sinks ...RowSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (ms *MultiSink) AddSink(s RowSink) {
	ms.sinks = append(ms.sinks, s)
}

func (ms *MultiSink) WriteRow(fields []string) error {
	var firstErr error
	for _, s := range ms.sinks {
		if err := s.WriteRow(fields); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (ms *MultiSink) Flush() error {
	var firstErr error
	for _, s := range ms.sinks {
		if err := s.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (ms *MultiSink) Close() error {
	var firstErr error
	for _, s := range ms.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
