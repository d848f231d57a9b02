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

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/otns-qos/qosns/dispatcher"
	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/flowstats"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/progctx"
	"github.com/otns-qos/qosns/report"
	"github.com/otns-qos/qosns/simulation"
	. "github.com/otns-qos/qosns/types"
)

const (
	Prompt = "> "
)

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	for _, content := range itemsYaml.Content {
		content.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

type CmdRunner struct {
	sim  *simulation.Simulation
	ctx  *progctx.ProgCtx
	help Help
}

func NewCmdRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *CmdRunner {
	return &CmdRunner{
		ctx:  ctx,
		sim:  sim,
		help: newHelp(),
	}
}

// RunCommand parses and executes one command line. Comment lines starting with '#' are skipped.
func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() != nil {
		return rt.ctx.Err()
	}
	cmdline = strings.TrimSpace(cmdline)
	if len(cmdline) == 0 || cmdline[0] == '#' {
		return nil
	}

	cmd := Command{}
	if err := parseBytes([]byte(cmdline), &cmd); err != nil {
		if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
			return err
		}
	} else {
		rt.execute(&cmd, output)
	}
	return rt.ctx.Err()
}

func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	return rt.RunCommand(cmdline, output)
}

func (rt *CmdRunner) GetPrompt() string {
	return Prompt
}

// AutoCompleter returns the console auto-completer for the commands.
func (rt *CmdRunner) AutoCompleter() readline.AutoCompleter {
	return rt.help.completer()
}

// RunScript executes the commands in r, line by line, until the end of input or program exit. Trace
// logs written by the simulation are valid scripts.
func (rt *CmdRunner) RunScript(r io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := rt.RunCommand(scanner.Text(), output); err != nil {
			return errors.Wrapf(err, "script stopped at line %d", lineNum)
		}
	}
	return scanner.Err()
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else if cmd.isEventCmd() {
			// event commands are silent, so that traces can be replayed with little output.
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Send != nil {
		rt.executeSend(cc, cmd.Send)
	} else if cmd.Recv != nil {
		rt.executeRecv(cc, cmd.Recv)
	} else if cmd.Class != nil {
		rt.executeClass(cc, cmd.Class)
	} else if cmd.End != nil {
		rt.executeEnd(cc, cmd.End)
	} else if cmd.Go != nil {
		rt.executeGo(cc, cmd.Go)
	} else if cmd.Flows != nil {
		rt.executeFlows(cc, cmd.Flows)
	} else if cmd.Report != nil {
		rt.executeReport(cc, cmd.Report)
	} else if cmd.Pending != nil {
		rt.executePending(cc)
	} else if cmd.Counters != nil {
		rt.executeCounters(cc)
	} else if cmd.Reset != nil {
		rt.executeReset(cc)
	} else if cmd.Setup != nil {
		rt.sim.PrintSetup(cc.output)
	} else if cmd.Traffic != nil {
		rt.executeTraffic(cc)
	} else if cmd.Time != nil {
		rt.executeTime(cc)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else if cmd.Exit != nil {
		rt.executeExit(cc)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

func (cmd *Command) isEventCmd() bool {
	return cmd.Send != nil || cmd.Recv != nil || cmd.Class != nil
}

func (rt *CmdRunner) postAsyncWait(cc *CommandContext, f func(sim *simulation.Simulation)) {
	done := make(chan struct{})
	if rt.sim.PostAsync(func() {
		defer close(done) // even if f() fails execution, 'done' should be closed.
		f(rt.sim)
	}) {
		<-done
	} else {
		cc.error(simulation.CommandInterruptedError)
	}
}

// eventTime returns the event timestamp in us for an optional time in seconds; default is now.
func eventTime(d *dispatcher.Dispatcher, sec *float64) uint64 {
	if sec == nil {
		return d.CurTime
	}
	return SecondsToUs(*sec)
}

// postEvent queues the event and delivers all events that are due at the current time.
func (rt *CmdRunner) postEvent(cc *CommandContext, newEvent func(d *dispatcher.Dispatcher) *event.Event) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		d := sim.Dispatcher()
		evt := newEvent(d)
		if !evt.IsValid() {
			cc.errorf("invalid event: %v", evt)
			return
		}
		d.PostEvent(evt)
		d.RunUntil(d.CurTime)
	})
}

func (rt *CmdRunner) executeSend(cc *CommandContext, cmd *SendCmd) {
	rt.postEvent(cc, func(d *dispatcher.Dispatcher) *event.Event {
		return event.NewSendEvent(cmd.Flow.Id, cmd.PacketId, cmd.Size, eventTime(d, cmd.Time))
	})
}

func (rt *CmdRunner) executeRecv(cc *CommandContext, cmd *RecvCmd) {
	srcAddr := ""
	if cmd.SrcAddr != nil {
		srcAddr = unquote(*cmd.SrcAddr)
	}
	rt.postEvent(cc, func(d *dispatcher.Dispatcher) *event.Event {
		return event.NewRecvEvent(cmd.Flow.Id, cmd.PacketId, cmd.Size, eventTime(d, cmd.Time), srcAddr)
	})
}

func (rt *CmdRunner) executeClass(cc *CommandContext, cmd *ClassCmd) {
	label := unquote(cmd.Label)
	rt.postEvent(cc, func(d *dispatcher.Dispatcher) *event.Event {
		return event.NewTrafficClassEvent(cmd.Flow.Id, label, d.CurTime)
	})
}

func (rt *CmdRunner) executeEnd(cc *CommandContext, cmd *EndCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		if sim.Engine().IsEnded() {
			cc.errorf("run has already ended, use 'reset' to start a new run")
			return
		}
		d := sim.Dispatcher()
		ts := eventTime(d, cmd.Time)
		d.PostEvent(event.NewEndOfRunEvent(ts))
		d.RunUntil(ts) // an end time in the past is delivered as a late event at the current time.
	})
}

func (rt *CmdRunner) executeGo(cc *CommandContext, cmd *GoCmd) {
	timeDurToGo := dispatcher.GoEver
	if cmd.Ever == nil {
		var err error
		timeDurToGo, err = time.ParseDuration(cmd.Time)
		if err != nil {
			timeDurToGo, err = time.ParseDuration(cmd.Time + "s") // try parsing as seconds
			if err != nil {
				cc.errorf("could not parse time duration: %s", cmd.Time)
				return
			}
		}
	}

	select {
	case <-rt.sim.Go(timeDurToGo):
	case <-rt.ctx.Done():
		cc.error(simulation.CommandInterruptedError)
	}
}

func (rt *CmdRunner) executeFlows(cc *CommandContext, cmd *FlowsCmd) {
	var flows []flowstats.FlowRecord
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		flows = sim.Engine().Flows()
	})
	if cc.Err() != nil {
		return
	}

	if len(cmd.Flows) > 0 {
		selected := make(map[FlowId]struct{}, len(cmd.Flows))
		for _, sel := range cmd.Flows {
			selected[sel.Id] = struct{}{}
		}
		filtered := flows[:0]
		for _, f := range flows {
			if _, ok := selected[f.FlowId]; ok {
				filtered = append(filtered, f)
			}
		}
		flows = filtered
	}
	cc.outputItemsAsYaml(flows)
}

func (rt *CmdRunner) executeReport(cc *CommandContext, cmd *ReportCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		k := sim.Engine().Result()
		if k == nil {
			cc.errorf("run has not ended yet, use 'end' first")
			return
		}
		switch cmd.Format {
		case "csv":
			sink := report.NewCsvSink(cc.output)
			cc.error(report.Emit(sink, k))
			cc.error(sink.Flush())
		case "yaml":
			cc.error(report.WriteYaml(cc.output, k))
		case "json":
			data, err := json.MarshalIndent(k, "", "    ")
			if err != nil {
				cc.error(err)
				return
			}
			cc.outputf("%s\n", data)
		default:
			report.WriteSummary(cc.output, k)
		}
	})
}

func (rt *CmdRunner) executePending(cc *CommandContext) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		cc.outputf("%d\n", sim.Engine().NumPending())
	})
}

func (rt *CmdRunner) executeCounters(cc *CommandContext) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		d := sim.Dispatcher()
		cc.outputf("send_events     %d\n", d.Counters.SendEvents)
		cc.outputf("recv_events     %d\n", d.Counters.RecvEvents)
		cc.outputf("class_events    %d\n", d.Counters.ClassEvents)
		cc.outputf("end_events      %d\n", d.Counters.EndEvents)
		cc.outputf("late_events     %d\n", d.Counters.LateEvents)
		cc.outputf("invalid_events  %d\n", d.Counters.InvalidEvents)
		cc.outputf("queued_events   %d\n", d.PendingEvents())
		cc.outputf("ignored_events  %d\n", sim.Engine().NumIgnored())
		cc.outputf("pending_packets %d\n", sim.Engine().NumPending())
	})
}

func (rt *CmdRunner) executeReset(cc *CommandContext) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		sim.Reset()
	})
}

func (rt *CmdRunner) executeTraffic(cc *CommandContext) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		if sim.Engine().IsEnded() {
			cc.errorf("run has already ended, use 'reset' to start a new run")
			return
		}
		sim.StartTraffic()
		cc.outputf("%d\n", sim.Dispatcher().PendingEvents())
	})
}

func (rt *CmdRunner) executeTime(cc *CommandContext) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		cc.outputf("%d\n", sim.Dispatcher().CurTime)
	})
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(logger.GetLevel()))
		return
	}
	level, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(level)
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}

func (rt *CmdRunner) executeExit(cc *CommandContext) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		sim.Stop()
	})
}
