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
	"strings"

	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	Class    *ClassCmd    `  @@` //nolint
	Counters *CountersCmd `| @@` //nolint
	End      *EndCmd      `| @@` //nolint
	Exit     *ExitCmd     `| @@` //nolint
	Flows    *FlowsCmd    `| @@` //nolint
	Go       *GoCmd       `| @@` //nolint
	Help     *HelpCmd     `| @@` //nolint
	LogLevel *LogLevelCmd `| @@` //nolint
	Pending  *PendingCmd  `| @@` //nolint
	Recv     *RecvCmd     `| @@` //nolint
	Report   *ReportCmd   `| @@` //nolint
	Reset    *ResetCmd    `| @@` //nolint
	Send     *SendCmd     `| @@` //nolint
	Setup    *SetupCmd    `| @@` //nolint
	Time     *TimeCmd     `| @@` //nolint
	Traffic  *TrafficCmd  `| @@` //nolint
}

// noinspection GoStructTag
type FlowSelector struct {
	Id int `@Int` //nolint
}

// noinspection GoStructTag
type SendCmd struct {
	Cmd      struct{}     `"send"`            //nolint
	Flow     FlowSelector `@@`                //nolint
	PacketId uint64       `@Int`              //nolint
	Size     uint32       `@Int`              //nolint
	Time     *float64     `[ (@Int|@Float) ]` //nolint
}

// noinspection GoStructTag
type RecvCmd struct {
	Cmd      struct{}     `"recv"`          //nolint
	Flow     FlowSelector `@@`              //nolint
	PacketId uint64       `@Int`            //nolint
	Size     uint32       `@Int`            //nolint
	Time     *float64     `[ (@Int|@Float)` //nolint
	SrcAddr  *string      `  [ @String ] ]` //nolint
}

// noinspection GoStructTag
type ClassCmd struct {
	Cmd   struct{}     `"class"`         //nolint
	Flow  FlowSelector `@@`              //nolint
	Label string       `@(Ident|String)` //nolint
}

// noinspection GoStructTag
type EndCmd struct {
	Cmd  struct{} `"end"`             //nolint
	Time *float64 `[ (@Int|@Float) ]` //nolint
}

// noinspection GoStructTag
type GoCmd struct {
	Cmd  struct{}  `"go"`                                     //nolint
	Time string    `( @((Int|Float)["h"|"us"|"m"|"ms"|"s"]) ` //nolint
	Ever *EverFlag `| @@ )`                                   //nolint
}

// noinspection GoStructTag
type EverFlag struct {
	Dummy struct{} `"ever"` //nolint
}

// noinspection GoStructTag
type FlowsCmd struct {
	Cmd   struct{}       `"flows"`     //nolint
	Flows []FlowSelector `[ ( @@ )+ ]` //nolint
}

// noinspection GoStructTag
type ReportCmd struct {
	Cmd    struct{} `"report"`                   //nolint
	Format string   `[ @("csv"|"yaml"|"json") ]` //nolint
}

// noinspection GoStructTag
type PendingCmd struct {
	Cmd struct{} `"pending"` //nolint
}

// noinspection GoStructTag
type CountersCmd struct {
	Cmd struct{} `"counters"` //nolint
}

// noinspection GoStructTag
type ResetCmd struct {
	Cmd struct{} `"reset"` //nolint
}

// noinspection GoStructTag
type SetupCmd struct {
	Cmd struct{} `"setup"` //nolint
}

// noinspection GoStructTag
type TrafficCmd struct {
	Cmd struct{} `"traffic"` //nolint
}

// noinspection GoStructTag
type TimeCmd struct {
	Cmd struct{} `"time"` //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

type LogLevelCmd struct {
	Cmd   struct{} `"log"`                                                                                               //nolint
	Level string   `[@( "micro"|"trace"|"debug"|"info"|"note"|"warn"|"error"|"off"|"default"|"T"|"D"|"I"|"N"|"W"|"E" )]` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd       struct{} `"help"`       //nolint
	HelpTopic string   `[ (@Ident) ]` //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func parseBytes(b []byte, cmd *Command) error {
	return commandParser.ParseBytes(b, cmd)
}

// unquote strips the quotes of a String token, for lexers that keep them.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
