// Copyright (c) 2023, The OTNS Authors.
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
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mitchellh/go-wordwrap"
	"github.com/otns-qos/qosns/logger"
	"golang.org/x/term"
)

type Help struct {
	termWidth     uint
	maxCmdWidth   uint
	commands      map[string]string
	commandsShort map[string]string
}

var (
	cmdHeaderPattern  = regexp.MustCompile("^### .+")
	linkTargetPattern = regexp.MustCompile(`\(#[a-z]+\)`)
)

// Embed the CLI help file as a static resource.
//
//go:embed README.md
var cliHelpFile string

// Creates new Help object. It is used to display CLI commands help to the user.
func newHelp() Help {
	h := Help{
		termWidth:     80,
		maxCmdWidth:   10,
		commands:      make(map[string]string),
		commandsShort: make(map[string]string),
	}
	h.parseHelpFile()
	h.update()
	return h
}

// Updates the Help object to take into account current user's terminal size.
func (help *Help) update() {
	fdTerm := int(os.Stdout.Fd()) // Windows platform requires cast to int.
	if term.IsTerminal(fdTerm) {
		width, _, err := term.GetSize(fdTerm)
		if err != nil {
			logger.Warnf("could not get terminal size: %v", err)
			return
		}
		help.termWidth = uint(width)
	}
}

// commandNames returns the sorted names of all documented commands.
func (help *Help) commandNames() []string {
	cmds := make([]string, 0, len(help.commandsShort))
	for k := range help.commandsShort {
		cmds = append(cmds, k)
	}
	sort.Strings(cmds)
	return cmds
}

// completer returns a console auto-completer for the command names, and for help topics.
func (help *Help) completer() readline.AutoCompleter {
	cmds := help.commandNames()
	topics := make([]readline.PrefixCompleterInterface, 0, len(cmds))
	items := make([]readline.PrefixCompleterInterface, 0, len(cmds))
	for _, c := range cmds {
		topics = append(topics, readline.PcItem(c))
		if c != "help" {
			items = append(items, readline.PcItem(c))
		}
	}
	items = append(items, readline.PcItem("help", topics...))
	return readline.NewPrefixCompleter(items...)
}

// outputGeneralHelp lists all commands with their one-line summary.
func (help *Help) outputGeneralHelp() string {
	var sb strings.Builder
	for _, c := range help.commandNames() {
		sb.WriteString(fmt.Sprintf("%-*s %s\n", int(help.maxCmdWidth), c, help.commandsShort[c]))
	}
	sb.WriteString(wordwrap.WrapString("\nFor detailed help per command, use: 'help <command>'\n", help.termWidth))
	sb.WriteString(wordwrap.WrapString("\nLines starting with '#' are comments. Trace logs of a run can be replayed "+
		"as a script with the -script flag.\n", help.termWidth))
	return sb.String()
}

func (help *Help) outputCommandHelp(command string) string {
	help.update()
	explanation, ok := help.commands[command]
	if !ok {
		return fmt.Sprintf("%s\n  (Unknown command, see 'help' for the list of commands.)\n", command)
	}

	var sb strings.Builder
	width := help.termWidth - 3
	for i, line := range strings.Split(strings.TrimRight(explanation, "\n"), "\n") {
		if i == 0 {
			sb.WriteString(line + "\n")
			continue
		}
		for _, wrapped := range strings.Split(wordwrap.WrapString(line, width), "\n") {
			sb.WriteString("  " + wrapped + "\n")
		}
	}
	return sb.String()
}

// parseHelpFile splits the embedded markdown into one help text per '### <command>' section. Code
// blocks become indented 'Definition' and 'Example' parts.
func (help *Help) parseHelpFile() {
	const indentString = "  "
	activeCmd := ""
	inCode := false
	for _, line := range strings.Split(cliHelpFile, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case cmdHeaderPattern.MatchString(line):
			activeCmd = strings.TrimSpace(line[strings.Index(line, " ")+1:])
			help.commands[activeCmd] = activeCmd + "\n"
			help.commandsShort[activeCmd] = ""
			if uint(len(activeCmd)) > help.maxCmdWidth {
				help.maxCmdWidth = uint(len(activeCmd))
			}
			continue
		case len(activeCmd) == 0 || len(line) == 0:
			continue
		case line == "```shell":
			line, inCode = "Definition:", true
		case line == "```bash":
			line, inCode = "Example:", true
		case line == "```":
			inCode = false
			continue
		case inCode:
			line = indentString + line
		default:
			line = markdownUnquote(line)
			if len(help.commandsShort[activeCmd]) == 0 {
				help.commandsShort[activeCmd] = firstSentence(line)
			}
		}
		help.commands[activeCmd] += line + "\n"
	}
}

func firstSentence(line string) string {
	if idx := strings.Index(line, ". "); idx > 0 {
		return line[:idx+1]
	}
	return line
}

func markdownUnquote(md string) string {
	md = strings.ReplaceAll(md, "\\", "")
	md = strings.ReplaceAll(md, "`", "'")
	return linkTargetPattern.ReplaceAllString(md, "")
}
