// Copyright 2024 The Dart Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.dart.dev/rbe/rbe/command"
)

func cmdParse() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "parse [-json] <path/to/rewrapper> [rewrapper flags] -- <command>",
		ShortDesc: "prints what a wrapped command reads and writes",
		LongDesc: `Parses a wrapped command line the way rewrapper_dart does and prints
the toolchain state it was recognized as, its entry points, extra inputs,
outputs and depfiles.`,
		CommandRun: func() subcommands.CommandRun {
			r := &parseRun{}
			r.registerFlags()
			r.Flags.BoolVar(&r.json, "json", false, "Print the result as JSON.")
			return r
		},
	}
}

type parseRun struct {
	commandBase

	json bool
}

// descriptorJSON is the -json rendering of command.Descriptor.
type descriptorJSON struct {
	State        string   `json:"state"`
	Program      string   `json:"program,omitempty"`
	ExecRoot     string   `json:"exec_root"`
	ExecStrategy string   `json:"exec_strategy"`
	Entries      []string `json:"entries,omitempty"`
	Extras       []string `json:"extras,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
	Depfiles     []string `json:"depfiles,omitempty"`
	NoRemote     bool     `json:"no_remote,omitempty"`
}

func (r *parseRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	return r.done(a, r.run(ctx, args, a.GetOut()))
}

func (r *parseRun) run(ctx context.Context, args []string, out io.Writer) error {
	desc, _, err := r.parse(ctx, args)
	if err != nil {
		return err
	}
	if !r.json {
		_, err := fmt.Fprintln(out, desc)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSON(desc))
}

func toJSON(d *command.Descriptor) *descriptorJSON {
	return &descriptorJSON{
		State:        d.State,
		Program:      d.Program,
		ExecRoot:     d.ExecRoot,
		ExecStrategy: d.ExecStrategy,
		Entries:      d.Entries.ToSortedSlice(),
		Extras:       d.Extras.ToSortedSlice(),
		Outputs:      d.Outputs,
		Depfiles:     d.Depfiles,
		NoRemote:     d.NoRemote,
	}
}
