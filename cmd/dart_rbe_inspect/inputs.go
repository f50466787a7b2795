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
	"fmt"
	"io"
	"path/filepath"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.dart.dev/rbe/rbe/dispatch"
)

func cmdInputs() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "inputs <path/to/rewrapper> [rewrapper flags] -- <command>",
		ShortDesc: "prints the inputs of a wrapped command",
		LongDesc: `Computes the --inputs rewrapper_dart would pass for a wrapped command
line and prints them one per line, relative to the execution root.`,
		CommandRun: func() subcommands.CommandRun {
			r := &inputsRun{}
			r.registerFlags()
			return r
		},
	}
}

type inputsRun struct {
	commandBase
}

func (r *inputsRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	return r.done(a, r.run(ctx, args, a.GetOut()))
}

func (r *inputsRun) run(ctx context.Context, args []string, out io.Writer) error {
	desc, wd, err := r.parse(ctx, args)
	if err != nil {
		return err
	}
	if desc.ExecRoot == "" {
		return dispatch.ErrMissingExecRoot
	}
	rel, err := filepath.Rel(desc.ExecRoot, wd)
	if err != nil || rel == "." {
		rel = ""
	}
	d := &dispatch.Dispatcher{WorkDir: wd}
	inputs, err := d.Inputs(ctx, desc, filepath.ToSlash(rel))
	if err != nil {
		return err
	}
	for _, in := range inputs {
		if _, err := fmt.Fprintln(out, in); err != nil {
			return err
		}
	}
	return nil
}
