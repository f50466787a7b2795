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
	"go.chromium.org/luci/common/logging"

	"go.dart.dev/rbe/rbe/command"
	"go.dart.dev/rbe/rbe/rewrite"
)

func cmdRewrite() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "rewrite -exec-root <dir> [-work-dir <dir>] <arg>...",
		ShortDesc: "prints arguments with absolute paths made relative",
		LongDesc: `Rewrites each argument the way rewrapper_dart rewrites the wrapped
command line and prints one result per line. Without -work-dir, the
working directory is -C relative to -exec-root.`,
		CommandRun: func() subcommands.CommandRun {
			r := &rewriteRun{}
			r.registerFlags()
			r.Flags.StringVar(&r.execRoot, "exec-root", "", "Absolute execution root.")
			r.Flags.StringVar(&r.relWorkDir, "work-dir", "", "Working directory relative to the execution root.")
			return r
		},
	}
}

type rewriteRun struct {
	commandBase

	execRoot   string
	relWorkDir string
}

func (r *rewriteRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	return r.done(a, r.run(ctx, args, a.GetOut()))
}

func (r *rewriteRun) run(ctx context.Context, args []string, out io.Writer) error {
	if r.execRoot == "" {
		logging.Warningf(ctx, "no -exec-root, arguments are printed unchanged")
	}
	wd, err := r.absWorkDir()
	if err != nil {
		return err
	}
	root := r.execRoot
	if root != "" {
		root = command.NormalizeRoot(root, wd)
	}
	rel := r.relWorkDir
	if rel == "" && root != "" {
		if rel, err = filepath.Rel(root, wd); err != nil || rel == "." {
			rel = ""
		}
		rel = filepath.ToSlash(rel)
	}
	logging.Debugf(ctx, "rewriting against %q in %q", root, rel)
	for _, arg := range args {
		if _, err := fmt.Fprintln(out, rewrite.Absolute(arg, root, rel)); err != nil {
			return err
		}
	}
	return nil
}
