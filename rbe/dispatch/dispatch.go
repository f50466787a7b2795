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

// Package dispatch runs a Dart toolchain command through the remote
// execution wrapper with a complete list of its inputs and outputs.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/exec"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/system/exitcode"

	"go.dart.dev/rbe/dart/imports"
	"go.dart.dev/rbe/dart/packages"
	"go.dart.dev/rbe/rbe/command"
	"go.dart.dev/rbe/rbe/depfile"
	"go.dart.dev/rbe/rbe/rewrite"
)

// Labels are passed to the wrapper for every action.
const Labels = "type=tool"

var (
	// ErrMissingExecRoot means neither --exec_root nor a --cfg file set the
	// execution root.
	ErrMissingExecRoot = command.ErrMissingExecRoot

	// ErrNoOutputs means the command declares no outputs, so it can't be
	// cached.
	ErrNoOutputs = errors.New("command has no outputs")
)

// Dispatcher runs wrapped commands.
type Dispatcher struct {
	// WorkDir is the absolute directory the build runs the command in.
	WorkDir string
	// Stdout and Stderr receive the command's output and diagnostics.
	Stdout io.Writer
	Stderr io.Writer
	// DryRun prints the final command instead of running it.
	DryRun bool

	// NewScanner overrides the import scanner. Used by tests.
	NewScanner func(execRoot string, m *packages.Manifest) imports.Scanner
}

// Main parses argv, which starts with the wrapper binary, and runs it.
//
// A command that ran and failed yields an error for which
// go.chromium.org/luci/common/system/exitcode.Get reports its exit code.
func (d *Dispatcher) Main(ctx context.Context, argv []string) error {
	argv = localBinary(argv)
	desc, err := command.Parse(ctx, argv, d.WorkDir)
	if err != nil {
		return err
	}
	switch {
	case desc.ExecRoot == "":
		return ErrMissingExecRoot
	case len(desc.Outputs) == 0:
		return errors.Fmt("%w: %s", ErrNoOutputs, strings.Join(argv, " "))
	case desc.NoRemote && d.DryRun:
		_, err := fmt.Fprintln(d.Stdout, strings.Join(desc.Command, " "))
		return err
	case desc.NoRemote:
		logging.Debugf(ctx, "running %s locally", desc.State)
		return d.runLocally(ctx, desc.Command)
	}

	if len(desc.Depfiles) == 0 {
		for _, o := range desc.Outputs {
			desc.Depfiles = append(desc.Depfiles, o+".d")
		}
	}

	relWorkDir := d.relWorkDir(desc.ExecRoot)
	inputs, err := d.Inputs(ctx, desc, relWorkDir)
	if err != nil {
		return err
	}
	cmd := Command(desc, inputs, relWorkDir)
	logging.Debugf(ctx, "running %q", cmd)

	if d.DryRun {
		_, err := fmt.Fprintln(d.Stdout, strings.Join(cmd, " "))
		return err
	}

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = d.WorkDir
	out, err := c.CombinedOutput()
	if err != nil {
		return d.failed(ctx, desc, argv, out, err)
	}
	if _, err := d.Stdout.Write(out); err != nil {
		return err
	}
	return depfile.Rewrite(ctx, desc.ExecRoot, desc.Depfiles)
}

// Command assembles the wrapper invocation for desc.
func Command(desc *command.Descriptor, inputs []string, relWorkDir string) []string {
	outputs := append(append([]string(nil), desc.Outputs...), desc.Depfiles...)

	cmd := make([]string, 0, 5+len(desc.WrapperArgs)+len(desc.Command))
	cmd = append(cmd,
		desc.Wrapper,
		"--labels="+Labels,
		"--inputs="+strings.Join(inputs, ","),
		"--output_files="+strings.Join(outputs, ","),
	)
	cmd = append(cmd, desc.WrapperArgs...)
	if n := len(desc.WrapperArgs); n == 0 || desc.WrapperArgs[n-1] != "--" {
		cmd = append(cmd, "--")
	}
	for _, arg := range desc.Command {
		cmd = append(cmd, rewrite.Absolute(arg, desc.ExecRoot, relWorkDir))
	}
	return cmd
}

func (d *Dispatcher) runLocally(ctx context.Context, argv []string) error {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = d.WorkDir
	c.Stdout = d.Stdout
	c.Stderr = d.Stderr
	return errors.WrapIf(c.Run(), "running %s", argv[0])
}

// failed reports a wrapper invocation that didn't succeed.
func (d *Dispatcher) failed(ctx context.Context, desc *command.Descriptor, argv []string, out []byte, err error) error {
	if _, exited := exitcode.Get(err); !exited {
		return errors.WrapIf(err, "starting %s", desc.Wrapper)
	}
	if _, werr := d.Stdout.Write(out); werr != nil {
		logging.Warningf(ctx, "replaying %s output: %s", desc.State, werr)
	}
	if desc.ExecStrategy == command.StrategyRemote {
		fmt.Fprintf(d.Stderr, "\nThe remote %s action failed. If it works locally, the grammar in rbe/command "+
			"may be missing one of its inputs or outputs. To reproduce without remote execution, run:\n\n"+
			"  %s=%s %s\n\n",
			desc.State, command.EnvExecStrategy, command.StrategyLocal, strings.Join(argv, " "))
	}
	return errors.WrapIf(err, "%s", desc.State)
}

// relWorkDir is WorkDir relative to execRoot, slash-separated, or "" if it
// is the execution root itself.
func (d *Dispatcher) relWorkDir(execRoot string) string {
	rel, err := filepath.Rel(execRoot, d.WorkDir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// localBinary prefixes "./" to the wrapped binary if it is a bare name, so
// it isn't looked up in PATH.
func localBinary(argv []string) []string {
	for i, arg := range argv {
		if arg != "--" {
			continue
		}
		if i+1 < len(argv) && !strings.ContainsRune(argv[i+1], '/') {
			argv = append([]string(nil), argv...)
			argv[i+1] = "./" + argv[i+1]
		}
		break
	}
	return argv
}
