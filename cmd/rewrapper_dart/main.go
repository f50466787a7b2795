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

// Command rewrapper_dart runs a Dart toolchain step through rewrapper.
//
// Usage:
//
//	rewrapper_dart <path/to/rewrapper> [rewrapper flags] -- <dart command>
//
// It works out which files the step reads and writes, passes them to
// rewrapper as --inputs and --output_files, and makes the command line
// independent of the checkout location. Set RBE_exec_strategy=local to run
// the step locally, RBE_DART_DRY_RUN=1 to only print the rewrapper command
// and RBE_DART_LOG_LEVEL=debug to see how the command was understood.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.chromium.org/luci/common/logging/gologger"
	"go.chromium.org/luci/common/system/environ"
	"go.chromium.org/luci/common/system/exitcode"

	"go.dart.dev/rbe/rbe/dispatch"
	"go.dart.dev/rbe/rbe/rbeconfig"
)

func run(ctx context.Context, wd string, argv []string, stdout, stderr io.Writer) error {
	cfg, err := rbeconfig.FromCtx(ctx)
	if err != nil {
		return err
	}
	ctx = cfg.Use(gologger.StdConfig.Use(ctx))

	d := &dispatch.Dispatcher{
		WorkDir: wd,
		Stdout:  stdout,
		Stderr:  stderr,
		DryRun:  cfg.DryRun,
	}
	return d.Main(ctx, argv)
}

// exitCode is the wrapped command's exit code if it ran and failed, 1 for
// any other error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if rc, ok := exitcode.Get(err); ok && rc != 0 {
		return rc
	}
	return 1
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <path/to/rewrapper> [rewrapper flags] -- <command>\n", os.Args[0])
		os.Exit(1)
	}

	ctx := environ.System().SetInCtx(context.Background())
	wd, err := os.Getwd()
	if err == nil {
		err = run(ctx, wd, os.Args[1:], os.Stdout, os.Stderr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
