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
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"go.dart.dev/rbe/rbe/command"
	"go.dart.dev/rbe/rbe/rbeconfig"
)

type commandBase struct {
	subcommands.CommandRunBase

	logConfig logging.Config
	workDir   string
}

func (c *commandBase) registerFlags() {
	c.logConfig.Level = rbeconfig.DefaultLogLevel
	c.logConfig.AddFlags(&c.Flags)
	c.Flags.StringVar(&c.workDir, "C", "", "Directory the build runs the command in. Defaults to the current directory.")
}

// ModifyContext implements cli.ContextModificator.
func (c *commandBase) ModifyContext(ctx context.Context) context.Context {
	if cfg, err := rbeconfig.FromCtx(ctx); err == nil && !c.flagSet("log-level") {
		c.logConfig.Level = cfg.LogLevel
	}
	return c.logConfig.Set(ctx)
}

func (c *commandBase) flagSet(name string) (set bool) {
	c.Flags.Visit(func(f *flag.Flag) {
		set = set || f.Name == name
	})
	return
}

// absWorkDir is -C made absolute.
func (c *commandBase) absWorkDir() (string, error) {
	if c.workDir == "" {
		return os.Getwd()
	}
	return filepath.Abs(c.workDir)
}

// parse parses a wrapped command line given as positional arguments.
func (c *commandBase) parse(ctx context.Context, args []string) (*command.Descriptor, string, error) {
	if len(args) == 0 {
		return nil, "", errors.New("expected a wrapped command line")
	}
	wd, err := c.absWorkDir()
	if err != nil {
		return nil, "", err
	}
	desc, err := command.Parse(ctx, args, wd)
	if err != nil {
		return nil, "", err
	}
	return desc, wd, nil
}

func (c *commandBase) done(a subcommands.Application, err error) int {
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
		return 1
	}
	return 0
}
