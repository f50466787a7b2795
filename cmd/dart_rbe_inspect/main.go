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

// Command dart_rbe_inspect shows how rewrapper_dart understands a command
// without running it.
package main

import (
	"context"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/logging/gologger"

	"go.dart.dev/rbe/rbe/command"
	"go.dart.dev/rbe/rbe/rbeconfig"
)

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "dart_rbe_inspect",
		Title: "Inspects Dart commands wrapped for remote execution.",
		Context: func(ctx context.Context) context.Context {
			return gologger.StdConfig.Use(ctx)
		},
		Commands: []*subcommands.Command{
			cmdParse(),
			cmdInputs(),
			cmdRewrite(),
			subcommands.CmdHelp,
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			command.EnvExecStrategy: {
				ShortDesc: "Overrides the wrapper's execution strategy unless it is set explicitly.",
			},
			rbeconfig.EnvLogLevel: {
				ShortDesc: "Default for -log-level.",
			},
		},
	}
}

func main() {
	os.Exit(subcommands.Run(getApplication(), nil))
}
