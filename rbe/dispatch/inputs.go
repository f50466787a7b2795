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

package dispatch

import (
	"context"
	"path"
	"strings"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/logging"

	"go.dart.dev/rbe/dart/deps"
	"go.dart.dev/rbe/dart/imports"
	"go.dart.dev/rbe/dart/packages"
	"go.dart.dev/rbe/rbe/command"
)

// StampFile is added as an input, relative to the working directory, when no
// other input lives there.
const StampFile = "build.ninja.stamp"

// Inputs lists the files the remote action needs, sorted.
//
// relWorkDir is the working directory relative to the execution root.
func (d *Dispatcher) Inputs(ctx context.Context, desc *command.Descriptor, relWorkDir string) ([]string, error) {
	m, err := packages.Load(desc.ExecRoot)
	if err != nil {
		return nil, err
	}
	modules, err := deps.FindInputs(ctx, d.scanner(desc.ExecRoot, m), desc.Entries)
	if err != nil {
		return nil, err
	}

	inputs := stringset.New(modules.Len() + desc.Extras.Len() + 2)
	for _, uri := range modules.ToSortedSlice() {
		if strings.HasPrefix(uri, imports.BuiltinScheme) {
			continue
		}
		rel, err := m.Resolve(uri, true)
		if err != nil {
			return nil, err
		}
		inputs.Add(rel)
	}
	inputs.Add(packages.ManifestPath)
	inputs.AddAll(desc.Extras.ToSlice())
	if desc.Program != "" {
		inputs.Add(toolchain(desc.Program))
	}

	if relWorkDir != "" && relWorkDir != "." {
		prefix := relWorkDir + "/"
		under := false
		inputs.Iter(func(in string) bool {
			under = strings.HasPrefix(in, prefix)
			return !under
		})
		if !under {
			stamp := path.Join(relWorkDir, StampFile)
			logging.Infof(ctx, "no input under %s, adding %s", relWorkDir, stamp)
			inputs.Add(stamp)
		}
	}

	sorted := inputs.ToSortedSlice()
	logging.Debugf(ctx, "%d inputs", len(sorted))
	return sorted, nil
}

// toolchain returns the input that provides program. A dart binary inside an
// SDK ("<sdk>/bin/dart") needs the whole SDK.
func toolchain(program string) string {
	bin := path.Dir(program)
	if path.Base(program) == "dart" && path.Base(bin) == "bin" && path.Dir(bin) != "." {
		return path.Dir(bin)
	}
	return program
}

func (d *Dispatcher) scanner(execRoot string, m *packages.Manifest) imports.Scanner {
	if d.NewScanner != nil {
		return d.NewScanner(execRoot, m)
	}
	return &imports.LineScanner{ExecRoot: execRoot, Manifest: m}
}
