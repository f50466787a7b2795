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

package command

import (
	"fmt"
	"strings"

	"go.chromium.org/luci/common/data/stringset"
)

// Execution strategies understood by the remote wrapper.
const (
	StrategyLocal  = "local"
	StrategyRemote = "remote"
)

// Descriptor is what Parse learns about a wrapped command.
//
// All paths are slash-separated and relative to ExecRoot, except for
// "package:" URIs in Entries.
type Descriptor struct {
	// ExecRoot is the absolute execution root, with a trailing separator.
	ExecRoot string
	// ExecStrategy is the wrapper's execution strategy after the
	// RBE_exec_strategy override was applied.
	ExecStrategy string

	// Wrapper is the remote wrapper binary as spelled on the command line.
	Wrapper string
	// WrapperArgs are the wrapper's own arguments, "--" included if present.
	WrapperArgs []string
	// Command is the wrapped command line, starting with the toolchain binary.
	Command []string
	// Program is the toolchain binary.
	Program string
	// State is the grammar state parsing ended in.
	State string

	// Entries are the modules the wrapped tool starts compiling from.
	Entries stringset.Set
	// Extras are non-source inputs named by flags.
	Extras stringset.Set
	// Outputs are the files the wrapped tool writes, in command line order.
	Outputs []string
	// Depfiles are the dependency files the wrapped tool writes.
	Depfiles []string

	// NoRemote is set for commands that always run locally.
	NoRemote bool
}

func newDescriptor() *Descriptor {
	return &Descriptor{
		ExecStrategy: StrategyRemote,
		Entries:      stringset.New(0),
		Extras:       stringset.New(0),
	}
}

func (d *Descriptor) addOutput(p string) {
	for _, o := range d.Outputs {
		if o == p {
			return
		}
	}
	d.Outputs = append(d.Outputs, p)
}

func (d *Descriptor) addDepfile(p string) {
	for _, o := range d.Depfiles {
		if o == p {
			return
		}
	}
	d.Depfiles = append(d.Depfiles, p)
}

// String summarizes d for logs.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s) entries=[%s] extras=[%s] outputs=[%s] depfiles=[%s] no_remote=%v",
		d.State, d.Program,
		strings.Join(d.Entries.ToSortedSlice(), " "),
		strings.Join(d.Extras.ToSortedSlice(), " "),
		strings.Join(d.Outputs, " "),
		strings.Join(d.Depfiles, " "),
		d.NoRemote)
}
