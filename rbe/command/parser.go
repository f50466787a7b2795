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

// Package command classifies a remote wrapper invocation of the Dart
// toolchain and extracts the files it reads and writes.
//
// Parsing is a recursive descent over argv. Every recognized program or
// sub-command is a state with its own allowlist of flags (see grammar.go);
// anything a state does not list is rejected with UnsupportedArgumentError.
package command

import (
	"context"
	"strings"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/logging"
)

// EnvExecStrategy overrides the wrapper's execution strategy unless
// --exec_strategy is given explicitly.
const EnvExecStrategy = "RBE_exec_strategy"

// Parse classifies argv, which starts with the remote wrapper binary.
//
// workDir is the directory the command runs in; relative paths on the
// command line are resolved against it. The environment is taken from ctx
// (see go.chromium.org/luci/common/system/environ).
func Parse(ctx context.Context, argv []string, workDir string) (*Descriptor, error) {
	p := &parser{
		ctx:     ctx,
		argv:    argv,
		optind:  -1,
		workDir: workDir,
		desc:    newDescriptor(),
	}
	if err := p.run(stateTop); err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "parsed: %s", p.desc)
	return p.desc, nil
}

// parser is the cursor shared by all states.
type parser struct {
	ctx     context.Context
	argv    []string
	optind  int
	workDir string
	desc    *Descriptor

	wrapperIdx       int
	explicitStrategy bool
}

// frame is the state-local part of a single grammar production.
type frame struct {
	state string
	// seen holds switch and option names encountered in this state.
	seen stringset.Set
	// outputs are the outputs added by this state.
	outputs []string
	// slot counts positional arguments consumed by this state.
	slot int
}

func (p *parser) hasNext() bool {
	return p.optind+1 < len(p.argv)
}

func (p *parser) next() string {
	p.optind++
	return p.argv[p.optind]
}

// run parses the rest of argv in the named state. A transition to another
// state hands the remaining arguments over and never returns here.
func (p *parser) run(name string) error {
	g := grammars[name]
	if g == nil {
		panic("command: no grammar for state " + name)
	}
	logging.Debugf(p.ctx, "state %s at argument %d", name, p.optind+1)
	p.desc.State = name
	if g.noRemote {
		p.desc.NoRemote = true
	}
	f := &frame{state: name, seen: stringset.New(0)}
	for p.hasNext() {
		next, err := p.step(g, f, p.next())
		if err != nil {
			return err
		}
		if next != "" {
			return p.run(next)
		}
	}
	if g.finish != nil {
		return g.finish(p, f)
	}
	return nil
}

// step consumes one argument and returns the state to continue in, if it
// changes.
func (p *parser) step(g *grammar, f *frame, arg string) (string, error) {
	if fn, ok := g.switches[arg]; ok {
		f.seen.Add(arg)
		if fn == nil {
			return "", nil
		}
		return "", fn(p, f)
	}
	if handled, err := p.option(g, f, arg); handled || err != nil {
		return "", err
	}
	if strings.HasPrefix(arg, "-") && arg != "-" {
		if g.passUnknownFlags {
			logging.Debugf(p.ctx, "%s: passing %q through", f.state, arg)
			return "", nil
		}
		return "", p.unsupported(f, arg)
	}
	if t, ok := g.commands[arg]; ok {
		return p.enter(f, t, arg)
	}
	for _, t := range g.programs {
		if hasPathSuffix(arg, t.suffix) {
			return p.enter(f, t.transition, arg)
		}
	}
	if g.positional != nil {
		f.slot++
		return "", g.positional(p, f, arg)
	}
	return "", p.unsupported(f, arg)
}

// option recognizes "--name value", "--name=value" and, for single-dash
// names, "-nvalue".
func (p *parser) option(g *grammar, f *frame, arg string) (bool, error) {
	name, value := arg, ""
	fn, ok := g.options[arg]
	switch {
	case ok:
		if !p.hasNext() {
			return true, p.unsupported(f, arg)
		}
		value = p.next()
	case strings.HasPrefix(arg, "--"):
		var found bool
		if name, value, found = strings.Cut(arg, "="); !found {
			return false, nil
		}
		if fn, ok = g.options[name]; !ok {
			return false, nil
		}
	case len(arg) > 2 && arg[0] == '-':
		name, value = arg[:2], arg[2:]
		if fn, ok = g.options[name]; !ok {
			return false, nil
		}
	default:
		return false, nil
	}
	f.seen.Add(name)
	if fn == nil {
		return true, nil
	}
	return true, fn(p, f, value)
}

func (p *parser) enter(f *frame, t transition, arg string) (string, error) {
	if t.enter != nil {
		if err := t.enter(p, f, arg); err != nil {
			return "", err
		}
	}
	return t.next, nil
}

func (p *parser) unsupported(f *frame, arg string) error {
	return &UnsupportedArgumentError{State: f.state, Arg: arg}
}

func (p *parser) rebase(path string) (string, error) {
	return Rebase(path, p.desc.ExecRoot, p.workDir)
}

// hasPathSuffix is true if path is suffix or ends with "/"+suffix.
func hasPathSuffix(path, suffix string) bool {
	return path == suffix || strings.HasSuffix(path, "/"+suffix)
}
