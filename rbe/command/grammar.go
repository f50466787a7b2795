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
	"path"
	"sort"
	"strings"

	"go.chromium.org/luci/common/system/environ"
)

type switchFunc func(p *parser, f *frame) error
type valueFunc func(p *parser, f *frame, value string) error

// grammar is the allowlist of a single state.
type grammar struct {
	// switches are flags without a value. A nil handler accepts the flag and
	// does nothing else.
	switches map[string]switchFunc
	// options are flags with a value. A nil handler ignores the value.
	options map[string]valueFunc
	// commands are positional keywords that continue in another state.
	commands map[string]transition
	// programs are positional path suffixes that continue in another state.
	programs []suffixTransition
	// positional handles any other non-flag argument; nil rejects it.
	positional valueFunc
	// finish runs if argv ends while in this state.
	finish switchFunc

	// passUnknownFlags ignores flags the tables don't list. Only the wrapper's
	// own options are treated this way.
	passUnknownFlags bool
	// noRemote marks commands that always run locally.
	noRemote bool
}

type transition struct {
	next string
	// enter, if set, handles the argument that triggered the transition.
	enter valueFunc
}

type suffixTransition struct {
	suffix string
	transition
}

// State names. These show up in UnsupportedArgumentError.
const (
	stateTop                     = "rewrapper_dart"
	stateRewrapper               = "rewrapper"
	stateDart                    = "dart"
	stateCompile                 = "compile"
	stateDart2JS                 = "dart2js"
	stateDartDevC                = "dartdevc"
	stateDartAnalyzer            = "dartanalyzer"
	stateAnalysisServer          = "analysis_server"
	stateCompilePlatform         = "compile_platform"
	stateCreateSnapshotEntry     = "create_snapshot_entry"
	stateKernelWorker            = "kernel_worker"
	stateGenKernel               = "gen_kernel"
	stateBootstrapGenKernel      = "bootstrap_gen_kernel"
	stateFrontendServer          = "frontend_server"
	stateGenerateDTDSnapshot     = "generate_dtd_snapshot"
	stateGenerateDDSSnapshot     = "generate_dds_snapshot"
	stateGenerateDartdevSnapshot = "generate_dartdev_snapshot"
	stateKernelServiceSnapshot   = "kernel_service_snapshot"
	stateGenSnapshot             = "gen_snapshot"
	stateMakeVersion             = "make_version"
)

// grammars maps state names to their allowlists. Built by init.
var grammars map[string]*grammar

// States returns the names of all grammar states, sorted.
func States() []string {
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers shared by the tables.

func output(p *parser, f *frame, v string) error {
	rel, err := p.rebase(v)
	if err != nil {
		return err
	}
	p.desc.addOutput(rel)
	f.outputs = append(f.outputs, rel)
	return nil
}

func depfile(p *parser, f *frame, v string) error {
	rel, err := p.rebase(v)
	if err != nil {
		return err
	}
	p.desc.addDepfile(rel)
	return nil
}

func extra(p *parser, f *frame, v string) error {
	rel, err := p.rebase(v)
	if err != nil {
		return err
	}
	p.desc.Extras.Add(rel)
	return nil
}

func entry(p *parser, f *frame, v string) error {
	rel, err := p.rebase(v)
	if err != nil {
		return err
	}
	p.desc.Entries.Add(rel)
	return nil
}

// Handlers of the wrapper's own options.

func wrapper(p *parser, f *frame, v string) error {
	p.desc.Wrapper = v
	p.wrapperIdx = p.optind
	return nil
}

func execRoot(p *parser, f *frame, v string) error {
	p.desc.ExecRoot = NormalizeRoot(v, p.workDir)
	return nil
}

func execStrategy(p *parser, f *frame, v string) error {
	p.desc.ExecStrategy = v
	p.explicitStrategy = true
	return nil
}

func endOfWrapperFlags(p *parser, f *frame) error {
	if s := environ.FromCtx(p.ctx).Get(EnvExecStrategy); s != "" && !p.explicitStrategy {
		p.desc.ExecStrategy = s
	}
	return nil
}

// program records the toolchain binary that starts the wrapped command.
func program(p *parser, f *frame, v string) error {
	rel, err := p.rebase(v)
	if err != nil {
		return err
	}
	p.desc.Program = rel
	p.desc.WrapperArgs = p.argv[p.wrapperIdx+1 : p.optind]
	p.desc.Command = p.argv[p.optind:]
	return nil
}

// Finishers.

// sourceMaps adds the source map written next to every output unless one
// of the listed switches turned them off.
func sourceMaps(disabledBy ...string) switchFunc {
	return func(p *parser, f *frame) error {
		for _, sw := range disabledBy {
			if f.seen.Has(sw) {
				return nil
			}
		}
		for _, o := range f.outputs {
			p.desc.addOutput(o + ".map")
		}
		return nil
	}
}

func dart2jsOutputs(p *parser, f *frame) error {
	if f.seen.Has("--dump-info") {
		for _, o := range f.outputs {
			p.desc.addOutput(o + ".info.json")
		}
	}
	return sourceMaps("--no-source-maps")(p, f)
}

// compilePlatform handles the positional arguments of compile_platform.dart:
//
//	dart:core <libraries.json> <vm_outline.dill> <platform.dill> <outline.dill>
func compilePlatform(p *parser, f *frame, v string) error {
	switch f.slot {
	case 1:
		if !strings.HasPrefix(v, "dart:") {
			return p.unsupported(f, v)
		}
		return nil
	case 2:
		rel, err := rebaseSDK(v, p.desc.ExecRoot, p.workDir)
		if err != nil {
			return err
		}
		// The libraries specification lives next to the sources it lists.
		p.desc.Extras.Add(rel)
		p.desc.Extras.Add(path.Dir(rel))
		return nil
	case 3, 4, 5:
		return output(p, f, v)
	}
	return p.unsupported(f, v)
}

func noops(names ...string) map[string]switchFunc {
	m := make(map[string]switchFunc, len(names))
	for _, n := range names {
		m[n] = nil
	}
	return m
}

func withOptions(base map[string]valueFunc, more map[string]valueFunc) map[string]valueFunc {
	m := make(map[string]valueFunc, len(base)+len(more))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range more {
		m[k] = v
	}
	return m
}

func init() {
	trainingRun := &grammar{switches: noops("--help", "--train")}

	genKernel := func() *grammar {
		return &grammar{
			switches: noops(
				"--aot", "--no-aot",
				"--tfa", "--no-tfa",
				"--link-platform", "--no-link-platform",
				"--embed-sources", "--no-embed-sources",
				"--sound-null-safety", "--no-sound-null-safety",
				"--minimal-kernel",
				"--protobuf-tree-shaker-v2",
				"--drop-ast",
			),
			options: map[string]valueFunc{
				"--platform":          extra,
				"--packages":          extra,
				"--libraries-file":    extra,
				"-o":                  output,
				"--output":            output,
				"--depfile":           depfile,
				"--target":            nil,
				"-D":                  nil,
				"--filesystem-scheme": nil,
				"--filesystem-root":   nil,
				"--enable-experiment": nil,
			},
			positional: entry,
		}
	}

	toolchainFlags := map[string]valueFunc{
		"--packages":          extra,
		"--enable-experiment": nil,
		"-D":                  nil,
	}

	grammars = map[string]*grammar{
		stateTop: {
			programs: []suffixTransition{
				{"rewrapper", transition{next: stateRewrapper, enter: wrapper}},
			},
		},

		stateRewrapper: {
			switches: map[string]switchFunc{
				"--": endOfWrapperFlags,
			},
			options: map[string]valueFunc{
				"--cfg":           loadCfg,
				"--exec_root":     execRoot,
				"--exec_strategy": execStrategy,
			},
			programs: []suffixTransition{
				{"dart", transition{next: stateDart, enter: program}},
				{"gen_snapshot", transition{next: stateGenSnapshot, enter: program}},
				{"gen_snapshot_product", transition{next: stateGenSnapshot, enter: program}},
			},
			passUnknownFlags: true,
		},

		stateDart: {
			switches: noops(
				"--deterministic",
				"--sound-null-safety", "--no-sound-null-safety",
				"--enable-asserts",
				"--disable-dart-dev",
				"--suppress-analytics",
			),
			options: withOptions(toolchainFlags, map[string]valueFunc{
				"--dfe":                 extra,
				"--snapshot":            output,
				"--snapshot-depfile":    depfile,
				"--depfile":             depfile,
				"--snapshot-kind":       nil,
				"--snapshot_kind":       nil,
				"--save-debugging-info": output,
			}),
			commands: map[string]transition{
				"compile": {next: stateCompile},
			},
			programs: []suffixTransition{
				{"pkg/compiler/lib/src/dart2js.dart", transition{stateDart2JS, entry}},
				{"pkg/dev_compiler/bin/dartdevc.dart", transition{stateDartDevC, entry}},
				{"pkg/analyzer_cli/bin/analyzer.dart", transition{stateDartAnalyzer, entry}},
				{"pkg/analysis_server/bin/server.dart", transition{stateAnalysisServer, entry}},
				{"pkg/front_end/tool/_fasta/compile_platform.dart", transition{stateCompilePlatform, entry}},
				{"create_snapshot_entry.dart", transition{stateCreateSnapshotEntry, entry}},
				{"utils/bazel/kernel_worker.dart", transition{stateKernelWorker, entry}},
				{"pkg/vm/bin/gen_kernel.dart", transition{stateGenKernel, entry}},
				{"tools/make_version.dart", transition{stateMakeVersion, entry}},
				// Precompiled kernel programs.
				{"frontend_server.dart.dill", transition{stateFrontendServer, extra}},
				{"dtd.dart.dill", transition{stateGenerateDTDSnapshot, extra}},
				{"dds.dart.dill", transition{stateGenerateDDSSnapshot, extra}},
				{"dartdev.dart.dill", transition{stateGenerateDartdevSnapshot, extra}},
				{"bootstrap_gen_kernel.dill", transition{stateBootstrapGenKernel, extra}},
				{"kernel-service.dart.dill", transition{stateKernelServiceSnapshot, extra}},
			},
		},

		stateCompile: {
			commands: map[string]transition{
				"js": {next: stateDart2JS},
			},
		},

		stateDart2JS: {
			switches: noops(
				"--minify", "--no-minify",
				"--enable-asserts",
				"--no-source-maps",
				"--dump-info",
				"--canary",
				"--csp",
				"--omit-implicit-checks",
				"--omit-late-names",
				"--trust-primitives",
				"--lax-runtime-type-to-string",
				"--no-frequency-based-minification",
				"--benchmarking-production",
				"--sound-null-safety", "--no-sound-null-safety",
				"--suppress-warnings", "--suppress-hints",
			),
			options: withOptions(toolchainFlags, map[string]valueFunc{
				"-o":                  output,
				"--output":            output,
				"--out":               output,
				"--libraries-spec":    extra,
				"--platform-binaries": extra,
				"--invoker":           nil,
			}),
			positional: entry,
			finish:     dart2jsOutputs,
		},

		stateDartDevC: {
			switches: noops(
				"--sound-null-safety", "--no-sound-null-safety",
				"--canary",
				"--enable-asserts",
				"--no-source-map", "--inline-source-map",
				"--summarize", "--no-summarize",
			),
			options: withOptions(toolchainFlags, map[string]valueFunc{
				"-o":                       output,
				"--output":                 output,
				"--dart-sdk-summary":       extra,
				"--summary":                extra,
				"--libraries-file":         extra,
				"--multi-root":             extra,
				"--modules":                nil,
				"--module-name":            nil,
				"--multi-root-scheme":      nil,
				"--multi-root-output-path": nil,
			}),
			positional: entry,
			finish:     sourceMaps("--no-source-map", "--inline-source-map"),
		},

		stateDartAnalyzer: {
			switches: noops("--train-snapshot", "--fatal-warnings", "--fatal-infos", "--no-hints"),
			options: withOptions(toolchainFlags, map[string]valueFunc{
				"--dart-sdk": extra,
				"--options":  extra,
				"--format":   nil,
			}),
			positional: extra,
		},

		stateAnalysisServer: {
			options: map[string]valueFunc{
				"--sdk":         extra,
				"--train-using": extra,
			},
		},

		stateCompilePlatform: {
			switches: noops("--nnbd-strong", "--nnbd-weak", "--nnbd-agnostic", "--no-defines", "--exclude-source"),
			options: map[string]valueFunc{
				"-D":                   nil,
				"--target":             nil,
				"--enable-experiment":  nil,
				"--single-root-scheme": nil,
				"--single-root-base":   nil,
			},
			positional: compilePlatform,
		},

		stateCreateSnapshotEntry: {
			switches: noops("--no-dds"),
			options: map[string]valueFunc{
				"--output":   output,
				"--packages": extra,
			},
		},

		stateKernelWorker: {
			switches: noops(
				"--summary-only", "--no-summary-only",
				"--reuse-compiler-result",
				"--use-incremental-compiler",
				"--sound-null-safety", "--no-sound-null-safety",
				"--track-widget-creation",
				"--exclude-non-sources",
			),
			options: withOptions(toolchainFlags, map[string]valueFunc{
				"--dart-sdk-summary":  extra,
				"--input-summary":     extra,
				"--input-linked":      extra,
				"--packages-file":     extra,
				"--libraries-file":    extra,
				"--output":            output,
				"--used-inputs":       output,
				"--depfile":           depfile,
				"--source":            entry,
				"--target":            nil,
				"--multi-root":        nil,
				"--multi-root-scheme": nil,
			}),
		},

		stateGenKernel:          genKernel(),
		stateBootstrapGenKernel: genKernel(),

		stateFrontendServer: {
			switches: noops(
				"--aot", "--tfa",
				"--link-platform", "--no-link-platform",
				"--sound-null-safety", "--no-sound-null-safety",
			),
			options: withOptions(toolchainFlags, map[string]valueFunc{
				"--sdk-root":          extra,
				"--platform":          extra,
				"--output-dill":       output,
				"--depfile":           depfile,
				"--target":            nil,
				"--filesystem-scheme": nil,
				"--filesystem-root":   nil,
			}),
			positional: entry,
		},

		stateGenerateDTDSnapshot:     trainingRun,
		stateGenerateDDSSnapshot:     trainingRun,
		stateGenerateDartdevSnapshot: trainingRun,

		stateKernelServiceSnapshot: {
			switches:   noops("--train"),
			positional: extra,
		},

		stateGenSnapshot: {
			switches: noops(
				"--deterministic",
				"--strip",
				"--obfuscate",
				"--sound-null-safety", "--no-sound-null-safety",
				"--enable-asserts",
				"--dwarf-stack-traces",
			),
			options: map[string]valueFunc{
				"-o":                              output,
				"--vm_snapshot_data":              output,
				"--vm_snapshot_instructions":      output,
				"--isolate_snapshot_data":         output,
				"--isolate_snapshot_instructions": output,
				"--elf":                           output,
				"--assembly":                      output,
				"--save-debugging-info":           output,
				"--save-obfuscation-map":          output,
				"--loading_unit_manifest":         output,
				"--load_vm_snapshot_data":         extra,
				"--load_isolate_snapshot_data":    extra,
				"--depfile":                       depfile,
				"--snapshot_kind":                 nil,
			},
			positional: extra,
		},

		stateMakeVersion: {
			switches: noops("--no_git_hash", "-q"),
			options: map[string]valueFunc{
				"--output": output,
				"--input":  extra,
			},
			noRemote: true,
		},
	}
}
