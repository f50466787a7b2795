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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/exec/execmock"
	"go.chromium.org/luci/common/system/environ"
	"go.chromium.org/luci/common/system/exitcode"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/testfs"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"go.dart.dev/rbe/dart/packages"
	"go.dart.dev/rbe/rbe/command"
)

func TestMain(m *testing.M) {
	execmock.Intercept(execmock.Strict)
	os.Exit(m.Run())
}

// remoteAction is what the fake wrapper does when invoked.
type remoteAction struct {
	// Writes maps absolute paths to the contents written there.
	Writes map[string]string
	Output string
}

var fakeWrapper = execmock.Register(func(in remoteAction) (execmock.None, int, error) {
	for p, data := range in.Writes {
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			return execmock.None{}, 1, err
		}
	}
	os.Stdout.WriteString(in.Output)
	return execmock.None{}, 0, nil
})

const packageConfig = `{
  "configVersion": 2,
  "packages": [
    {"name": "foo", "rootUri": "../pkg/foo", "packageUri": "lib/"},
    {"name": "app", "rootUri": "../out/ReleaseX64/gen/app", "packageUri": "lib/"}
  ]
}`

// checkout lays out a small SDK checkout and returns its root.
func checkout(t *ftt.Test) string {
	root := t.TempDir()
	assert.Loosely(t, testfs.Build(root, map[string]string{
		packages.ManifestPath:                 packageConfig,
		"pkg/foo/lib/foo.dart":                "import 'src/bar.dart';\n",
		"pkg/foo/lib/src/bar.dart":            "import 'dart:io';\n",
		"web/main.dart":                       "import 'package:foo/foo.dart';\nimport 'util.dart';\n",
		"web/util.dart":                       "library util;\n",
		"web/broken.dart":                     "import 'package:nope/nope.dart';\n",
		"out/ReleaseX64/gen/app/lib/app.dart": "export 'package:foo/foo.dart';\n",
	}), should.BeNil)
	return root
}

func dart2js(root, out string, entry string) []string {
	return []string{
		"../../buildtools/reclient/rewrapper", "--exec_root=" + root, "--",
		"../../tools/sdks/dart-sdk/bin/dart", "compile", "js", "-o", out, entry,
	}
}

func TestMainDispatch(t *testing.T) {
	t.Parallel()

	ftt.Run("Dispatcher", t, func(t *ftt.Test) {
		ctx := execmock.Init(context.Background())
		ctx = environ.New(nil).SetInCtx(ctx)

		var stdout, stderr bytes.Buffer
		newDispatcher := func(root string) *Dispatcher {
			return &Dispatcher{
				WorkDir: filepath.Join(root, "out", "ReleaseX64"),
				Stdout:  &stdout,
				Stderr:  &stderr,
			}
		}

		t.Run("runs remotely", func(t *ftt.Test) {
			root := checkout(t)
			uses := execmock.Simple.Mock(ctx, execmock.SimpleInput{Stdout: "compiled\n"})

			err := newDispatcher(root).Main(ctx, dart2js(root, "main.js", "../../web/main.dart"))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, stdout.String(), should.Equal("compiled\n"))

			calls := uses.Snapshot()
			assert.Loosely(t, calls, should.HaveLength(1))
			assert.Loosely(t, calls[0].Args, should.Match([]string{
				"../../buildtools/reclient/rewrapper",
				"--labels=type=tool",
				"--inputs=" + strings.Join([]string{
					".dart_tool/package_config.json",
					"out/ReleaseX64/build.ninja.stamp",
					"pkg/foo/lib",
					"tools/sdks/dart-sdk",
					"web/main.dart",
					"web/util.dart",
				}, ","),
				"--output_files=" + strings.Join([]string{
					"out/ReleaseX64/main.js",
					"out/ReleaseX64/main.js.map",
					"out/ReleaseX64/main.js.d",
					"out/ReleaseX64/main.js.map.d",
				}, ","),
				"--exec_root=" + root,
				"--",
				"../../tools/sdks/dart-sdk/bin/dart", "compile", "js", "-o", "main.js", "../../web/main.dart",
			}))
		})

		t.Run("no stamp with inputs in the working directory", func(t *ftt.Test) {
			root := checkout(t)
			uses := execmock.Simple.Mock(ctx)

			err := newDispatcher(root).Main(ctx, dart2js(root, "app.js", "package:app/app.dart"))
			assert.Loosely(t, err, should.BeNil)
			calls := uses.Snapshot()
			assert.Loosely(t, calls, should.HaveLength(1))
			assert.Loosely(t, calls[0].Args[2], should.Equal("--inputs="+strings.Join([]string{
				".dart_tool/package_config.json",
				"out/ReleaseX64/gen/app/lib",
				"pkg/foo/lib",
				"tools/sdks/dart-sdk",
			}, ",")))
		})

		t.Run("rewrites absolute paths", func(t *ftt.Test) {
			root := checkout(t)
			uses := execmock.Simple.Mock(ctx)

			argv := dart2js(root, filepath.Join(root, "out", "ReleaseX64", "gen", "main.js"), filepath.Join(root, "web", "main.dart"))
			err := newDispatcher(root).Main(ctx, argv)
			assert.Loosely(t, err, should.BeNil)
			args := uses.Snapshot()[0].Args
			assert.Loosely(t, args[len(args)-3:], should.Match([]string{"-o", "./gen/main.js", "../../web/main.dart"}))
		})

		t.Run("patches depfiles", func(t *ftt.Test) {
			root := checkout(t)
			d := newDispatcher(root)
			fakeWrapper.Mock(ctx, remoteAction{
				Writes: map[string]string{
					filepath.Join(d.WorkDir, "snap.d"): "snap: /b/f/w/pkg/foo/lib/foo.dart\n",
				},
				Output: "done\n",
			})

			err := d.Main(ctx, []string{
				"rewrapper", "--exec_root=" + root, "--",
				"gen_snapshot", "-o", "snap", "--depfile=snap.d", "app.dill",
			})
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, stdout.String(), should.Equal("done\n"))

			blob, err := os.ReadFile(filepath.Join(d.WorkDir, "snap.d"))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, string(blob), should.Equal("snap: "+root+"/pkg/foo/lib/foo.dart\n"))
		})

		t.Run("remote failure", func(t *ftt.Test) {
			root := checkout(t)
			execmock.Simple.Mock(ctx, execmock.SimpleInput{Stdout: "Error: boom\n", ExitCode: 3})

			err := newDispatcher(root).Main(ctx, dart2js(root, "main.js", "../../web/main.dart"))
			code, exited := exitcode.Get(err)
			assert.Loosely(t, exited, should.BeTrue)
			assert.Loosely(t, code, should.Equal(3))
			assert.Loosely(t, stdout.String(), should.Equal("Error: boom\n"))
			assert.Loosely(t, stderr.String(), should.ContainSubstring("rbe/command"))
			assert.Loosely(t, stderr.String(), should.ContainSubstring(
				"RBE_exec_strategy=local ../../buildtools/reclient/rewrapper --exec_root="+root))
		})

		t.Run("local failure has no hint", func(t *ftt.Test) {
			root := checkout(t)
			execmock.Simple.Mock(ctx, execmock.SimpleInput{Stdout: "Error: boom\n", ExitCode: 1})

			localCtx := environ.New([]string{command.EnvExecStrategy + "=local"}).SetInCtx(ctx)
			err := newDispatcher(root).Main(localCtx, dart2js(root, "main.js", "../../web/main.dart"))
			assert.Loosely(t, err, should.NotBeNil)
			assert.Loosely(t, stdout.String(), should.Equal("Error: boom\n"))
			assert.Loosely(t, stderr.String(), should.BeEmpty)
		})

		t.Run("wrapper fails to start", func(t *ftt.Test) {
			root := checkout(t)
			execmock.StartError.Mock(ctx, errors.New("no such file"))

			err := newDispatcher(root).Main(ctx, dart2js(root, "main.js", "../../web/main.dart"))
			_, exited := exitcode.Get(err)
			assert.Loosely(t, exited, should.BeFalse)
			assert.Loosely(t, err, should.ErrLike("no such file"))
			assert.Loosely(t, err, should.ErrLike("starting ../../buildtools/reclient/rewrapper"))
			assert.Loosely(t, stderr.String(), should.BeEmpty)
		})

		t.Run("version stamping runs locally", func(t *ftt.Test) {
			root := checkout(t)
			uses := execmock.Simple.Mock(ctx)

			err := newDispatcher(root).Main(ctx, []string{
				"rewrapper", "--exec_root=" + root, "--",
				"dart", "../../tools/make_version.dart", "--output=gen/version.cc",
			})
			assert.Loosely(t, err, should.BeNil)
			calls := uses.Snapshot()
			assert.Loosely(t, calls, should.HaveLength(1))
			assert.Loosely(t, calls[0].Args, should.Match([]string{
				"./dart", "../../tools/make_version.dart", "--output=gen/version.cc",
			}))
		})

		t.Run("dry run", func(t *ftt.Test) {
			root := checkout(t)
			d := newDispatcher(root)
			d.DryRun = true

			err := d.Main(ctx, dart2js(root, "main.js", "../../web/main.dart"))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, stdout.String(), should.HavePrefix("../../buildtools/reclient/rewrapper --labels=type=tool --inputs="))
		})

		t.Run("dry run of a local-only command", func(t *ftt.Test) {
			root := checkout(t)
			uses := execmock.Simple.Mock(ctx)
			d := newDispatcher(root)
			d.DryRun = true

			err := d.Main(ctx, []string{
				"rewrapper", "--exec_root=" + root, "--",
				"dart", "../../tools/make_version.dart", "--output=gen/version.cc",
			})
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, uses.Snapshot(), should.HaveLength(0))
			assert.Loosely(t, stdout.String(), should.Equal(
				"./dart ../../tools/make_version.dart --output=gen/version.cc\n"))
		})

		t.Run("missing exec root", func(t *ftt.Test) {
			err := (&Dispatcher{WorkDir: "/w"}).Main(ctx, []string{"rewrapper", "--labels=x"})
			assert.Loosely(t, err, should.ErrLike(ErrMissingExecRoot))
		})

		t.Run("no outputs", func(t *ftt.Test) {
			root := checkout(t)
			err := newDispatcher(root).Main(ctx, []string{
				"rewrapper", "--exec_root=" + root, "--",
				"dart", "../../pkg/analyzer_cli/bin/analyzer.dart", "../../web/main.dart",
			})
			assert.Loosely(t, err, should.ErrLike(ErrNoOutputs))
		})

		t.Run("unknown package", func(t *ftt.Test) {
			root := checkout(t)
			err := newDispatcher(root).Main(ctx, dart2js(root, "main.js", "../../web/broken.dart"))
			assert.Loosely(t, err, should.ErrLike(packages.ErrUnknownPackage))
		})

		t.Run("unsupported argument", func(t *ftt.Test) {
			root := checkout(t)
			err := newDispatcher(root).Main(ctx, append(dart2js(root, "main.js", "../../web/main.dart"), "--frobnicate"))
			var uae *command.UnsupportedArgumentError
			assert.Loosely(t, errors.As(err, &uae), should.BeTrue)
			assert.Loosely(t, uae.State, should.Equal("dart2js"))
		})
	})
}

func TestToolchain(t *testing.T) {
	t.Parallel()

	ftt.Run("toolchain", t, func(t *ftt.Test) {
		assert.Loosely(t, toolchain("tools/sdks/dart-sdk/bin/dart"), should.Equal("tools/sdks/dart-sdk"))
		assert.Loosely(t, toolchain("out/ReleaseX64/dart"), should.Equal("out/ReleaseX64/dart"))
		assert.Loosely(t, toolchain("out/ReleaseX64/gen_snapshot"), should.Equal("out/ReleaseX64/gen_snapshot"))
		assert.Loosely(t, toolchain("bin/dart"), should.Equal("bin/dart"))
	})
}
