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
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go.chromium.org/luci/common/system/environ"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/testfs"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"go.dart.dev/rbe/dart/packages"
	"go.dart.dev/rbe/rbe/dispatch"
)

const packageConfig = `{
  "configVersion": 2,
  "packages": [
    {"name": "foo", "rootUri": "../pkg/foo", "packageUri": "lib/"}
  ]
}`

func wrapped(root string) []string {
	return []string{
		"../../buildtools/reclient/rewrapper", "--exec_root=" + root, "--",
		"../../tools/sdks/dart-sdk/bin/dart", "compile", "js", "-o", "main.js", "../../web/main.dart",
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	ftt.Run("Inspect", t, func(t *ftt.Test) {
		ctx := environ.New(nil).SetInCtx(context.Background())
		root := t.TempDir()
		assert.Loosely(t, testfs.Build(root, map[string]string{
			packages.ManifestPath:  packageConfig,
			"pkg/foo/lib/foo.dart": "library foo;\n",
			"web/main.dart":        "import 'package:foo/foo.dart';\n",
		}), should.BeNil)
		workDir := filepath.Join(root, "out", "ReleaseX64")

		var out bytes.Buffer

		t.Run("parse", func(t *ftt.Test) {
			r := cmdParse().CommandRun().(*parseRun)
			assert.Loosely(t, r.Flags.Parse([]string{"-json", "-C", workDir}), should.BeNil)
			assert.Loosely(t, r.run(ctx, wrapped(root), &out), should.BeNil)

			var got descriptorJSON
			assert.Loosely(t, json.Unmarshal(out.Bytes(), &got), should.BeNil)
			assert.Loosely(t, got.State, should.Equal("dart2js"))
			assert.Loosely(t, got.ExecStrategy, should.Equal("remote"))
			assert.Loosely(t, got.Entries, should.Match([]string{"web/main.dart"}))
			assert.Loosely(t, got.Outputs, should.Match([]string{
				"out/ReleaseX64/main.js",
				"out/ReleaseX64/main.js.map",
			}))
		})

		t.Run("parse summary", func(t *ftt.Test) {
			r := cmdParse().CommandRun().(*parseRun)
			assert.Loosely(t, r.Flags.Parse([]string{"-C", workDir}), should.BeNil)
			assert.Loosely(t, r.run(ctx, wrapped(root), &out), should.BeNil)
			assert.Loosely(t, out.String(), should.HavePrefix("dart2js (tools/sdks/dart-sdk/bin/dart)"))
		})

		t.Run("parse without a command", func(t *ftt.Test) {
			r := cmdParse().CommandRun().(*parseRun)
			assert.Loosely(t, r.run(ctx, nil, &out), should.ErrLike("expected a wrapped command line"))
		})

		t.Run("inputs", func(t *ftt.Test) {
			r := cmdInputs().CommandRun().(*inputsRun)
			assert.Loosely(t, r.Flags.Parse([]string{"-C", workDir}), should.BeNil)
			assert.Loosely(t, r.run(ctx, wrapped(root), &out), should.BeNil)
			assert.Loosely(t, strings.Fields(out.String()), should.Match([]string{
				".dart_tool/package_config.json",
				"out/ReleaseX64/" + dispatch.StampFile,
				"pkg/foo/lib",
				"tools/sdks/dart-sdk",
				"web/main.dart",
			}))
		})

		t.Run("inputs without exec root", func(t *ftt.Test) {
			r := cmdInputs().CommandRun().(*inputsRun)
			assert.Loosely(t, r.Flags.Parse([]string{"-C", workDir}), should.BeNil)
			argv := []string{"../../buildtools/reclient/rewrapper", "--", "../../tools/sdks/dart-sdk/bin/dart", "compile", "js", "-o", "main.js", "../../web/main.dart"}
			assert.Loosely(t, r.run(ctx, argv, &out), should.ErrLike(dispatch.ErrMissingExecRoot))
		})

		t.Run("rewrite", func(t *ftt.Test) {
			r := cmdRewrite().CommandRun().(*rewriteRun)
			assert.Loosely(t, r.Flags.Parse([]string{"-exec-root", "/b/s/w/ir/sdk/", "-work-dir", "out"}), should.BeNil)
			assert.Loosely(t, r.run(ctx, []string{"/b/s/w/ir/sdk/out/x.js", "-v"}, &out), should.BeNil)
			assert.Loosely(t, out.String(), should.Equal("./x.js\n-v\n"))
		})

		t.Run("rewrite in the -C directory", func(t *ftt.Test) {
			r := cmdRewrite().CommandRun().(*rewriteRun)
			assert.Loosely(t, r.Flags.Parse([]string{"-log-level", "debug", "-exec-root", root, "-C", workDir}), should.BeNil)
			arg := filepath.Join(workDir, "gen", "x.js")
			assert.Loosely(t, r.run(ctx, []string{arg}, &out), should.BeNil)
			assert.Loosely(t, out.String(), should.Equal("./gen/x.js\n"))
		})
	})
}
