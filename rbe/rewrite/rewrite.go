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

// Package rewrite makes wrapped command lines independent of where the
// checkout lives on disk.
//
// The substitutions are textual. They assume the command runs two levels
// below the execution root, e.g. in out/ReleaseX64.
package rewrite

import (
	"strings"
)

// Up is what the execution root is replaced with.
const Up = "../../"

// Absolute rewrites occurrences of execRoot in arg.
//
// execRoot is the absolute execution root with a trailing separator and
// workDir is the working directory relative to it, slash-separated. The
// steps run in this order:
//
//  1. "file:///<root>" and "file://<root>" become "../../".
//  2. Any remaining "<root>" becomes "../../".
//  3. "../../<workDir>" at the end of arg becomes ".". Elsewhere
//     "../../<workDir>/" is dropped after a "/" and becomes "./" otherwise.
func Absolute(arg, execRoot, workDir string) string {
	if execRoot == "" {
		return arg
	}
	arg = strings.ReplaceAll(arg, "file:///"+execRoot, Up)
	arg = strings.ReplaceAll(arg, "file://"+execRoot, Up)
	arg = strings.ReplaceAll(arg, execRoot, Up)

	workDir = strings.Trim(workDir, "/")
	if workDir == "" {
		return arg
	}
	cwd := Up + workDir
	if rest, ok := strings.CutSuffix(arg, cwd); ok {
		arg = rest + "."
	}
	return collapse(arg, cwd+"/")
}

// collapse removes each occurrence of prefix, leaving "./" behind unless it
// followed a path separator.
func collapse(arg, prefix string) string {
	var b strings.Builder
	for {
		i := strings.Index(arg, prefix)
		if i < 0 {
			b.WriteString(arg)
			return b.String()
		}
		b.WriteString(arg[:i])
		if i == 0 || arg[i-1] != '/' {
			b.WriteString("./")
		}
		arg = arg[i+len(prefix):]
	}
}
