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
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"

	"go.dart.dev/rbe/dart/packages"
)

const (
	kernelServiceScheme = "org-dartlang-kernel-service://"
	sdkScheme           = "org-dartlang-sdk://"
	fileScheme          = "file://"
)

// NormalizeRoot makes dir absolute against workDir and gives it a trailing
// separator, which is the form Descriptor.ExecRoot and Rebase expect.
func NormalizeRoot(dir, workDir string) string {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}
	dir = filepath.Clean(dir)
	if !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir += string(os.PathSeparator)
	}
	return dir
}

// Rebase turns a path or URI from the command line into a slash-separated
// path relative to execRoot.
//
// "package:" URIs are returned unchanged. Kernel service URIs are rooted at
// execRoot and "file://" URIs lose their scheme; the more specific prefix of
// each pair is checked first. Relative paths are resolved against workDir.
func Rebase(path, execRoot, workDir string) (string, error) {
	if strings.HasPrefix(path, packages.Scheme) {
		return path, nil
	}
	if execRoot == "" {
		return "", errors.Fmt("rebasing %s: %w", path, ErrMissingExecRoot)
	}
	switch {
	case strings.HasPrefix(path, kernelServiceScheme+"/"):
		path = filepath.Join(execRoot, path[len(kernelServiceScheme)+1:])
	case strings.HasPrefix(path, kernelServiceScheme):
		path = filepath.Join(execRoot, path[len(kernelServiceScheme):])
	case strings.HasPrefix(path, fileScheme+"/"):
		path = path[len(fileScheme):]
	case strings.HasPrefix(path, fileScheme):
		path = path[len(fileScheme):]
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	path = filepath.Clean(path)
	if !strings.HasPrefix(path, execRoot) {
		return "", errors.Fmt("%s: %w (exec_root %s)", path, ErrPathOutsideExecRoot, execRoot)
	}
	return filepath.ToSlash(path[len(execRoot):]), nil
}

// rebaseSDK resolves an "org-dartlang-sdk:///" URI against the execution
// root, which is where the SDK checkout lives.
func rebaseSDK(uri, execRoot, workDir string) (string, error) {
	if rest, ok := strings.CutPrefix(uri, sdkScheme); ok {
		uri = filepath.Join(execRoot, strings.TrimPrefix(rest, "/"))
	}
	return Rebase(uri, execRoot, workDir)
}
