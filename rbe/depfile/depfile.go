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

// Package depfile patches dependency files written by remote actions.
package depfile

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

// RemotePrefix is the execution root inside the remote sandbox. Remote
// tools leak it into the absolute paths they write to depfiles.
const RemotePrefix = "/b/f/w"

// Rewrite replaces RemotePrefix with execRoot in each depfile, in place.
//
// depfiles are relative to execRoot. Missing depfiles are skipped since not
// every tool writes one.
func Rewrite(ctx context.Context, execRoot string, depfiles []string) error {
	root := strings.TrimSuffix(execRoot, string(filepath.Separator))
	for _, d := range depfiles {
		p := filepath.Join(execRoot, filepath.FromSlash(d))
		switch patched, err := rewriteFile(p, root); {
		case errors.Is(err, fs.ErrNotExist):
			logging.Debugf(ctx, "no depfile at %s", p)
		case err != nil:
			return errors.WrapIf(err, "rewriting depfile %s", d)
		case patched:
			logging.Debugf(ctx, "rewrote depfile %s", p)
		}
	}
	return nil
}

func rewriteFile(path, root string) (bool, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !bytes.Contains(blob, []byte(RemotePrefix)) {
		return false, nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	blob = bytes.ReplaceAll(blob, []byte(RemotePrefix), []byte(root))
	return true, os.WriteFile(path, blob, fi.Mode().Perm())
}
