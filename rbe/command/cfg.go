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
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"
)

// loadCfg reads a wrapper --cfg file of key=value lines. Only exec_root and
// exec_strategy matter here; the wrapper itself interprets the rest.
func loadCfg(p *parser, f *frame, v string) error {
	if !filepath.IsAbs(v) {
		v = filepath.Join(p.workDir, v)
	}
	file, err := os.Open(v)
	if err != nil {
		return errors.WrapIf(err, "reading --cfg")
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return errors.Fmt("%s:%d: expected key=value, got %q", v, lineno, line)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "exec_root":
			p.desc.ExecRoot = NormalizeRoot(value, p.workDir)
		case "exec_strategy":
			if !p.explicitStrategy {
				p.desc.ExecStrategy = value
			}
		}
	}
	return errors.WrapIf(sc.Err(), "reading %s", v)
}
