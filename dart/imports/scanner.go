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

// Package imports lists the modules a Dart source file statically depends on.
//
// It does not parse Dart. It recognizes the directive lines at the top of a
// file (import, export and part) and stops at the first declaration, which is
// enough to compute remote execution inputs without starting a front end.
package imports

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/errors"

	"go.dart.dev/rbe/dart/packages"
)

// BuiltinScheme prefixes the URIs of SDK libraries. They are never scanned.
const BuiltinScheme = "dart:"

// ioGuard is the only configuration-specific import condition that is
// followed; the remote build always runs against dart:io.
var ioGuard = [2]string{"if", "(dart.library.io)"}

// ErrMalformedImport is returned when a directive has no URI on its line.
var ErrMalformedImport = errors.New("malformed import statement")

// Scanner lists the direct dependencies of a module.
type Scanner interface {
	// Scan returns the module URIs uri imports, exports or includes as a part.
	// Relative URIs are already resolved against uri.
	Scan(ctx context.Context, uri string) (stringset.Set, error)
}

// LineScanner is a Scanner that reads sources from disk line by line.
type LineScanner struct {
	// ExecRoot is the directory module paths are relative to.
	ExecRoot string
	// Manifest resolves "package:" URIs.
	Manifest *packages.Manifest
}

var _ Scanner = (*LineScanner)(nil)

// Scan implements Scanner.
func (s *LineScanner) Scan(ctx context.Context, uri string) (stringset.Set, error) {
	if strings.HasPrefix(uri, BuiltinScheme) {
		return stringset.New(0), nil
	}
	rel, err := s.Manifest.Resolve(uri, false)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.ExecRoot, filepath.FromSlash(rel)))
	if err != nil {
		return nil, errors.WrapIf(err, "scanning %s", uri)
	}
	defer f.Close()

	deps := stringset.New(0)
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, 1024*1024)
	for lineno := 1; sc.Scan(); lineno++ {
		uris, done, err := parseLine(sc.Text())
		if err != nil {
			return nil, errors.WrapIf(err, "%s:%d", uri, lineno)
		}
		for _, dep := range uris {
			if strings.HasPrefix(dep, BuiltinScheme) {
				continue
			}
			deps.Add(Join(uri, dep))
		}
		if done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapIf(err, "reading %s", uri)
	}
	return deps, nil
}

// parseLine returns the dependency URIs named on one line, exactly as they
// are spelled in the source. done is true once the directive section of the
// file is over.
func parseLine(line string) (uris []string, done bool, err error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, false, nil
	}
	switch first := tokens[0]; {
	case strings.HasPrefix(first, "//"),
		strings.HasPrefix(first, "/*"),
		strings.HasPrefix(first, "*"),
		strings.HasPrefix(first, "#!"),
		first == "library",
		first == "show":
		return nil, false, nil
	case first == "const", first == "class", first == "enum":
		return nil, true, nil
	}

	if len(tokens) >= 2 && tokens[0] == ioGuard[0] && tokens[1] == ioGuard[1] {
		tokens = append([]string{"import"}, tokens[2:]...)
	}

	switch tokens[0] {
	case "import", "export", "part":
	default:
		return nil, false, nil
	}
	if len(tokens) < 2 {
		return nil, false, errors.Fmt("%w: %q", ErrMalformedImport, line)
	}
	if tokens[0] == "part" && tokens[1] == "of" {
		// Names the library this file belongs to, not a dependency.
		return nil, false, nil
	}
	uris = append(uris, unquote(tokens[1]))

	// A conditional import spelled on the directive's own line.
	for i := 2; i+2 < len(tokens); i++ {
		if tokens[i] == ioGuard[0] && tokens[i+1] == ioGuard[1] {
			uris = append(uris, unquote(tokens[i+2]))
		}
	}
	return uris, false, nil
}

func unquote(tok string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', ';':
			return -1
		}
		return r
	}, tok)
}

// Join resolves dep relative to the directory of the module from.
//
// URIs with a scheme are returned as is. Each leading "../" of dep consumes
// one directory of from; nothing else is normalized.
func Join(from, dep string) string {
	if strings.Contains(dep, ":") {
		return dep
	}
	base := dir(from)
	dep = strings.TrimPrefix(dep, "./")
	for strings.HasPrefix(dep, "../") && base != "" {
		dep = dep[len("../"):]
		base = dir(base)
	}
	if base == "" {
		return dep
	}
	return base + "/" + dep
}

func dir(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[:i]
	}
	return ""
}
