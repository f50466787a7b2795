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

// Package packages loads the Dart package configuration of a checkout and
// resolves "package:" URIs to paths relative to the execution root.
package packages

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"
)

// ManifestPath is the location of the package configuration, relative to the
// execution root.
const ManifestPath = ".dart_tool/package_config.json"

// Scheme prefixes a URI that names a module inside a package.
const Scheme = "package:"

var (
	// ErrManifestNotFound is returned by Load when the package configuration is
	// absent or isn't valid JSON.
	ErrManifestNotFound = errors.New("package manifest not found")

	// ErrUnknownPackage is returned by Resolve for a "package:" URI whose package
	// isn't listed in the manifest.
	ErrUnknownPackage = errors.New("unknown package")
)

// Entry is a single package listed in the manifest.
type Entry struct {
	Name       string `json:"name"`
	RootURI    string `json:"rootUri"`
	PackageURI string `json:"packageUri"`
}

// Dir returns the package's root directory relative to the execution root.
//
// Root URIs are relative to the .dart_tool directory, so a single leading
// "../" is dropped.
func (e *Entry) Dir() string {
	return strings.TrimPrefix(e.RootURI, "../")
}

// Manifest is the parsed package configuration. It is immutable after Load.
type Manifest struct {
	// Path is the absolute path the manifest was read from.
	Path    string
	Entries []Entry

	byName map[string]int
}

// New builds a manifest out of entries. Later entries shadow earlier ones with
// the same name.
func New(entries []Entry) *Manifest {
	m := &Manifest{
		Entries: entries,
		byName:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		m.byName[e.Name] = i
	}
	return m
}

// Load reads ManifestPath under execRoot.
func Load(execRoot string) (*Manifest, error) {
	p := filepath.Join(execRoot, filepath.FromSlash(ManifestPath))
	blob, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Fmt("%w: reading %s: %w", ErrManifestNotFound, p, err)
	}
	var doc struct {
		Packages []Entry `json:"packages"`
	}
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, errors.Fmt("%w: parsing %s: %w", ErrManifestNotFound, p, err)
	}
	m := New(doc.Packages)
	m.Path = p
	return m, nil
}

// Lookup returns the entry for the named package.
func (m *Manifest) Lookup(name string) (*Entry, bool) {
	i, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return &m.Entries[i], true
}

// Resolve maps uri to a slash-separated path relative to the execution root.
//
// URIs without the "package:" scheme are returned unchanged. With
// wholeDirectory set, the result is the package's source directory rather
// than the specific module, which is what remote input lists want.
func (m *Manifest) Resolve(uri string, wholeDirectory bool) (string, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return uri, nil
	}
	name, rest, _ := strings.Cut(uri[len(Scheme):], "/")
	e, ok := m.Lookup(name)
	if !ok {
		return "", errors.Fmt("%w %q (in %s) while resolving %s", ErrUnknownPackage, name, m.Path, uri)
	}
	if wholeDirectory {
		return path.Join(e.Dir(), e.PackageURI), nil
	}
	return path.Join(e.Dir(), e.PackageURI, rest), nil
}
