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

// Package deps computes the transitive set of Dart modules a build step reads.
package deps

import (
	"context"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/logging"

	"go.dart.dev/rbe/dart/imports"
)

// FindInputs returns every module reachable from entries through import,
// export and part directives, entries included.
//
// The result doubles as the visited set, so import cycles terminate. The
// traversal order is unspecified.
func FindInputs(ctx context.Context, s imports.Scanner, entries stringset.Set) (stringset.Set, error) {
	found := entries.Dup()
	pending := entries.Dup()
	for {
		uri, ok := pending.Pop()
		if !ok {
			break
		}
		direct, err := s.Scan(ctx, uri)
		if err != nil {
			return nil, err
		}
		direct.Iter(func(dep string) bool {
			if found.Add(dep) {
				pending.Add(dep)
			}
			return true
		})
	}
	logging.Debugf(ctx, "%d entry points reach %d modules", entries.Len(), found.Len())
	return found, nil
}
