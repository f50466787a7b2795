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
	"fmt"

	"go.chromium.org/luci/common/errors"
)

var (
	// ErrMissingExecRoot means a path had to be rebased, or a command
	// dispatched, before any execution root was configured.
	ErrMissingExecRoot = errors.New("no exec_root was set")

	// ErrPathOutsideExecRoot means a path named on the command line does not
	// live under the execution root.
	ErrPathOutsideExecRoot = errors.New("path isn't inside exec_root")
)

// UnsupportedArgumentError is returned for any argument the grammar of the
// current state doesn't know.
//
// Arguments are never forwarded to the remote executor unvetted: an unknown
// flag may name an input or output the remote action would then miss.
type UnsupportedArgumentError struct {
	// State is the name of the program or sub-command being parsed.
	State string
	// Arg is the offending argument.
	Arg string
}

func (e *UnsupportedArgumentError) Error() string {
	return fmt.Sprintf("unsupported argument in state %s: %q; "+
		"add it to the %s grammar in rbe/command once its inputs and outputs are known, "+
		"or run with RBE_exec_strategy=local", e.State, e.Arg, e.State)
}
