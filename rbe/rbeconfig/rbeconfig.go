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

// Package rbeconfig reads the tool's own settings from the environment.
package rbeconfig

import (
	"context"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/system/environ"
)

// Environment variables understood by the tool.
const (
	EnvLogLevel = "RBE_DART_LOG_LEVEL"
	EnvDryRun   = "RBE_DART_DRY_RUN"
)

// DefaultLogLevel is used when EnvLogLevel is unset.
const DefaultLogLevel = logging.Warning

// Config is the tool configuration.
type Config struct {
	// LogLevel is the minimum level that gets logged.
	LogLevel logging.Level
	// DryRun prints the command that would run instead of running it.
	DryRun bool
}

// FromCtx reads the configuration from the environment in ctx.
func FromCtx(ctx context.Context) (*Config, error) {
	env := environ.FromCtx(ctx)
	cfg := &Config{LogLevel: DefaultLogLevel}

	if v := env.Get(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.Set(strings.ToLower(v)); err != nil {
			return nil, errors.WrapIf(err, "bad %s", EnvLogLevel)
		}
	}

	switch v := strings.ToLower(env.Get(EnvDryRun)); v {
	case "", "0", "false":
	case "1", "true":
		cfg.DryRun = true
	default:
		return nil, errors.Fmt("bad %s: %q, want 1 or true", EnvDryRun, v)
	}
	return cfg, nil
}

// Use installs the log level on ctx.
func (c *Config) Use(ctx context.Context) context.Context {
	return logging.SetLevel(ctx, c.LogLevel)
}
