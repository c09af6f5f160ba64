// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

// Package config loads and manages the CouncilFlow configuration.
//
// Configuration comes from defaults, an optional YAML file and environment
// variables, in that order of precedence. Provider API keys are additionally
// read from the conventional unprefixed variables (OPENAI_API_KEY and
// friends), and [Config.FilterCouncil] drops roster members whose provider
// ended up without credentials.
//
// The package also provides polling-based file watching, runtime hot reload
// with change history and rollback, and a read-only admin HTTP surface for
// inspecting the live configuration.
package config
