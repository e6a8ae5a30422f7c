// Package cmd implements the command-line interface of the twinkle client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (ping, get, set, unset, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable with the prefix
// TWINKLE_ (e.g. TWINKLE_ENDPOINT), .env and .env.local files are loaded as well.
//
// See twinkle -help for a list of all commands.
package cmd
