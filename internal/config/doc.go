// Package config provides configuration loading, merging, and path
// management for the Threadline server.
//
// # Configuration Loading
//
// The Load function merges configuration from multiple sources in
// priority order:
//
//  1. Global config (~/.config/threadline/)
//  2. Project config (threadline.{json,jsonc,yaml,yml})
//  3. THREADLINE_CONFIG file
//  4. THREADLINE_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// Later sources override earlier ones; environment variables have the
// highest precedence.
//
// # Supported Formats
//
// JSON, JSONC (comments stripped with tidwall/jsonc), and YAML.
// JSON/JSONC files additionally support variable interpolation:
//   - {env:VAR_NAME} expands to environment variable values
//   - {file:path} expands to file contents, escaped for JSON
//
// # Hot Reload
//
// Watcher observes the config directory with fsnotify and republishes
// a freshly loaded snapshot on change. The server uses this to refresh
// the read-only authentication/UI snapshot without a restart; a failed
// reload keeps the previous snapshot.
//
// # Paths
//
// GetPaths exposes XDG-style data, config, cache, and state
// directories. StoragePath holds the persisted-user store, FilesPath
// the per-session file directories.
package config
