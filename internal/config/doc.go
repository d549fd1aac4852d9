// Package config loads the gateway configuration.
//
// Configuration is assembled in three layers, later layers winning:
//
//  1. Built-in defaults (DefaultConfig).
//  2. An optional YAML file. ${VAR} and ${VAR:-default} references in the
//     file are expanded from the environment before parsing.
//  3. Environment variables (API_HOST, JWT_SECRET, ...), see ApplyEnv.
//
// Durations accept Go duration strings ("5s") or integer milliseconds
// (5000), the latter matching the historical API_TIMEOUT format.
//
// The Watcher reloads the file on change and hands the new Config to a
// callback; only settings that are safe to swap at runtime should be read
// from reloaded configs.
package config
