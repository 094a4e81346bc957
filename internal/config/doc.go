// ABOUTME: Package documentation for config
// ABOUTME: Describes YAML configuration loading for rollcall

// Package config loads and validates rollcall configuration from YAML files.
//
// Configuration files support environment variable expansion using the
// ${VAR_NAME} syntax and human-readable duration strings ("5m", "12h") for
// the pairing and session TTL fields. A single immutable Config is built at
// startup and passed by reference to every component.
package config
