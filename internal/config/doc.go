// Package config loads the agentwire daemon configuration from YAML,
// with ${VAR} environment expansion and duration parsing.
package config
