// Package config loads, normalizes, and validates stl2step configuration.
//
// Settings come from built-in defaults, an optional TOML file, an optional
// .env file and STL2STEP_* environment variables, in that order. Command line
// flags are applied on top by the caller. Always obtain settings through this
// package so the converter receives trimmed values and clear validation errors.
package config
