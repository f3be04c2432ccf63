// Package config loads the snowz application configuration from a JSON file,
// fills in defaults relative to the file's directory, and selects the history,
// lock and event backends used by the runtime.
package config
