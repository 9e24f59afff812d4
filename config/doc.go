// Package config loads and validates the engine configuration from YAML
// files and KNOWSYNC_* environment variables. A zero-value configuration is
// usable: it selects in-memory storage and sensible synchronization
// defaults.
package config
