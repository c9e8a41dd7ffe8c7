// Package config defines the daemon settings and provides helpers to load,
// validate and save them in YAML format.
//
// Loading starts from Default and overlays the file, so a config file only
// needs the keys it changes.
package config
