// Package config defines settings used by the catpoint binaries and provides
// helpers to load, validate and save them in YAML format.
//
// Validate fills in defaults for every optional section, so callers can rely
// on a fully populated Config after Load.
package config
