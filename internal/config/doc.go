// Package config defines the settings shared by carnival commands and provides
// helpers to locate, load, validate and save them in YAML format.
//
// Settings live in settings.yaml inside the configuration directory returned by
// Dir. A missing file is not an error: first runs work with Default.
package config
