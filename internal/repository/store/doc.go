// Package store persists carnival's local records (installed titles, the synced
// library, the signed-in user and the session cookies) as YAML files in the
// configuration directory.
//
// Every record kind goes through the same File type: a missing file loads as
// the record's empty value, and writes replace the file atomically.
package store
