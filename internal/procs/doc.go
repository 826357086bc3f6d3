// Package procs answers whether an installed title is currently running, so
// destructive commands can refuse to pull files out from under it.
package procs
