// Package launcher starts an installed title and waits for it to exit.
//
// A Strategy turns the executable into a command line: Native runs it
// directly, Compat runs it through a compatibility runtime such as wine.
// An optional wrapper command (for example "gamemoderun" or "mangohud") is
// prepended to whatever the strategy produced.
package launcher
