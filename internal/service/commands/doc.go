// Package commands implements the carnival CLI use cases on top of the engine.
//
// An App loads the settings and the local records, resolves the requested
// product, calls the installer, planner or launcher, and persists the result.
// Command output goes to the configured writer; diagnostics go to the logger.
package commands
