// Package packager builds a manifest from a directory of build files.
//
// Every regular file under the build directory is hashed with the configured
// digest algorithm. Small builds are published as whole files; with a chunk
// size set, files are split into content-addressed chunks written to a chunk
// store directory that mirrors the layout the fetcher downloads from.
package packager
