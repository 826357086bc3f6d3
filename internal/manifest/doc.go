// Package manifest parses build manifests into ordered file entries.
//
// A manifest lists every file of one product version with its size, content
// digest and retrieval info: either a whole-file source URL, byte ranges of that
// source, or content-addressed chunks under a chunk store URL. Parsing is pure;
// it never touches the filesystem or the network.
package manifest
