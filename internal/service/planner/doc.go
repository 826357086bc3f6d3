// Package planner decides which installed titles have newer builds in the
// library and which build is the latest for a platform.
//
// Version labels are opaque. When both labels parse as versions they are
// compared numerically, otherwise lexicographically.
package planner
