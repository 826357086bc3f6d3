// Package digest computes and compares content digests of installed files and
// fetched chunks.
//
// The algorithm is a strategy shared by manifest producers and this verifier.
// Input is streamed through a fixed-size buffer so memory use does not depend
// on file size. A mismatch is a Result, not an error; only read failures are errors.
package digest
