// Package lockfile implements an advisory lock file that keeps two carnival
// processes from mutating the same install root at the same time.
//
// The lock is a small text file created with O_EXCL that records the owner pid
// and the acquisition time. A lock whose owner is gone, or which is older than
// StaleAfter, is considered abandoned and is taken over once.
package lockfile
