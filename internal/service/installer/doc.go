// Package installer turns a manifest-described product version into a verified
// set of files on disk, and later re-verifies, updates or removes it.
//
// Install downloads every manifest entry through a bounded worker pool, checks
// each reconstructed file against its digest and either returns the new
// InstallInfo or rolls back everything the call created. Update diffs the
// installed manifest against the target one, stages changed files next to the
// install and swaps them in only when every download succeeded. Verify
// re-hashes the files of an installed version without touching them.
package installer
