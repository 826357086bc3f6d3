// Package version identifies the running carnival build.
//
// The release, commit and build time default to development values and are
// replaced through -ldflags -X by the release build. The release also names
// the client to the storefront: UserAgent is set on every catalog and content
// request so server logs can tell builds apart.
package version
