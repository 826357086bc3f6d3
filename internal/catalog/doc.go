// Package catalog talks to the storefront: it signs the user in, keeps the
// session cookies, mirrors the purchased library and retrieves build manifests.
//
// Manifests fetched once are kept under the configuration directory by
// ManifestCache, so verification of an installed title does not need the
// network.
package catalog
