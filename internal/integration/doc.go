// Package integration holds end-to-end tests that drive the command layer
// against a fake storefront served over HTTP.
package integration
