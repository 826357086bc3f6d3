// Package product contains the core domain types of the storefront client.
//
// Product and ProductVersion mirror the purchased catalog; Library is the whole
// catalog as synced (replaced wholesale on every sync). InstallInfo records one
// installed title and InstalledState maps slugs to those records.
package product
