// Command carnival is a storefront client: it syncs the purchased library and
// installs, verifies, updates and launches titles.
package main

import "github.com/oshokin/carnival/cmd/carnival/cmd"

func main() {
	cmd.Execute()
}
