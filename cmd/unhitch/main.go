// Command unhitch loads order graphs into a unit of work and detaches them.
package main

import "github.com/mesh-intelligence/unhitch/internal/cli"

func main() {
	cli.Execute()
}
