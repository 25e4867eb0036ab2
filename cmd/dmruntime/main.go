// Command dmruntime runs descriptor-driven components from a modules directory
package main

import "github.com/dmruntime/dmruntime/pkg/cli"

// version is set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

func main() {
	cli.ExecuteWithVersion(version)
}
