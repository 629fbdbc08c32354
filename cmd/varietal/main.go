// Command varietal resolves and installs conda-compatible packages.
package main

import "github.com/varietal/varietal/internal/cli"

func main() {
	cli.Execute()
}
