// Command tcplb runs the load balancer described by a single INI
// configuration file passed as its only argument.
package main

import (
	"fmt"
	"os"

	"github.com/nabbar/tcplb/cli"
)

func main() {
	root := cli.New()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
