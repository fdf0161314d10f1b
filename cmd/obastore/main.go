// Package main provides the obastore administration CLI.
package main

import (
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns an exit code.
// This is separated from main() to facilitate testing.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := newRootCmd(in, out, errOut)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		io.WriteString(errOut, "Error: "+err.Error()+"\n")
		return 1
	}
	return 0
}
