package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information - these can be set at build time using ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version   = "0.3.0"
	commit    = "unknown"
	buildDate = "unknown"
)

func newVersionCmd(a *app) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				fmt.Fprintln(a.out, version)
				return
			}
			fmt.Fprintf(a.out, "obastore version %s\n", version)
			fmt.Fprintf(a.out, "  Commit:     %s\n", commit)
			fmt.Fprintf(a.out, "  Built:      %s\n", buildDate)
			fmt.Fprintf(a.out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "show only the version number")
	return cmd
}
