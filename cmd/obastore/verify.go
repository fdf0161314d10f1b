package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var errBrokenLinks = errors.New("store has broken links")

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every reference agrees with its other side",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, ot := range s.Schema().ObjectTypes() {
				fmt.Fprintf(tw, "%s\t%s\n", ot.Name, humanize.Comma(int64(len(s.Refs(ot.ID)))))
			}
			tw.Flush()

			verr := s.VerifyAll()
			problems := multierr.Errors(verr)
			for _, p := range problems {
				fmt.Fprintln(a.errOut, p)
			}
			fmt.Fprintf(a.out, "checked %s objects in %s (%s backend, %s cache)\n",
				humanize.Comma(int64(s.Len())),
				time.Since(start).Round(time.Millisecond),
				a.cfg.Storage.Backend,
				humanize.IBytes(uint64(a.cfg.Storage.CacheBytes())))

			if len(problems) > 0 {
				return fmt.Errorf("%w: %d", errBrokenLinks, len(problems))
			}
			return nil
		},
	}
}
