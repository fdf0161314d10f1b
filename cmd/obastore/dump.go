package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obastore/internal/db"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func newDumpCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every committed object as XML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			dest := a.out
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				dest = f
			}

			cw := &countingWriter{w: dest}
			sink := db.NewXMLSink(cw)
			if err := s.Dump(sink); err != nil {
				return err
			}
			if err := sink.Flush(); err != nil {
				return err
			}
			if _, err := io.WriteString(cw, "\n"); err != nil {
				return err
			}

			if output != "" {
				fmt.Fprintf(a.errOut, "wrote %s objects (%s) to %s\n",
					humanize.Comma(int64(s.Len())), humanize.Bytes(uint64(cw.n)), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
