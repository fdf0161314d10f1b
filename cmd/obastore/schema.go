package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/KilimcininKorOglu/obastore/internal/acl"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Schema commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate a schema file and the access rules against it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			sch, err := a.loadSchema(path)
			if err != nil {
				return err
			}

			fields := 0
			for _, ot := range sch.ObjectTypes() {
				fields += len(ot.Fields())
			}
			fmt.Fprintf(a.out, "schema ok: %d object types, %d fields, %d namespaces\n",
				len(sch.ObjectTypes()), fields, len(sch.Namespaces))

			rules, err := a.loadACL()
			if err != nil {
				return err
			}
			errs := acl.ValidateConfig(rules)
			errs = append(errs, acl.ValidateTypes(rules, func(name string) bool {
				return sch.ObjectTypeByName(name) != nil
			})...)
			if len(errs) > 0 {
				return fmt.Errorf("access rules: %w", multierr.Combine(errs...))
			}
			fmt.Fprintf(a.out, "access rules ok: %d rules, default %s\n", len(rules.Rules), rules.DefaultPolicy)
			return nil
		},
	})
	return cmd
}
