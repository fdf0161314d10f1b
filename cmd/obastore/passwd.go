package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obastore/internal/acl"
	"github.com/KilimcininKorOglu/obastore/internal/db"
)

var errNoPassword = errors.New("no password on standard input")

type passwdOptions struct {
	typeName string
	field    string
	as       string
}

func newPasswdCmd(a *app) *cobra.Command {
	opts := passwdOptions{}
	cmd := &cobra.Command{
		Use:   "passwd <label>",
		Short: "Set a password read from standard input",
		Long: `Set the password of the object whose label matches <label>. The new
password is the first line of standard input.

Without --as the change is made by a privileged session and policy failures
that are only warnings are reported but not enforced. With --as the change is
checked against the access rules for that persona and the policy is enforced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.passwd(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.typeName, "type", "user", "object type")
	cmd.Flags().StringVar(&opts.field, "field", "password", "password field name")
	cmd.Flags().StringVar(&opts.as, "as", "", "act as this user, subject to access rules")
	return cmd
}

func (a *app) passwd(cmd *cobra.Command, label string, opts passwdOptions) error {
	text, err := readSecret(a)
	if err != nil {
		return err
	}

	s, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	target, err := findByLabel(s, opts.typeName, label)
	if err != nil {
		return err
	}

	var sess *db.Session
	if opts.as == "" {
		sess = s.NewSession("obastore-cli", nil, true)
	} else {
		rules, err := a.loadACL()
		if err != nil {
			return err
		}
		persona, err := personaFor(s, opts.as)
		if err != nil {
			return err
		}
		sess = s.NewSession(persona.Name, db.NewACLOracle(acl.NewEvaluator(rules), persona), false)
	}
	defer sess.Close()

	es, res := sess.Begin()
	if res.Failed() {
		return res.Err()
	}
	obj, res := es.EditObject(target.Ref())
	if res.Failed() {
		return res.Err()
	}
	pw, ok := db.FieldAs[*db.PasswordField](obj, opts.field)
	if !ok {
		return fmt.Errorf("%s has no password field %q", opts.typeName, opts.field)
	}

	res = pw.SetPlaintext(text)
	if res.Failed() {
		return res.Err()
	}
	if adv := res.Advisory(); adv != "" {
		fmt.Fprintf(a.errOut, "warning: %s\n", adv)
	}
	formats := pw.Formats()

	if res := es.Commit(cmd.Context()); res.Failed() {
		return res.Err()
	}

	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	fmt.Fprintf(a.out, "password of %s %s updated (%s)\n", opts.typeName, target.Label(), strings.Join(names, ", "))
	return nil
}

func readSecret(a *app) (string, error) {
	sc := bufio.NewScanner(a.in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errNoPassword
	}
	text := strings.TrimRight(sc.Text(), "\r")
	if text == "" {
		return "", errNoPassword
	}
	return text, nil
}

// personaFor builds the persona of the user labelled name, with the labels
// of the groups it belongs to.
func personaFor(s *db.Store, name string) (acl.Persona, error) {
	user, err := findByLabel(s, "user", name)
	if err != nil {
		return acl.Persona{}, err
	}
	p := acl.Persona{Name: user.Label(), Ref: user.Ref()}
	if groups, ok := db.FieldAs[*db.InvidField](user, "groups"); ok {
		refs, _ := groups.All()
		for _, r := range refs {
			if g, ok := s.Lookup(r); ok {
				p.Groups = append(p.Groups, g.Label())
			}
		}
	}
	return p, nil
}
