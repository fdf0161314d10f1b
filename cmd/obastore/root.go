package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/KilimcininKorOglu/obastore/internal/acl"
	"github.com/KilimcininKorOglu/obastore/internal/config"
	"github.com/KilimcininKorOglu/obastore/internal/db"
	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

// app carries the state shared by every command of one invocation.
type app struct {
	configFile string
	logLevel   string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg *config.Config
	log logging.Logger
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "obastore",
		Short: "Administer an obastore object database",
		Long: `obastore administers a transactional object database: it checks
reference integrity, dumps the committed objects as XML, validates schema and
access rule files, and sets passwords.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "configuration file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newVersionCmd(a),
		newVerifyCmd(a),
		newDumpCmd(a),
		newSchemaCmd(a),
		newPasswdCmd(a),
	)
	return root
}

// setup loads and validates the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", multierr.Combine(errs...))
	}

	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithFields("cmd", cmd.Name())
	return nil
}

// loadSchema reads path, the configured schema file, or the built-in
// directory schema, in that order.
func (a *app) loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		path = a.cfg.Schema.File
	}
	if path == "" {
		return schema.DefaultSchema(), nil
	}
	s, err := schema.LoadSchema(path)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

func (a *app) loadACL() (*acl.Config, error) {
	if a.cfg.ACL.File == "" {
		c := acl.NewConfig()
		c.SetDefaultPolicy(a.cfg.ACL.DefaultPolicy)
		return c, nil
	}
	c, err := acl.LoadFromFile(a.cfg.ACL.File)
	if err != nil {
		return nil, err
	}
	if c.DefaultPolicy == "" {
		c.SetDefaultPolicy(a.cfg.ACL.DefaultPolicy)
	}
	return c, nil
}

// openStore opens the configured backend and loads the store from it.
// The caller closes the store.
func (a *app) openStore(ctx context.Context) (*db.Store, error) {
	sch, err := a.loadSchema("")
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(storage.Options{
		Kind:       a.cfg.Storage.Backend,
		Path:       a.cfg.Storage.Path,
		SyncWrites: a.cfg.Storage.SyncWrites,
		CacheBytes: a.cfg.Storage.CacheBytes(),
		Logger:     a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", a.cfg.Storage.Backend, err)
	}

	policy := a.cfg.Password.Policy
	s, err := db.Open(ctx, db.Options{
		Schema:    sch,
		Backend:   backend,
		Logger:    a.log,
		Passwords: password.NewManager(&policy, password.NewHasher(a.cfg.Password.Params())),
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

// findByLabel returns the committed object of the named type whose label
// matches, ignoring case.
func findByLabel(s *db.Store, typeName, label string) (*db.Object, error) {
	ot := s.Schema().ObjectTypeByName(typeName)
	if ot == nil {
		return nil, fmt.Errorf("unknown object type %q", typeName)
	}
	for _, r := range s.Refs(ot.ID) {
		obj, ok := s.Lookup(r)
		if ok && strings.EqualFold(obj.Label(), label) {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("no %s named %q", typeName, label)
}
