package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

// itemSchema has a small vector with a namespace, for capacity and
// uniqueness tests.
const itemSchema = `
namespaces:
  - {name: tags}
types:
  - id: 1
    name: item
    label: name
    fields:
      - {code: 1, name: name, kind: string}
      - {code: 2, name: tags, kind: string, vector: true, maxSize: 3, namespace: tags}
      - {code: 3, name: count, kind: numeric, min: 0, max: 10}
`

type storeOption func(*Options)

func withSchema(t *testing.T, doc string) storeOption {
	s, err := schema.LoadSchemaFromYAML(strings.NewReader(doc))
	require.NoError(t, err)
	return func(o *Options) { o.Schema = s }
}

func withBackend(b storage.Backend) storeOption {
	return func(o *Options) { o.Backend = b }
}

func withPolicy(p *password.Policy) storeOption {
	return func(o *Options) { o.Passwords = password.NewManager(p, nil) }
}

func newTestStore(t *testing.T, opts ...storeOption) *Store {
	t.Helper()
	o := Options{
		Schema:    schema.DefaultSchema(),
		Passwords: password.NewManager(password.DisabledPolicy(), nil),
	}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := Open(context.Background(), o)
	require.NoError(t, err)
	return s
}

func begin(t *testing.T, s *Store) *EditSet {
	t.Helper()
	es, res := s.NewSession("test", nil, true).Begin()
	requireOK(t, res)
	return es
}

func requireOK(t *testing.T, res *Result) {
	t.Helper()
	require.False(t, res.Failed(), "unexpected failure: %v", res)
}

func requireCode(t *testing.T, want ResultCode, res *Result) {
	t.Helper()
	require.True(t, res.Failed(), "expected %s, got success", want)
	require.Equal(t, want, res.Code, "result: %v", res)
}

func create(t *testing.T, es *EditSet, typeID uint16) *Object {
	t.Helper()
	obj, res := es.CreateObject(typeID)
	requireOK(t, res)
	return obj
}

func field[F Field](t *testing.T, obj *Object, name string) F {
	t.Helper()
	f, ok := FieldAs[F](obj, name)
	require.True(t, ok, "%s has no field %s of the requested kind", obj, name)
	return f
}

func commit(t *testing.T, es *EditSet) {
	t.Helper()
	requireOK(t, es.Commit(context.Background()))
}

func newUser(t *testing.T, es *EditSet, name string) *Object {
	t.Helper()
	u := create(t, es, schema.TypeUser)
	requireOK(t, field[*StringField](t, u, "username").Set(name))
	return u
}

func newGroup(t *testing.T, es *EditSet, name string) *Object {
	t.Helper()
	g := create(t, es, schema.TypeGroup)
	requireOK(t, field[*StringField](t, g, "groupname").Set(name))
	return g
}

func refsOf(t *testing.T, obj *Object, name string) []ref.Ref {
	t.Helper()
	vals, res := field[*InvidField](t, obj, name).All()
	requireOK(t, res)
	return vals
}

func committed(t *testing.T, s *Store, r ref.Ref) *Object {
	t.Helper()
	obj, ok := s.Lookup(r)
	require.True(t, ok, "%s is not committed", r)
	return obj
}

// vetoHooks vetoes Finalize for the named field.
type vetoHooks struct {
	BaseHooks
	field string
}

func (h vetoHooks) Finalize(f Field, op Op, values []any) *Result {
	if f.Name() == h.field {
		return fail(InvalidValue, "%s refused", op)
	}
	return nil
}
