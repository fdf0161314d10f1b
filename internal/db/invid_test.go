package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

func TestSymmetricRebind(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	x := newUser(t, es, "x")
	y := newUser(t, es, "y")
	z := newUser(t, es, "z")
	manager := field[*InvidField](t, x, "manager")

	requireOK(t, manager.Set(y))
	assert.Equal(t, []ref.Ref{x.Ref()}, refsOf(t, y, "reports"))

	requireOK(t, manager.Set(z.Ref()))
	assert.Empty(t, refsOf(t, y, "reports"))
	assert.Equal(t, []ref.Ref{x.Ref()}, refsOf(t, z, "reports"))

	commit(t, es)
	assert.NoError(t, s.VerifyAll())
	assert.Equal(t, []ref.Ref{x.Ref()}, refsOf(t, committed(t, s, z.Ref()), "reports"))

	es = begin(t, s)
	x, res := es.EditObject(x.Ref())
	requireOK(t, res)
	requireOK(t, field[*InvidField](t, x, "manager").Set(nil))
	zc, _ := es.EditObject(z.Ref())
	assert.Empty(t, refsOf(t, zc, "reports"))
	commit(t, es)
	assert.NoError(t, s.VerifyAll())
}

func TestSymmetricVectorBothSides(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "uma")
	g1 := newGroup(t, es, "staff")
	g2 := newGroup(t, es, "wheel")

	requireOK(t, field[*InvidField](t, g1, "members").AddElement(u))
	requireOK(t, field[*InvidField](t, u, "groups").AddElement(g2.Ref()))
	assert.ElementsMatch(t, []ref.Ref{g1.Ref(), g2.Ref()}, refsOf(t, u, "groups"))
	assert.Equal(t, []ref.Ref{u.Ref()}, refsOf(t, g2, "members"))

	requireCode(t, DuplicateValue, field[*InvidField](t, u, "groups").AddElement(g1))

	requireOK(t, field[*InvidField](t, u, "groups").DeleteValue(g1.Ref()))
	assert.Empty(t, refsOf(t, g1, "members"))
	commit(t, es)
	assert.NoError(t, s.VerifyAll())
}

func TestLinkConflictOnScalarMirror(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	boss := newUser(t, es, "boss")
	other := newUser(t, es, "other")
	worker := newUser(t, es, "worker")
	requireOK(t, field[*InvidField](t, worker, "manager").Set(boss))

	res := field[*InvidField](t, other, "reports").AddElement(worker)
	requireCode(t, LinkConflict, res)
	assert.ErrorIs(t, res.Err(), ErrLinkConflict)
	assert.Empty(t, refsOf(t, other, "reports"))
	assert.Equal(t, []ref.Ref{worker.Ref()}, refsOf(t, boss, "reports"))
}

func TestTargetBusy(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	g := newGroup(t, es, "ops")
	u := newUser(t, es, "vic")
	commit(t, es)

	es1 := begin(t, s)
	_, res := es1.EditObject(g.Ref())
	requireOK(t, res)

	es2 := begin(t, s)
	u2, res := es2.EditObject(u.Ref())
	requireOK(t, res)
	requireCode(t, TargetBusy, field[*InvidField](t, u2, "groups").AddElement(g))
	assert.Empty(t, refsOf(t, u2, "groups"))

	es1.Abort()
	requireOK(t, field[*InvidField](t, u2, "groups").AddElement(g))
	commit(t, es2)
	assert.NoError(t, s.VerifyAll())
}

func TestAsymmetricDeleteLock(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "wendy")
	sys := create(t, es, schema.TypeSystem)
	commit(t, es)

	es1 := begin(t, s)
	sys1, res := es1.EditObject(sys.Ref())
	requireOK(t, res)
	requireOK(t, field[*InvidField](t, sys1, "owner").Set(u))

	es2 := begin(t, s)
	requireCode(t, TargetBusy, es2.DeleteObject(u.Ref()))
	es2.Abort()

	commit(t, es1)
	assert.Equal(t, []ref.Ref{sys.Ref()}, s.BackPointers(u.Ref()))
	assert.NoError(t, s.VerifyAll())
}

func TestDeleteUnbindsEverything(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "xena")
	g := newGroup(t, es, "team")
	sys := create(t, es, schema.TypeSystem)
	requireOK(t, field[*InvidField](t, u, "groups").AddElement(g))
	requireOK(t, field[*InvidField](t, sys, "owner").Set(u))
	commit(t, es)

	es = begin(t, s)
	requireOK(t, es.DeleteObject(u.Ref()))
	commit(t, es)

	_, ok := s.Lookup(u.Ref())
	assert.False(t, ok)
	assert.Empty(t, refsOf(t, committed(t, s, g.Ref()), "members"))
	assert.False(t, committed(t, s, sys.Ref()).FieldByName("owner").IsDefined())
	assert.Empty(t, s.BackPointers(u.Ref()))
	assert.NoError(t, s.VerifyAll())

	es = begin(t, s)
	newUser(t, es, "xena")
	commit(t, es)
}

func TestEditInPlace(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	sys := create(t, es, schema.TypeSystem)
	requireOK(t, field[*StringField](t, sys, "hostname").Set("web1"))
	nics := field[*InvidField](t, sys, "interfaces")

	requireCode(t, InvalidValue, nics.AddElement(ref.New(schema.TypeInterface, 1)))

	nic, res := nics.CreateEmbedded()
	requireOK(t, res)
	requireOK(t, field[*IPField](t, nic, "address").Set("192.0.2.10"))
	c, ok := nic.Container()
	require.True(t, ok)
	assert.Equal(t, sys.Ref(), c)
	assert.Equal(t, []ref.Ref{nic.Ref()}, refsOf(t, sys, "interfaces"))
	commit(t, es)
	assert.NoError(t, s.VerifyAll())
	assert.NotContains(t, s.Refs(0), nic.Ref())

	es = begin(t, s)
	sys2, res := es.EditObject(sys.Ref())
	requireOK(t, res)
	requireOK(t, field[*InvidField](t, sys2, "interfaces").DeleteElement(0))
	commit(t, es)

	_, ok = s.Lookup(nic.Ref())
	assert.False(t, ok)
	ns, err := s.Namespaces().Get("addresses")
	require.NoError(t, err)
	_, held := ns.Lookup("192.0.2.10")
	assert.False(t, held)
}

type failInit struct{ BaseHooks }

func (failInit) InitializeNewObject(obj *Object) *Result {
	return fail(InvalidValue, "no interfaces today")
}

func TestCreateEmbeddedInitFailureRollsBack(t *testing.T) {
	s := newTestStore(t)
	s.SetHooks(schema.TypeInterface, failInit{})
	es := begin(t, s)
	sys := create(t, es, schema.TypeSystem)
	before := len(es.Objects())

	_, res := field[*InvidField](t, sys, "interfaces").CreateEmbedded()
	requireCode(t, InvalidValue, res)
	assert.Empty(t, refsOf(t, sys, "interfaces"))
	assert.Len(t, es.Objects(), before)
}

func TestDeleteContainerDeletesEmbedded(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	sys := create(t, es, schema.TypeSystem)
	nic, res := field[*InvidField](t, sys, "interfaces").CreateEmbedded()
	requireOK(t, res)
	commit(t, es)

	es = begin(t, s)
	requireOK(t, es.DeleteObject(sys.Ref()))
	commit(t, es)
	assert.Zero(t, s.Len())
	_, ok := s.Lookup(nic.Ref())
	assert.False(t, ok)
}

func TestInvidTargetType(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "yuri")
	other := newUser(t, es, "zoe")

	requireCode(t, InvalidValue, field[*InvidField](t, u, "homeGroup").Set(other))
	requireCode(t, TargetDeleted, field[*InvidField](t, u, "groups").AddElement(ref.New(schema.TypeGroup, 99)))
	requireCode(t, TypeMismatch, field[*InvidField](t, u, "groups").AddElement(42))
}

// groupOracle denies writes to groups.
type groupOracle struct{}

func (groupOracle) CanRead(*Object, uint16) bool { return true }
func (groupOracle) CanWrite(obj *Object, _ uint16) bool {
	return obj.Type().ID != schema.TypeGroup
}

type anonymousGroups struct{ BaseHooks }

func (anonymousGroups) AnonymousLinkOK(*Object, uint16, *Object, uint16) bool   { return true }
func (anonymousGroups) AnonymousUnlinkOK(*Object, uint16, *Object, uint16) bool { return true }

func TestAnonymousLink(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "amy")
	g := newGroup(t, es, "guests")
	commit(t, es)

	link := func() *Result {
		es, res := s.NewSession("amy", groupOracle{}, false).Begin()
		requireOK(t, res)
		defer es.Abort()
		obj, res := es.EditObject(u.Ref())
		requireOK(t, res)
		return field[*InvidField](t, obj, "groups").AddElement(g)
	}

	requireCode(t, PermissionDenied, link())

	s.SetHooks(schema.TypeGroup, anonymousGroups{})
	requireOK(t, link())
}

type fixedChoices struct{ BaseHooks }

func (fixedChoices) ObtainChoiceList(*InvidField) ([]ref.Ref, bool) {
	return []ref.Ref{ref.New(schema.TypeGroup, 7)}, true
}

func TestChoices(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "bea")
	g := newGroup(t, es, "dev")
	commit(t, es)

	groups := field[*InvidField](t, committed(t, s, u.Ref()), "groups")
	assert.Equal(t, []ref.Ref{g.Ref()}, groups.Choices())
	key := groups.ChoicesKey()
	assert.Len(t, key, 16)
	assert.Equal(t, key, groups.ChoicesKey())

	es = begin(t, s)
	newGroup(t, es, "qa")
	commit(t, es)
	assert.NotEqual(t, key, groups.ChoicesKey())
	assert.Len(t, groups.Choices(), 2)

	s.SetHooks(schema.TypeUser, fixedChoices{})
	hooked := groups.ChoicesKey()
	assert.Len(t, hooked, 16)
	assert.NotEqual(t, key, hooked)
	assert.Equal(t, []ref.Ref{ref.New(schema.TypeGroup, 7)}, groups.Choices())

	es = begin(t, s)
	newGroup(t, es, "ops")
	commit(t, es)
	assert.Equal(t, hooked, groups.ChoicesKey(), "hook-supplied list did not change")
}

func TestConcurrentNamespaceClaim(t *testing.T) {
	s := newTestStore(t)
	es1 := begin(t, s)
	es2 := begin(t, s)

	names := []*StringField{
		field[*StringField](t, create(t, es1, schema.TypeUser), "username"),
		field[*StringField](t, create(t, es2, schema.TypeUser), "username"),
	}

	results := make(chan *Result, 2)
	for _, f := range names {
		go func() { results <- f.Set("shared") }()
	}
	r1, r2 := <-results, <-results

	failed := 0
	for _, r := range []*Result{r1, r2} {
		if r.Failed() {
			failed++
			assert.Equal(t, NamespaceConflict, r.Code)
		}
	}
	assert.Equal(t, 1, failed, "exactly one claim must win")
}

const peerSchema = `
types:
  - id: 1
    name: node
    fields:
      - {code: 1, name: peers, kind: invid, vector: true, target: node, mirror: peers}
      - {code: 2, name: twin, kind: invid, target: node, mirror: twin}
`

func TestSelfMirroredField(t *testing.T) {
	s := newTestStore(t, withSchema(t, peerSchema))
	es := begin(t, s)
	x := create(t, es, 1)
	y := create(t, es, 1)

	requireOK(t, field[*InvidField](t, x, "peers").AddElement(x))
	assert.Equal(t, []ref.Ref{x.Ref()}, refsOf(t, x, "peers"))
	requireCode(t, DuplicateValue, field[*InvidField](t, x, "peers").AddElement(x))

	requireOK(t, field[*InvidField](t, x, "peers").AddElement(y))
	assert.Equal(t, []ref.Ref{x.Ref(), y.Ref()}, refsOf(t, x, "peers"))
	assert.Equal(t, []ref.Ref{x.Ref()}, refsOf(t, y, "peers"))

	twin := field[*InvidField](t, y, "twin")
	requireOK(t, twin.Set(y))
	assert.Equal(t, []ref.Ref{y.Ref()}, refsOf(t, y, "twin"))
	requireOK(t, twin.Set(x))
	assert.Equal(t, []ref.Ref{x.Ref()}, refsOf(t, y, "twin"))
	assert.Equal(t, []ref.Ref{y.Ref()}, refsOf(t, x, "twin"))
	commit(t, es)
	assert.NoError(t, s.VerifyAll())

	es = begin(t, s)
	xe, res := es.EditObject(x.Ref())
	requireOK(t, res)
	requireOK(t, field[*InvidField](t, xe, "peers").DeleteValue(x.Ref()))
	assert.Equal(t, []ref.Ref{y.Ref()}, refsOf(t, xe, "peers"))
	commit(t, es)
	assert.NoError(t, s.VerifyAll())
}
