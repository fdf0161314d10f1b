package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

func TestVerifyDetectsBrokenLinks(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "sam")
	g := newGroup(t, es, "ops")
	requireOK(t, field[*InvidField](t, u, "groups").AddElement(g))
	sys := create(t, es, schema.TypeSystem)
	_, res := field[*InvidField](t, sys, "interfaces").CreateEmbedded()
	requireOK(t, res)
	commit(t, es)
	require.NoError(t, s.VerifyAll())

	members := field[*InvidField](t, committed(t, s, g.Ref()), "members")
	require.True(t, members.remove(u.Ref()))

	assert.NoError(t, s.VerifyObject(g.Ref()))
	err := s.VerifyObject(u.Ref())
	assert.ErrorIs(t, err, ErrBrokenLink)
	assert.Contains(t, err.Error(), "does not point back")

	err = s.VerifyAll()
	assert.ErrorIs(t, err, ErrBrokenLink)
	assert.Len(t, multierr.Errors(err), 1)
}

func TestVerifyObjectNotFound(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.VerifyObject(ref.New(schema.TypeGroup, 5)), ErrNotFound)
}
