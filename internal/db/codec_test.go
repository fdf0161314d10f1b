package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

func TestReopenRestoresObjects(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestStore(t, withBackend(backend))

	es := begin(t, s)
	u := newUser(t, es, "paula")
	requireOK(t, field[*NumericField](t, u, "uid").Set(1200))
	requireOK(t, field[*StringField](t, u, "emails").AddElements([]any{"p@example.com", "paula@example.com"}, false))
	requireOK(t, field[*BooleanField](t, u, "active").Set(true))
	requireOK(t, field[*DateField](t, u, "expires").Set(time.Date(2027, 1, 2, 3, 4, 5, 6e6, time.UTC)))
	requireOK(t, field[*PasswordField](t, u, "password").SetPlaintext("paula-pass1"))
	g := newGroup(t, es, "admins")
	requireOK(t, field[*InvidField](t, g, "members").AddElement(u))
	sys := create(t, es, schema.TypeSystem)
	requireOK(t, field[*StringField](t, sys, "hostname").Set("db1"))
	requireOK(t, field[*InvidField](t, sys, "owner").Set(u))
	nic, res := field[*InvidField](t, sys, "interfaces").CreateEmbedded()
	requireOK(t, res)
	requireOK(t, field[*IPField](t, nic, "address").Set("198.51.100.7"))
	commit(t, es)
	require.Equal(t, s.Len(), backend.Len())

	reopened := newTestStore(t, withBackend(backend))
	assert.Equal(t, s.Len(), reopened.Len())
	for _, r := range []ref.Ref{u.Ref(), g.Ref(), sys.Ref(), nic.Ref()} {
		want, got := committed(t, s, r), committed(t, reopened, r)
		assert.Empty(t, got.Diff(want), "%s differs after reopen", r)
	}
	assert.NoError(t, reopened.VerifyAll())
	assert.Equal(t, []ref.Ref{sys.Ref()}, reopened.BackPointers(u.Ref()))
	assert.True(t, field[*PasswordField](t, committed(t, reopened, u.Ref()), "password").MatchPlaintext("paula-pass1"))

	es = begin(t, reopened)
	other := create(t, es, schema.TypeUser)
	requireCode(t, NamespaceConflict, field[*StringField](t, other, "username").Set("PAULA"))
	requireCode(t, NamespaceConflict, field[*NumericField](t, other, "uid").Set(1200))
	next := create(t, es, schema.TypeUser)
	assert.Greater(t, next.Ref().Num, u.Ref().Num)
	es.Abort()
}

func TestLegacyRecords(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "quinn")
	g := newGroup(t, es, "legacy")
	at := time.Date(2026, 7, 4, 10, 30, 15, 250e6, time.UTC)
	requireOK(t, field[*DateField](t, u, "expires").Set(at))
	requireOK(t, field[*InvidField](t, u, "homeGroup").Set(g))
	requireOK(t, field[*PasswordField](t, u, "password").SetPrehashed(password.FormatCrypt, cryptHash(t, "quinn")))
	commit(t, es)

	data, err := s.EncodeObject(u.Ref(), EncodeOptions{Legacy: true})
	require.NoError(t, err)
	num, _, n := protowire.ConsumeTag(data)
	require.Positive(t, n)
	assert.NotEqual(t, recVersionTag, num, "legacy records carry no version")

	decoded, err := decodeObject(s, u.Ref(), data)
	require.NoError(t, err)
	name, _, _ := field[*StringField](t, decoded, "username").Get()
	assert.Equal(t, "quinn", name)
	expires, _, _ := field[*DateField](t, decoded, "expires").Get()
	assert.Equal(t, at.Truncate(time.Second), expires)
	home, _, _ := field[*InvidField](t, decoded, "homeGroup").Get()
	assert.Equal(t, g.Ref(), home)
	assert.True(t, field[*PasswordField](t, decoded, "password").MatchPlaintext("quinn"))

	es = begin(t, s)
	obj, res := es.EditObject(u.Ref())
	requireOK(t, res)
	requireOK(t, field[*PasswordField](t, obj, "password").SetPlaintext("modern-pass1"))
	commit(t, es)
	_, err = s.EncodeObject(u.Ref(), EncodeOptions{Legacy: true})
	assert.ErrorIs(t, err, ErrLegacyUnrepresentable)
}

func TestDecodeErrors(t *testing.T) {
	s := newTestStore(t)
	user := ref.New(schema.TypeUser, 1)

	versioned := func(v uint64) []byte {
		b := protowire.AppendTag(nil, recVersionTag, protowire.VarintType)
		return protowire.AppendVarint(b, v)
	}

	tests := []struct {
		name string
		r    ref.Ref
		data []byte
		want error
	}{
		{"truncated tag", user, []byte{0xff}, ErrCorruptRecord},
		{"truncated field", user, append(protowire.AppendTag(nil, recFieldTag, protowire.BytesType), 10, 1), ErrCorruptRecord},
		{"future version", user, versioned(9), ErrUnsupportedVersion},
		{"unknown type", ref.New(99, 1), versioned(codecCurrent), ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeObject(s, tt.r, tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "rita")
	commit(t, es)

	data, err := s.EncodeObject(u.Ref(), EncodeOptions{})
	require.NoError(t, err)

	var msg []byte
	msg = protowire.AppendTag(msg, fldCodeTag, protowire.VarintType)
	msg = protowire.AppendVarint(msg, 999)
	msg = protowire.AppendTag(msg, fldValueTag, protowire.BytesType)
	msg = protowire.AppendBytes(msg, []byte("orphan"))
	data = protowire.AppendTag(data, recFieldTag, protowire.BytesType)
	data = protowire.AppendBytes(data, msg)

	decoded, err := decodeObject(s, u.Ref(), data)
	require.NoError(t, err)
	assert.Equal(t, "rita", decoded.Label())
}

func TestOpenFailsOnCorruptRecord(t *testing.T) {
	backend := storage.NewMemory()
	require.NoError(t, backend.Apply(context.Background(), []storage.Record{
		{Ref: ref.New(schema.TypeUser, 1), Data: []byte{0xff}},
	}, nil))

	_, err := Open(context.Background(), Options{Schema: schema.DefaultSchema(), Backend: backend})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestEncodeObjectNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EncodeObject(ref.New(schema.TypeUser, 42), EncodeOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}
