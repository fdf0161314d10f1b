package db

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

func cryptHash(t *testing.T, text string) string {
	t.Helper()
	h, err := password.DESCrypt(text, "ab")
	require.NoError(t, err)
	return h
}

// legacyUser commits a user whose password is only a crypt hash.
func legacyUser(t *testing.T, s *Store, name, secret string) *Object {
	t.Helper()
	es := begin(t, s)
	u := newUser(t, es, name)
	requireOK(t, field[*PasswordField](t, u, "password").SetPrehashed(password.FormatCrypt, cryptHash(t, secret)))
	commit(t, es)
	return committed(t, s, u.Ref())
}

func TestPassiveCapture(t *testing.T) {
	s := newTestStore(t)

	t.Run("short password is captured", func(t *testing.T) {
		u := legacyUser(t, s, "old1", "short1")
		pw := field[*PasswordField](t, u, "password")
		require.False(t, pw.HasFormat(password.FormatSHA512Crypt))

		assert.False(t, pw.MatchPlaintext("short2"))
		assert.False(t, pw.HasPlaintext())

		assert.True(t, pw.MatchPlaintext("short1"))
		assert.True(t, pw.HasPlaintext())
		for _, f := range []password.Format{password.FormatSHA512Crypt, password.FormatSSHA, password.FormatNTLM, password.FormatCrypt} {
			assert.True(t, pw.HasFormat(f), "missing %s after capture", f)
		}
		assert.True(t, pw.MatchPlaintext("short1"))
	})

	t.Run("long password is not captured", func(t *testing.T) {
		u := legacyUser(t, s, "old2", "averylongpassword123")
		pw := field[*PasswordField](t, u, "password")

		assert.True(t, pw.MatchPlaintext("averylongpassword123"))
		assert.True(t, pw.MatchPlaintext("averylonDIFFERENT"), "crypt only checks eight characters")
		assert.False(t, pw.HasPlaintext())
		assert.Equal(t, []password.Format{password.FormatCrypt}, pw.Formats())
	})
}

func TestPassiveCapturePersists(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestStore(t, withBackend(backend))
	u := legacyUser(t, s, "persist", "short1")
	require.True(t, field[*PasswordField](t, u, "password").MatchPlaintext("short1"))

	reopened := newTestStore(t, withBackend(backend))
	pw := field[*PasswordField](t, committed(t, reopened, u.Ref()), "password")
	assert.True(t, pw.HasFormat(password.FormatSHA512Crypt))
	assert.False(t, pw.HasPlaintext(), "plaintext is not stored for this field")
	assert.True(t, pw.MatchPlaintext("short1"))
}

func TestSetPlaintext(t *testing.T) {
	policy := &password.Policy{Enabled: true, MinLength: 6, MaxLength: 20, BadChars: " ", RequireDigit: true, HistoryCount: 3}
	s := newTestStore(t, withPolicy(policy))

	es, res := s.NewSession("user", nil, false).Begin()
	requireOK(t, res)
	pw := field[*PasswordField](t, newUser(t, es, "hank"), "password")

	tests := []struct {
		text string
		want ResultCode
	}{
		{"abc1", TooShort},
		{"abcdefghijklmnopqrstu1", TooLong},
		{"abc def1", ForbiddenCharacter},
		{"abcdefgh", QualityRejected},
	}
	for _, tt := range tests {
		requireCode(t, tt.want, pw.SetPlaintext(tt.text))
	}
	assert.False(t, pw.IsDefined())

	requireOK(t, pw.SetPlaintext("secret1"))
	assert.True(t, pw.HasFormat(password.FormatSHA512Crypt))
	assert.False(t, pw.HasPlaintext())
	assert.True(t, pw.MatchPlaintext("secret1"))
	assert.False(t, pw.MatchPlaintext("secret2"))

	requireCode(t, ReusedTooRecently, pw.SetPlaintext("secret1"))

	_, res = pw.Value()
	requireCode(t, PermissionDenied, res)
}

func TestSetPlaintextPrivilegedAdvisory(t *testing.T) {
	policy := &password.Policy{Enabled: true, MinLength: 6, RequireDigit: true, HistoryCount: 3}
	s := newTestStore(t, withPolicy(policy))
	es := begin(t, s)
	pw := field[*PasswordField](t, newUser(t, es, "ivy"), "password")

	res := pw.SetPlaintext("nodigits")
	require.True(t, res.OK())
	assert.NotEmpty(t, res.Advisory())

	requireCode(t, TooShort, pw.SetPlaintext("a1"))
}

type noDictionaryWords struct{ BaseHooks }

func (noDictionaryWords) CheckPasswordQuality(_ *PasswordField, text string) error {
	if text == "password1" {
		return errors.New("dictionary word")
	}
	return nil
}

func TestPasswordQualityHook(t *testing.T) {
	s := newTestStore(t)
	s.SetHooks(schema.TypeUser, noDictionaryWords{})
	es, res := s.NewSession("user", nil, false).Begin()
	requireOK(t, res)
	pw := field[*PasswordField](t, newUser(t, es, "jay"), "password")

	res = pw.SetPlaintext("password1")
	requireCode(t, QualityRejected, res)
	assert.Contains(t, res.Message, "dictionary word")
}

func TestSetPrehashed(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	pw := field[*PasswordField](t, newUser(t, es, "kim"), "password")

	requireCode(t, MalformedHashText, pw.SetPrehashed(password.FormatSHA512Crypt, "not a hash"))

	requireOK(t, pw.SetPlaintext("hunter22"))
	require.True(t, pw.HasFormat(password.FormatNTLM))

	requireOK(t, pw.SetPrehashed(password.FormatCrypt, cryptHash(t, "other")))
	assert.Equal(t, []password.Format{password.FormatCrypt}, pw.Formats())
	assert.True(t, pw.MatchPlaintext("other"))
}

func TestSetPrehashedUnconfiguredFormat(t *testing.T) {
	doc := `
types:
  - id: 1
    name: svc
    fields:
      - {code: 1, name: secret, kind: password, formats: [ssha]}
`
	s := newTestStore(t, withSchema(t, doc))
	es := begin(t, s)
	pw := field[*PasswordField](t, create(t, es, 1), "secret")
	requireCode(t, NotConfiguredForFormat, pw.SetPrehashed(password.FormatCrypt, cryptHash(t, "x")))
	requireOK(t, pw.SetHashes(map[password.Format]string{password.FormatSSHA: mustSSHA(t, "x")}))
}

func mustSSHA(t *testing.T, text string) string {
	t.Helper()
	h, err := password.SSHA(text)
	require.NoError(t, err)
	return h
}

func TestPasswordDiffAndRollback(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "lou")
	pw := field[*PasswordField](t, u, "password")
	requireOK(t, pw.SetPlaintext("first-pass1"))
	before := pw.clone(u)

	requireOK(t, es.Checkpoint("pw"))
	requireOK(t, pw.SetPlaintext("second-pass2"))
	assert.Equal(t, "password: password changed", pw.Diff(before))
	assert.NotContains(t, pw.Diff(before), "pass2")
	requireOK(t, es.Rollback("pw"))

	assert.True(t, pw.Equal(before))
	assert.Empty(t, pw.Diff(before))
	assert.True(t, pw.MatchPlaintext("first-pass1"))
}

func TestPasswordEncodingDropsUnrequiredFormats(t *testing.T) {
	s := newTestStore(t)
	es := begin(t, s)
	u := newUser(t, es, "max")
	pw := field[*PasswordField](t, u, "password")

	bcryptHash, err := password.NewHasher(password.Params{BcryptCost: 4, Argon2: password.DefaultArgon2Params()}).Generate(password.FormatBcrypt, "legacy")
	require.NoError(t, err)

	// Only an accepted, unrequired format: kept so the user can log in.
	requireOK(t, pw.SetPrehashed(password.FormatBcrypt, bcryptHash))
	commit(t, es)
	data, err := s.EncodeObject(u.Ref(), EncodeOptions{})
	require.NoError(t, err)
	decoded, err := decodeObject(s, u.Ref(), data)
	require.NoError(t, err)
	assert.Equal(t, []password.Format{password.FormatBcrypt}, field[*PasswordField](t, decoded, "password").Formats())

	// With a required format present the bcrypt hash is dropped.
	es = begin(t, s)
	obj, res := es.EditObject(u.Ref())
	requireOK(t, res)
	requireOK(t, field[*PasswordField](t, obj, "password").SetHashes(map[password.Format]string{
		password.FormatBcrypt: bcryptHash,
		password.FormatCrypt:  cryptHash(t, "legacy"),
	}))
	commit(t, es)
	data, err = s.EncodeObject(u.Ref(), EncodeOptions{})
	require.NoError(t, err)
	decoded, err = decodeObject(s, u.Ref(), data)
	require.NoError(t, err)
	assert.Equal(t, []password.Format{password.FormatCrypt}, field[*PasswordField](t, decoded, "password").Formats())
}

func TestPasswordHistoryTimestamps(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s := newTestStore(t)
	s.now = func() time.Time { return at }
	es := begin(t, s)
	u := newUser(t, es, "ned")
	requireOK(t, field[*PasswordField](t, u, "password").SetPlaintext("one-pass1"))
	commit(t, es)

	data, err := s.EncodeObject(u.Ref(), EncodeOptions{})
	require.NoError(t, err)
	decoded, err := decodeObject(s, u.Ref(), data)
	require.NoError(t, err)
	hist := field[*PasswordField](t, decoded, "password").snapshot().history
	require.NotNil(t, hist)
	entries := hist.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, at, entries[0].Time)
	assert.True(t, hist.Contains("one-pass1"))
}

func TestPassiveCaptureWhileCheckedOut(t *testing.T) {
	t.Run("unrelated edit keeps captured formats", func(t *testing.T) {
		backend := storage.NewMemory()
		s := newTestStore(t, withBackend(backend))
		u := legacyUser(t, s, "olive", "short1")

		es := begin(t, s)
		edit, res := es.EditObject(u.Ref())
		requireOK(t, res)

		require.True(t, field[*PasswordField](t, committed(t, s, u.Ref()), "password").MatchPlaintext("short1"))
		requireOK(t, field[*StringField](t, edit, "fullName").Set("Olive Oyl"))
		commit(t, es)

		pw := field[*PasswordField](t, committed(t, s, u.Ref()), "password")
		assert.True(t, pw.HasFormat(password.FormatSHA512Crypt))
		assert.True(t, pw.HasFormat(password.FormatNTLM))

		reopened := newTestStore(t, withBackend(backend))
		u2 := committed(t, reopened, u.Ref())
		assert.True(t, field[*PasswordField](t, u2, "password").HasFormat(password.FormatSHA512Crypt))
		name, _, _ := field[*StringField](t, u2, "fullName").Get()
		assert.Equal(t, "Olive Oyl", name)
	})

	t.Run("new password wins over the capture", func(t *testing.T) {
		backend := storage.NewMemory()
		s := newTestStore(t, withBackend(backend))
		u := legacyUser(t, s, "pete", "short1")

		es := begin(t, s)
		edit, res := es.EditObject(u.Ref())
		requireOK(t, res)
		requireOK(t, field[*PasswordField](t, edit, "password").SetPlaintext("brand-new1"))

		require.True(t, field[*PasswordField](t, committed(t, s, u.Ref()), "password").MatchPlaintext("short1"))
		commit(t, es)

		pw := field[*PasswordField](t, committed(t, s, u.Ref()), "password")
		assert.True(t, pw.MatchPlaintext("brand-new1"))
		assert.False(t, pw.MatchPlaintext("short1"))

		reopened := newTestStore(t, withBackend(backend))
		pw = field[*PasswordField](t, committed(t, reopened, u.Ref()), "password")
		assert.True(t, pw.MatchPlaintext("brand-new1"))
		assert.False(t, pw.MatchPlaintext("short1"))
	})

	t.Run("rolled back edit still keeps the capture", func(t *testing.T) {
		s := newTestStore(t)
		u := legacyUser(t, s, "quade", "short1")

		es := begin(t, s)
		edit, res := es.EditObject(u.Ref())
		requireOK(t, res)
		requireOK(t, es.Checkpoint("name"))
		require.True(t, field[*PasswordField](t, committed(t, s, u.Ref()), "password").MatchPlaintext("short1"))
		requireOK(t, field[*StringField](t, edit, "fullName").Set("Quade"))
		requireOK(t, es.Rollback("name"))
		commit(t, es)

		assert.True(t, field[*PasswordField](t, committed(t, s, u.Ref()), "password").HasFormat(password.FormatSHA512Crypt))
	})
}
