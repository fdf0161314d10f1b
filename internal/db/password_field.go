package db

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// PasswordField stores a secret as one or more hashes and, when the
// definition asks for it, the plaintext. The generic read accessors always
// fail; use MatchPlaintext.
type PasswordField struct {
	baseField
	state passwordState
}

type passwordState struct {
	hashes    map[password.Format]string
	plaintext string
	hasPlain  bool
	history   *password.History
}

func (s passwordState) clone() passwordState {
	out := passwordState{
		hashes:    maps.Clone(s.hashes),
		plaintext: s.plaintext,
		hasPlain:  s.hasPlain,
	}
	if s.history != nil {
		out.history = s.history.Clone()
	}
	return out
}

func (s passwordState) equal(o passwordState) bool {
	if s.hasPlain != o.hasPlain || s.plaintext != o.plaintext || !maps.Equal(s.hashes, o.hashes) {
		return false
	}
	if s.history == nil || o.history == nil {
		return s.history == nil && o.history == nil
	}
	return s.history.Equal(o.history)
}

func newPasswordField(def *schema.FieldDef, owner *Object) *PasswordField {
	f := &PasswordField{}
	f.init(def, owner, f)
	return f
}

func (f *PasswordField) clone(owner *Object) Field {
	c := newPasswordField(f.def, owner)
	c.state = f.snapshot()
	return c
}

func (f *PasswordField) snapshot() passwordState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

func (f *PasswordField) options() *schema.PasswordOptions {
	if f.def.Password == nil {
		return &schema.PasswordOptions{}
	}
	return f.def.Password
}

func (f *PasswordField) hasher() *password.Hasher {
	return f.owner.store.passwords.Hasher()
}

func (f *PasswordField) historySize() int {
	if n := f.options().HistorySize; n > 0 {
		return n
	}
	return f.owner.store.passwords.GetPolicy(policyKey(f.owner.typ, f.def)).HistoryCount
}

// IsDefined reports whether any representation is stored.
func (f *PasswordField) IsDefined() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.hasPlain || len(f.state.hashes) > 0
}

// Len is 1 when a password is set.
func (f *PasswordField) Len() int {
	if f.IsDefined() {
		return 1
	}
	return 0
}

// Value always fails.
func (f *PasswordField) Value() (any, *Result) {
	return nil, fail(PermissionDenied, "%s cannot be read", f.label())
}

// Values always fails.
func (f *PasswordField) Values() ([]any, *Result) {
	return nil, fail(PermissionDenied, "%s cannot be read", f.label())
}

// HasPlaintext reports whether the plaintext is known.
func (f *PasswordField) HasPlaintext() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.hasPlain
}

// HasFormat reports whether a hash in format pf is stored.
func (f *PasswordField) HasFormat(pf password.Format) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.state.hashes[pf]
	return ok
}

// Formats lists the stored hash formats in declaration order.
func (f *PasswordField) Formats() []password.Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Collect(maps.Keys(f.state.hashes))
	slices.Sort(out)
	return out
}

// Hash returns the stored hash text of format pf.
func (f *PasswordField) Hash(pf password.Format) (string, *Result) {
	if r := f.checkRead(); r != nil {
		return "", r
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.state.hashes[pf]
	if !ok {
		return "", fail(NoSuchValue, "%s has no %s hash", f.label(), pf)
	}
	return h, nil
}

func (f *PasswordField) Checkpoint() Snapshot {
	return Snapshot{state: f.snapshot()}
}

func (f *PasswordField) Restore(s Snapshot) {
	st, _ := s.state.(passwordState)
	st = st.clone()
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
}

func (f *PasswordField) Equal(other Field) bool {
	o, ok := other.(*PasswordField)
	if !ok {
		return false
	}
	return f.snapshot().equal(o.snapshot())
}

// Diff reports only whether the password changed.
func (f *PasswordField) Diff(original Field) string {
	if f.Equal(original) {
		return ""
	}
	return f.def.Name + ": password changed"
}

func (f *PasswordField) nsValues() []string { return nil }

// SetPlaintext validates text, then replaces every stored representation
// with freshly generated hashes of the required formats. Quality and
// reuse failures are advisories in privileged sessions.
func (f *PasswordField) SetPlaintext(text string) *Result {
	if r := f.checkWrite(); r != nil {
		return r
	}
	opts := f.options()
	cur := f.snapshot()

	quality := func(pw string) error {
		return f.hooks().CheckPasswordQuality(f, pw)
	}
	v := f.owner.store.passwords.Validator(policyKey(f.owner.typ, f.def), quality)
	warnings, err := v.Validate(text, cur.history, f.owner.privileged())
	if err != nil {
		return validationFailure(f, err)
	}
	var advice *Result
	if len(warnings) > 0 {
		msgs := make([]string, len(warnings))
		for i, w := range warnings {
			msgs[i] = w.Message
		}
		advice = advise("%s: %s", f.label(), strings.Join(msgs, "; "))
	}

	fin := f.finalize(OpSetPassword, nil)
	if fin.Failed() {
		return fin
	}

	hashes, r := f.generate(text, opts.Formats, nil)
	if r != nil {
		return r
	}

	next := passwordState{hashes: hashes}
	if opts.StorePlaintext {
		next.plaintext, next.hasPlain = text, true
	}
	if cur.history != nil {
		next.history = cur.history.Clone()
	} else {
		next.history = password.NewHistory(f.historySize())
	}
	if err := next.history.Add(text, f.owner.store.now().UTC().Truncate(time.Millisecond)); err != nil {
		return failCause(InvalidValue, err, "%s: recording history", f.label())
	}

	f.mu.Lock()
	f.state = next
	f.mu.Unlock()
	return mergeAdvice(advice, fin)
}

// generate hashes text in every format of want missing from have. Formats
// that cannot encode text are skipped.
func (f *PasswordField) generate(text string, want []password.Format, have map[password.Format]string) (map[password.Format]string, *Result) {
	out := maps.Clone(have)
	if out == nil {
		out = make(map[password.Format]string, len(want))
	}
	for _, pf := range want {
		if _, ok := out[pf]; ok {
			continue
		}
		h, err := f.hasher().Generate(pf, text)
		if errors.Is(err, password.ErrUnencodable) {
			f.owner.store.log.Debug("password format skipped", "field", f.label(), "format", pf.String())
			continue
		}
		if err != nil {
			return nil, failCause(InvalidValue, err, "%s: generating %s hash", f.label(), pf)
		}
		out[pf] = h
	}
	return out, nil
}

func validationFailure(f *PasswordField, err error) *Result {
	var verr *password.ValidationError
	if !errors.As(err, &verr) {
		return failCause(InvalidValue, err, "%s: %v", f.label(), err)
	}
	code := QualityRejected
	switch verr.Code {
	case password.ErrTooShort:
		code = TooShort
	case password.ErrTooLong:
		code = TooLong
	case password.ErrForbiddenCharacter:
		code = ForbiddenCharacter
	case password.ErrInHistory:
		code = ReusedTooRecently
	}
	return failCause(code, verr, "%s: %s", f.label(), verr.Message)
}

// SetPrehashed stores hash text computed elsewhere, clearing every other
// representation.
func (f *PasswordField) SetPrehashed(pf password.Format, text string) *Result {
	return f.SetHashes(map[password.Format]string{pf: text})
}

// SetHashes replaces every stored representation with the given hashes.
// Each format must be enabled and each text well formed.
func (f *PasswordField) SetHashes(hashes map[password.Format]string) *Result {
	if r := f.checkWrite(); r != nil {
		return r
	}
	opts := f.options()
	for _, pf := range slices.Sorted(maps.Keys(hashes)) {
		if !opts.Enabled(pf) {
			return fail(NotConfiguredForFormat, "%s does not store %s hashes", f.label(), pf)
		}
		if !password.WellFormed(pf, hashes[pf]) {
			return fail(MalformedHashText, "%s: malformed %s hash", f.label(), pf)
		}
	}

	fin := f.finalize(OpSetPassword, nil)
	if fin.Failed() {
		return fin
	}
	f.mu.Lock()
	f.state.hashes = maps.Clone(hashes)
	f.state.plaintext, f.state.hasPlain = "", false
	f.mu.Unlock()
	return fin
}

// Clear removes the password. History is kept.
func (f *PasswordField) Clear() *Result {
	if r := f.checkWrite(); r != nil {
		return r
	}
	if !f.IsDefined() {
		return nil
	}
	fin := f.finalize(OpSetPassword, nil)
	if fin.Failed() {
		return fin
	}
	f.mu.Lock()
	f.state.hashes = nil
	f.state.plaintext, f.state.hasPlain = "", false
	f.mu.Unlock()
	return fin
}

// MatchPlaintext reports whether candidate is the stored password, trying
// the plaintext and then each hash strongest first. When only a hash is
// known and it proves the whole candidate, the plaintext is captured and
// missing required formats are generated from it.
func (f *PasswordField) MatchPlaintext(candidate string) bool {
	cur := f.snapshot()
	if cur.hasPlain {
		return subtle.ConstantTimeCompare([]byte(cur.plaintext), []byte(candidate)) == 1
	}

	matched := password.Format(0)
	for _, pf := range password.MatchOrder {
		h, ok := cur.hashes[pf]
		if ok && f.hasher().Verify(pf, h, candidate) {
			matched = pf
			break
		}
	}
	if matched == 0 {
		return false
	}
	if !matched.Covers(candidate) {
		return true
	}

	hashes, r := f.generate(candidate, f.options().Formats, cur.hashes)
	if r != nil {
		f.owner.store.log.Warn("passive capture failed", "field", f.label(), "error", r.String())
		return true
	}

	f.mu.Lock()
	if f.state.hashes[matched] != cur.hashes[matched] || f.state.hasPlain {
		f.mu.Unlock()
		return true
	}
	before := f.state.clone()
	f.state.hashes = hashes
	f.state.plaintext, f.state.hasPlain = candidate, true
	after := f.state.clone()
	f.mu.Unlock()

	f.owner.store.log.Debug("password captured", "field", f.label(), "matched", matched.String())
	f.owner.store.persistCaptured(f, before, after)
	return true
}

// replaceIf swaps in next when the field still holds prev.
func (f *PasswordField) replaceIf(prev, next passwordState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.equal(prev) {
		return false
	}
	f.state = next.clone()
	return true
}

func (f *PasswordField) holds(st passwordState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.equal(st)
}

// Password entries in the record: format, text and, for history entries,
// a timestamp. Format 0 is the plaintext.
const (
	pwFormatTag  protowire.Number = 1
	pwTextTag    protowire.Number = 2
	pwTimeTag    protowire.Number = 3
	pwPlaintext                   = 0
	pwHistoryTag                  = 0x7f
)

func (f *PasswordField) encode(w *fieldWriter) error {
	st := f.snapshot()
	opts := f.options()

	if w.version == codecLegacy {
		for pf := range st.hashes {
			if pf != password.FormatCrypt {
				return fmt.Errorf("%s: %w: %s hash", f.def.Name, ErrLegacyUnrepresentable, pf)
			}
		}
		w.values = append(w.values, []byte(st.hashes[password.FormatCrypt]))
		if st.hasPlain && opts.StorePlaintext {
			w.values = append(w.values, []byte(st.plaintext))
		}
		return nil
	}

	keepAll := true
	for _, pf := range opts.Formats {
		if _, ok := st.hashes[pf]; ok {
			keepAll = false
			break
		}
	}
	for _, pf := range slices.Sorted(maps.Keys(st.hashes)) {
		if !keepAll && !opts.Requires(pf) {
			continue
		}
		w.values = append(w.values, passwordEntry(uint64(pf), st.hashes[pf], 0))
	}
	if st.hasPlain && opts.StorePlaintext {
		w.values = append(w.values, passwordEntry(pwPlaintext, st.plaintext, 0))
	}
	if st.history != nil {
		for _, e := range st.history.Entries() {
			w.values = append(w.values, passwordEntry(pwHistoryTag, e.Hash, e.Time.UnixMilli()))
		}
	}
	return nil
}

func passwordEntry(format uint64, text string, ms int64) []byte {
	var b []byte
	b = protowire.AppendTag(b, pwFormatTag, protowire.VarintType)
	b = protowire.AppendVarint(b, format)
	b = protowire.AppendTag(b, pwTextTag, protowire.BytesType)
	b = protowire.AppendString(b, text)
	if ms != 0 {
		b = protowire.AppendTag(b, pwTimeTag, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(ms))
	}
	return b
}

func (f *PasswordField) decode(r *fieldReader) error {
	st := passwordState{hashes: make(map[password.Format]string)}

	if r.version == codecLegacy {
		if len(r.values) > 0 && len(r.values[0]) > 0 {
			st.hashes[password.FormatCrypt] = string(r.values[0])
		}
		if len(r.values) > 1 {
			st.plaintext, st.hasPlain = string(r.values[1]), true
		}
		f.mu.Lock()
		f.state = st
		f.mu.Unlock()
		return nil
	}

	var history []password.HistoryEntry
	for _, data := range r.values {
		format, text, ms, err := consumePasswordEntry(data)
		if err != nil {
			return fmt.Errorf("%s: %w", f.def.Name, err)
		}
		switch format {
		case pwPlaintext:
			st.plaintext, st.hasPlain = text, true
		case pwHistoryTag:
			history = append(history, password.HistoryEntry{Hash: text, Time: time.UnixMilli(ms).UTC()})
		default:
			st.hashes[password.Format(format)] = text
		}
	}
	st.history = password.NewHistoryFromEntries(history, f.historySize())

	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
	return nil
}

func consumePasswordEntry(b []byte) (format uint64, text string, ms int64, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, "", 0, ErrCorruptRecord
		}
		b = b[n:]
		switch {
		case num == pwFormatTag && typ == protowire.VarintType:
			format, n = protowire.ConsumeVarint(b)
		case num == pwTextTag && typ == protowire.BytesType:
			text, n = protowire.ConsumeString(b)
		case num == pwTimeTag && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			ms = protowire.DecodeZigZag(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return 0, "", 0, ErrCorruptRecord
		}
		b = b[n:]
	}
	return format, text, ms, nil
}

func (f *PasswordField) emit(d *dumper) error {
	st := f.snapshot()
	return d.password(f, st.hashes, st.plaintext, st.hasPlain && f.options().StorePlaintext)
}
