package password

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	policy := &Policy{
		Enabled:          true,
		MinLength:        6,
		MaxLength:        12,
		BadChars:         " :",
		RequireUppercase: true,
		RequireDigit:     true,
	}

	tests := []struct {
		name     string
		password string
		want     ValidationErrorCode // 0 = valid
	}{
		{"valid", "Passw0rd", 0},
		{"too short", "Pa0", ErrTooShort},
		{"too long", "Passw0rdPassw0rd", ErrTooLong},
		{"multibyte counted as characters", "Pässw0rd", 0},
		{"forbidden colon", "Pass:w0rd", ErrForbiddenCharacter},
		{"no uppercase", "passw0rd", ErrNoUppercase},
		{"no digit", "Password", ErrNoDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.password)
			if tt.want == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.want, verr.Code)
		})
	}
}

func TestPolicyOKChars(t *testing.T) {
	p := &Policy{Enabled: true, OKChars: "abc123"}
	assert.NoError(t, p.CheckCharacters("abc1"))

	err := p.CheckCharacters("abd")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrForbiddenCharacter, verr.Code)
}

func TestDisabledPolicyAcceptsAnything(t *testing.T) {
	assert.NoError(t, DisabledPolicy().Validate(""))

	var nilPolicy *Policy
	assert.NoError(t, nilPolicy.Validate("x"))
}

func TestQualityCodes(t *testing.T) {
	assert.True(t, ErrNoDigit.IsQuality())
	assert.True(t, ErrRejected.IsQuality())
	assert.False(t, ErrTooShort.IsQuality())
	assert.False(t, ErrInHistory.IsQuality())
}

func TestPolicyMerge(t *testing.T) {
	base := DefaultPolicy()
	merged := base.Merge(&Policy{MinLength: 12, RequireSpecial: true, BadChars: "#"})

	assert.Equal(t, 12, merged.MinLength)
	assert.True(t, merged.RequireSpecial)
	assert.True(t, merged.RequireUppercase, "override never removes a requirement")
	assert.Equal(t, "#", merged.BadChars)
	assert.Equal(t, 8, base.MinLength, "base is not modified")

	assert.Equal(t, base, base.Merge(nil))
}

func TestHistory(t *testing.T) {
	h := NewHistory(2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, h.Add("first", now))
	require.NoError(t, h.Add("second", now.Add(time.Hour)))
	assert.True(t, h.Contains("first"))

	require.NoError(t, h.Add("third", now.Add(2*time.Hour)))
	assert.Equal(t, 2, h.Count())
	assert.False(t, h.Contains("first"), "oldest entry is evicted")
	assert.True(t, h.Contains("second"))
	assert.True(t, h.Contains("third"))

	entries := h.Entries()
	assert.True(t, entries[0].Time.After(entries[1].Time), "newest first")
	for _, e := range entries {
		assert.True(t, WellFormed(FormatSSHA, e.Hash))
	}

	clone := h.Clone()
	require.NoError(t, clone.Add("fourth", now.Add(3*time.Hour)))
	assert.False(t, h.Contains("fourth"))
	assert.False(t, h.Equal(clone))
	assert.True(t, h.Equal(h.Clone()))

	h.SetMaxCount(1)
	assert.Equal(t, 1, h.Count())
	assert.True(t, h.Contains("third"))
}

func TestHistoryDisabled(t *testing.T) {
	h := NewHistory(-3)
	require.NoError(t, h.Add("x", time.Now()))
	assert.Equal(t, 0, h.Count())
	assert.True(t, h.Equal(nil))
}

func TestNewHistoryFromEntries(t *testing.T) {
	entries := []HistoryEntry{{Hash: "a"}, {Hash: "b"}, {Hash: "c"}}

	assert.Equal(t, 2, NewHistoryFromEntries(entries, 2).Count())
	assert.Equal(t, 3, NewHistoryFromEntries(entries, 5).Count())
	assert.Equal(t, 0, NewHistoryFromEntries(entries, 0).Count())
}

func TestValidatorOrderAndLeniency(t *testing.T) {
	policy := &Policy{Enabled: true, MinLength: 4, RequireDigit: true}
	history := NewHistory(3)
	require.NoError(t, history.Add("used1", time.Now()))

	v := NewValidator(policy, func(pw string) error {
		if pw == "dict1" {
			return errors.New("password is a dictionary word")
		}
		return nil
	})

	tests := []struct {
		name      string
		password  string
		lenient   bool
		wantErr   ValidationErrorCode
		wantWarns []ValidationErrorCode
	}{
		{"ok", "good1", false, 0, nil},
		{"length is never lenient", "a1", true, ErrTooShort, nil},
		{"quality strict", "nodigit", false, ErrNoDigit, nil},
		{"quality lenient", "nodigit", true, 0, []ValidationErrorCode{ErrNoDigit}},
		{"external strict", "dict1", false, ErrRejected, nil},
		{"reuse strict", "used1", false, ErrInHistory, nil},
		{"reuse lenient", "used1", true, 0, []ValidationErrorCode{ErrInHistory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warns, err := v.Validate(tt.password, history, tt.lenient)
			if tt.wantErr != 0 {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantErr, verr.Code)
				return
			}
			require.NoError(t, err)
			var codes []ValidationErrorCode
			for _, w := range warns {
				codes = append(codes, w.Code)
			}
			assert.Equal(t, tt.wantWarns, codes)
		})
	}
}

func TestManager(t *testing.T) {
	m := NewManager(&Policy{Enabled: true, MinLength: 8}, nil)
	m.SetFieldPolicy(" User.Password ", &Policy{MinLength: 12})

	assert.Equal(t, 12, m.GetPolicy("user.password").MinLength)
	assert.Equal(t, 8, m.GetPolicy("admin.password").MinLength)
	assert.Equal(t, []string{"user.password"}, m.ListFieldPolicies())
	assert.NotNil(t, m.Hasher())

	m.SetFieldPolicy("user.password", nil)
	assert.Empty(t, m.ListFieldPolicies())

	m.SetGlobalPolicy(nil)
	assert.Equal(t, DefaultPolicy(), m.GetGlobalPolicy())

	_, err := m.Validator("user.password", nil).Validate("short", nil, false)
	assert.Error(t, err)
}
