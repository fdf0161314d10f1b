package ref

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Ref
		wantErr bool
	}{
		{"simple", "3:12", New(3, 12), false},
		{"spaces", " 256:1 ", New(256, 1), false},
		{"no colon", "312", Nil, true},
		{"zero num", "3:0", Nil, true},
		{"type overflow", "70000:1", Nil, true},
		{"garbage", "a:b", Nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRef))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func TestBytesOrdering(t *testing.T) {
	a := New(1, 500)
	b := New(2, 1)

	assert.True(t, Less(a, b))
	assert.Less(t, string(a.Bytes()), string(b.Bytes()))

	back, err := FromBytes(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, b, back)

	_, err = FromBytes([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortBytes)
}

func TestIsNil(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.False(t, New(1, 1).IsNil())
}

func mustParse(t *testing.T, s string) Ref {
	t.Helper()
	r, err := Parse(s)
	require.NoError(t, err)
	return r
}
