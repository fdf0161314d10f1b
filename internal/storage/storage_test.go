package storage

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

var backends = map[string]func(t *testing.T) Backend{
	"memory": func(t *testing.T) Backend { return NewMemory() },
	"badger": func(t *testing.T) Backend {
		b, err := Open(Options{Kind: "badger", Path: filepath.Join(t.TempDir(), "badger")})
		require.NoError(t, err)
		return b
	},
	"sqlite": func(t *testing.T) Backend {
		b, err := Open(Options{Kind: "sqlite", Path: filepath.Join(t.TempDir(), "sqlite", "store.db"), SyncWrites: true})
		require.NoError(t, err)
		return b
	},
}

func loadAll(t *testing.T, b Backend) []Record {
	t.Helper()
	var got []Record
	require.NoError(t, b.Load(context.Background(), func(rec Record) error {
		got = append(got, rec)
		return nil
	}))
	sort.Slice(got, func(i, j int) bool { return ref.Less(got[i].Ref, got[j].Ref) })
	return got
}

func TestBackends(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			defer b.Close()

			assert.Empty(t, loadAll(t, b))

			a, c, d := ref.New(1, 1), ref.New(1, 2), ref.New(4, 70000)
			require.NoError(t, b.Apply(ctx, []Record{
				{Ref: a, Data: []byte("alice")},
				{Ref: c, Data: []byte("carol")},
				{Ref: d, Data: []byte{0, 1, 2}},
			}, nil))

			require.NoError(t, b.Apply(ctx, []Record{{Ref: a, Data: []byte("alice2")}}, []ref.Ref{c}))

			got := loadAll(t, b)
			require.Len(t, got, 2)
			assert.Equal(t, Record{Ref: a, Data: []byte("alice2")}, got[0])
			assert.Equal(t, Record{Ref: d, Data: []byte{0, 1, 2}}, got[1])

			assert.NoError(t, b.Apply(ctx, nil, []ref.Ref{ref.New(9, 9)}), "deleting a missing record")
		})
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()

	for _, kind := range []string{"badger", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), kind)
			b, err := Open(Options{Kind: kind, Path: path})
			require.NoError(t, err)
			require.NoError(t, b.Apply(ctx, []Record{{Ref: ref.New(2, 5), Data: []byte("wheel")}}, nil))
			require.NoError(t, b.Close())

			b, err = Open(Options{Kind: kind, Path: path})
			require.NoError(t, err)
			defer b.Close()

			got := loadAll(t, b)
			require.Len(t, got, 1)
			assert.Equal(t, "wheel", string(got[0].Data))
		})
	}
}

func TestLoadStopsOnCallbackError(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Apply(context.Background(), []Record{{Ref: ref.New(1, 1)}, {Ref: ref.New(1, 2)}}, nil))

	calls := 0
	err := m.Load(context.Background(), func(Record) error {
		calls++
		return ErrCorrupt
	})
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, 1, calls)
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Apply(context.Background(), nil, nil), ErrClosed)
	assert.ErrorIs(t, m.Load(context.Background(), func(Record) error { return nil }), ErrClosed)
}

func TestMemoryCopiesData(t *testing.T) {
	m := NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Apply(context.Background(), []Record{{Ref: ref.New(1, 1), Data: data}}, nil))
	data[0] = 'x'
	assert.Equal(t, "abc", string(loadAll(t, m)[0].Data))
	assert.Equal(t, 1, m.Len())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(Options{Kind: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(Options{Kind: "badger"})
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = Open(Options{Kind: "sqlite"})
	assert.ErrorIs(t, err, ErrNoPath)

	b, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)
}
