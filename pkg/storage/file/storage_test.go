// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fuzzyvault.
//
// go-fuzzyvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package file

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage"
)

func newTestStorage(t *testing.T) (*FileStorage, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	require.NoError(t, err)
	return s, fs
}

func TestNew(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "")
	assert.Error(t, err)

	s, fs := newTestStorage(t)
	require.NotNil(t, s)
	info, err := fs.Stat("/data")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileStorage_PutGet(t *testing.T) {
	s, fs := newTestStorage(t)

	require.NoError(t, s.Put("vaults/a.fv", []byte("one"), nil))
	got, err := s.Get("vaults/a.fv")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	info, err := fs.Stat("/data/vaults/a.fv")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	require.NoError(t, s.Put("vaults/a.fv", []byte("two"), &storage.Options{Permissions: 0640}))
	got, err = s.Get("vaults/a.fv")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	info, err = fs.Stat("/data/vaults/a.fv")
	require.NoError(t, err)
	assert.Equal(t, "-rw-r-----", info.Mode().Perm().String())

	ok, err := s.Exists("vaults/a.fv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStorage_Missing(t *testing.T) {
	s, _ := newTestStorage(t)

	_, err := s.Get("vaults/none.fv")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete("vaults/none.fv"), storage.ErrNotFound)

	ok, err := s.Exists("vaults/none.fv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStorage_ListDelete(t *testing.T) {
	s, _ := newTestStorage(t)
	for _, k := range []string{"vaults/b.fv", "vaults/a.fv", "other/c"} {
		require.NoError(t, s.Put(k, []byte(k), nil))
	}

	keys, err := s.List("vaults/")
	require.NoError(t, err)
	assert.Equal(t, []string{"vaults/a.fv", "vaults/b.fv"}, keys)

	ids, err := storage.ListVaults(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete("vaults/a.fv"))
	keys, err = s.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"other/c", "vaults/b.fv"}, keys)
}

func TestFileStorage_InvalidKeys(t *testing.T) {
	s, _ := newTestStorage(t)

	for _, key := range []string{"", "/etc/passwd", "../escape", "vaults/../../x", "a//b", "./a", "a\x00b", "vaults/.tmp-1"} {
		t.Run(key, func(t *testing.T) {
			assert.ErrorIs(t, s.Put(key, []byte("x"), nil), storage.ErrInvalidKey)
			_, err := s.Get(key)
			assert.ErrorIs(t, err, storage.ErrInvalidKey)
		})
	}
}

func TestFileStorage_Closed(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.Put("k", []byte("v"), nil))
	require.NoError(t, s.Close())

	_, err := s.Get("k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Put("k", nil, nil), storage.ErrClosed)
	_, err = s.List("")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
