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

package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/kdf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/metrics"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/ratelimit"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage/file"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

func testParams() vault.Params {
	p := vault.DefaultParams(300, 400, 500)
	p.Iterations = 2000
	return p
}

func testView() quantize.View {
	var view quantize.View
	for j := range 6 {
		for i := range 5 {
			view = append(view, quantize.Minutia{
				X:       float64(20 + 60*i),
				Y:       float64(20 + 60*j),
				Angle:   float64(i+j) * 0.7,
				Quality: 100 - len(view),
			})
		}
	}
	return view
}

func newTestService(t *testing.T, backend storage.Backend, limiter *ratelimit.Limiter) *Service {
	t.Helper()
	resolver, err := rand.NewResolver(&rand.Config{Mode: rand.ModeSeeded, Seed: bytes.Repeat([]byte{3}, rand.SeedSize)})
	require.NoError(t, err)

	s, err := New(Config{
		Backend:     backend,
		BackendName: "test",
		Limiter:     limiter,
		VaultOptions: []vault.Option{
			vault.WithResolver(resolver),
			vault.WithKDFCost(kdf.Cost{Time: 1, Memory: kdf.MinArgon2Memory, Threads: 1}),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestEnrollOpen(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, storage.NewMemory(), nil)
	view := testView()

	id, f0, err := s.Enroll(ctx, testParams(), "right index", view)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	got, err := s.Open(ctx, id, view, vault.WithRand(rand.NewSeeded(1)))
	require.NoError(t, err)
	assert.Equal(t, f0, got)

	info, err := s.Info(id)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "right index", info.Label)
	assert.True(t, info.Enrolled)
	assert.False(t, info.Encrypted)
	assert.Equal(t, testParams(), info.Params)
	assert.False(t, info.CreatedAt.IsZero())
	assert.Positive(t, info.Size)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestOpenFeatures(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, storage.NewMemory(), nil)
	codes := []uint32{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}

	id, f0, err := s.EnrollFeatures(ctx, testParams(), "", codes)
	require.NoError(t, err)

	res, err := s.OpenFeatures(ctx, id, codes, vault.WithRand(rand.NewSeeded(2)))
	require.NoError(t, err)
	assert.Equal(t, f0, res.F0)
	assert.Equal(t, res.Iterations, res.Count)
}

func decodeSamples(t *testing.T) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, metrics.DecodeIterations.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestOpen_RecordsDecodeMetrics(t *testing.T) {
	metrics.Enable()
	ctx := context.Background()
	s := newTestService(t, storage.NewMemory(), nil)
	view := testView()

	id, _, err := s.Enroll(ctx, testParams(), "", view)
	require.NoError(t, err)

	before := decodeSamples(t)
	_, err = s.Open(ctx, id, view, vault.WithRand(rand.NewSeeded(4)))
	require.NoError(t, err)
	assert.Equal(t, before+1, decodeSamples(t), "open by view")

	codes, err := mustQuantizer(t).Quantize(view, testParams().MaxFeatures)
	require.NoError(t, err)
	_, err = s.OpenFeatures(ctx, id, codes, vault.WithRand(rand.NewSeeded(5)))
	require.NoError(t, err)
	assert.Equal(t, before+2, decodeSamples(t), "open by codes")
}

func mustQuantizer(t *testing.T) quantize.Quantizer {
	t.Helper()
	v, err := vault.New(testParams())
	require.NoError(t, err)
	return v.Quantizer()
}

func TestEncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, storage.NewMemory(), nil)
	view := testView()

	id, f0, err := s.Enroll(ctx, testParams(), "", view)
	require.NoError(t, err)

	require.NoError(t, s.Encrypt(id, []byte("pw")))
	info, err := s.Info(id)
	require.NoError(t, err)
	assert.True(t, info.Encrypted)

	_, err = s.Open(ctx, id, view)
	assert.ErrorIs(t, err, vault.ErrStillEncrypted)

	require.NoError(t, s.Decrypt(id, []byte("pw")))
	got, err := s.Open(ctx, id, view, vault.WithRand(rand.NewSeeded(3)))
	require.NoError(t, err)
	assert.Equal(t, f0, got)
}

func TestRateLimited(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(&ratelimit.Config{Enabled: true, AttemptsPerMinute: 1, Burst: 2})
	s := newTestService(t, storage.NewMemory(), limiter)
	view := testView()

	id, _, err := s.Enroll(ctx, testParams(), "", view)
	require.NoError(t, err)
	other, _, err := s.Enroll(ctx, testParams(), "", view)
	require.NoError(t, err)

	for range 2 {
		_, err = s.Open(ctx, id, view)
		require.NoError(t, err)
	}
	_, err = s.Open(ctx, id, view)
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = s.Open(ctx, other, view)
	assert.NoError(t, err, "limits are per vault")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, storage.NewMemory(), nil)

	id, _, err := s.Enroll(ctx, testParams(), "", testView())
	require.NoError(t, err)

	require.NoError(t, s.Delete(id))
	assert.ErrorIs(t, s.Delete(id), ErrNotFound)

	_, err = s.Info(id)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestInvalidIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, storage.NewMemory(), nil)

	_, err := s.Open(ctx, "../etc/passwd", testView())
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, s.Delete("nope"), ErrInvalidID)
	_, err = s.Info(uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidLabel(t *testing.T) {
	s := newTestService(t, storage.NewMemory(), nil)

	_, _, err := s.Enroll(context.Background(), testParams(), "alice\n[ERROR] forged", testView())
	assert.ErrorIs(t, err, ErrInvalidLabel)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCorruptRecord(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend, nil)
	id := uuid.NewString()

	require.NoError(t, backend.Put(storage.VaultPath(id), []byte{0xff, 0x00}, nil))
	_, err := s.Info(id)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	data, err := s.enc.Marshal(&Record{ID: uuid.NewString(), Vault: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, backend.Put(storage.VaultPath(id), data, nil))
	_, err = s.Info(id)
	assert.ErrorIs(t, err, ErrInvalidRecord, "record ID must match its key")

	data, err = s.enc.Marshal(&Record{ID: id, Vault: []byte("FVBK")})
	require.NoError(t, err)
	require.NoError(t, backend.Put(storage.VaultPath(id), data, nil))
	_, err = s.Info(id)
	assert.ErrorIs(t, err, vault.ErrInvalidFormat)
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	backend, err := file.New(fs, "/vaults")
	require.NoError(t, err)
	s := newTestService(t, backend, nil)
	view := testView()

	id, f0, err := s.Enroll(ctx, testParams(), "", view)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/vaults/vaults/"+id+".fv")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Open(ctx, id, view, vault.WithRand(rand.NewSeeded(4)))
	require.NoError(t, err)
	assert.Equal(t, f0, got)
}

func TestCancelledContext(t *testing.T) {
	s := newTestService(t, storage.NewMemory(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Enroll(ctx, testParams(), "", testView())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Open(ctx, uuid.NewString(), testView())
	assert.ErrorIs(t, err, context.Canceled)
}
