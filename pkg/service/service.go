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

// Package service manages stored vaults: it enrolls new vaults under
// random IDs, persists them as CBOR records and throttles unlock attempts
// per vault.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/correlation"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/logging"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/metrics"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/ratelimit"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/validation"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

var (
	// ErrRateLimited is returned when a vault has no unlock attempts left
	// in the current window.
	ErrRateLimited = errors.New("service: rate limited")

	// ErrNotFound is returned for unknown vault IDs.
	ErrNotFound = errors.New("service: vault not found")

	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("service: invalid vault ID")

	// ErrInvalidRecord is returned when a stored record cannot be decoded.
	ErrInvalidRecord = errors.New("service: invalid record")

	// ErrInvalidLabel is returned for labels that cannot be stored.
	ErrInvalidLabel = errors.New("service: invalid label")
)

// Record is the stored form of a vault.
type Record struct {
	ID        string    `cbor:"1,keyasint" json:"id"`
	Label     string    `cbor:"2,keyasint,omitempty" json:"label,omitempty"`
	CreatedAt time.Time `cbor:"3,keyasint" json:"created_at"`
	Vault     []byte    `cbor:"4,keyasint" json:"-"`
}

// Info describes a stored vault without its secret material.
type Info struct {
	ID        string       `json:"id" yaml:"id"`
	Label     string       `json:"label,omitempty" yaml:"label,omitempty"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	Params    vault.Params `json:"params" yaml:"params"`
	Features  int          `json:"features" yaml:"features"`
	Field     string       `json:"field" yaml:"field"`
	Enrolled  bool         `json:"enrolled" yaml:"enrolled"`
	Encrypted bool         `json:"encrypted" yaml:"encrypted"`
	Size      int          `json:"size" yaml:"size"`
}

// Config configures a Service.
type Config struct {
	// Backend stores the vault records. Required.
	Backend storage.Backend

	// BackendName labels metrics, e.g. "memory" or "file".
	BackendName string

	// Limiter throttles unlock attempts. Nil disables throttling.
	Limiter *ratelimit.Limiter

	// Logger defaults to a discarding logger.
	Logger *logging.Logger

	// VaultOptions are applied to every vault the service creates or
	// loads.
	VaultOptions []vault.Option
}

// Service is safe for concurrent use. Operations on the same vault ID are
// not serialized against each other; the last write wins.
type Service struct {
	backend     storage.Backend
	backendName string
	limiter     *ratelimit.Limiter
	logger      *logging.Logger
	vaultOpts   []vault.Option
	enc         cbor.EncMode
	dec         cbor.DecMode
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("service: backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(nil)
	}
	if cfg.BackendName == "" {
		cfg.BackendName = "custom"
	}

	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	enc, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("service: cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("service: cbor decoder: %w", err)
	}

	logger := cfg.Logger.With("component", "service")
	opts := append([]vault.Option{vault.WithLogger(cfg.Logger)}, cfg.VaultOptions...)

	return &Service{
		backend:     cfg.Backend,
		backendName: cfg.BackendName,
		limiter:     cfg.Limiter,
		logger:      logger,
		vaultOpts:   opts,
		enc:         enc,
		dec:         dec,
	}, nil
}

// Enroll creates a vault for view, stores it under a new ID and returns
// the ID with the secret's constant term.
func (s *Service) Enroll(ctx context.Context, params vault.Params, label string, view quantize.View) (string, gf.Elem, error) {
	return s.enroll(ctx, params, label, func(v *vault.Vault) (gf.Elem, error) {
		return v.Enroll(view)
	})
}

// EnrollFeatures is Enroll for already quantized feature codes.
func (s *Service) EnrollFeatures(ctx context.Context, params vault.Params, label string, codes []uint32) (string, gf.Elem, error) {
	return s.enroll(ctx, params, label, func(v *vault.Vault) (gf.Elem, error) {
		return v.EnrollFeatures(codes)
	})
}

func (s *Service) enroll(ctx context.Context, params vault.Params, label string, lock func(*vault.Vault) (gf.Elem, error)) (id string, f0 gf.Elem, err error) {
	start := time.Now()
	ctx, cid := correlation.Ensure(ctx)
	defer func() { s.record(metrics.OpEnroll, start, err) }()

	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if err := validation.ValidateLabel(label); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidLabel, err)
	}
	v, err := vault.New(params, s.vaultOpts...)
	if err != nil {
		return "", 0, err
	}
	defer v.Clear()

	f0, err = lock(v)
	if err != nil {
		return "", 0, err
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(rec, v); err != nil {
		return "", 0, err
	}

	s.logger.Info("enrolled vault",
		"id", rec.ID,
		"label", validation.SanitizeForLog(label),
		"correlation_id", cid,
		"features", v.Size())
	s.updateCount()
	return rec.ID, f0, nil
}

// Open unlocks the vault with view and returns the constant term of the
// decoded polynomial. Attempts are rate limited per vault.
func (s *Service) Open(ctx context.Context, id string, view quantize.View, opts ...vault.Option) (gf.Elem, error) {
	res, err := s.open(ctx, id, func(ctx context.Context, v *vault.Vault) (*vault.DecodeResult, error) {
		return v.UnlockView(ctx, view, opts...)
	})
	if err != nil {
		return 0, err
	}
	res.Polynomial.Clear()
	return res.F0, nil
}

// OpenFeatures unlocks the vault with feature codes and returns the full
// decoding result.
func (s *Service) OpenFeatures(ctx context.Context, id string, codes []uint32, opts ...vault.Option) (*vault.DecodeResult, error) {
	return s.open(ctx, id, func(ctx context.Context, v *vault.Vault) (*vault.DecodeResult, error) {
		return v.Unlock(ctx, codes, opts...)
	})
}

func (s *Service) open(ctx context.Context, id string, unlock func(context.Context, *vault.Vault) (*vault.DecodeResult, error)) (res *vault.DecodeResult, err error) {
	start := time.Now()
	ctx, cid := correlation.Ensure(ctx)
	defer func() { s.record(metrics.OpOpen, start, err) }()

	v, err := s.unlockable(ctx, cid, id)
	if err != nil {
		return nil, err
	}
	defer v.Clear()

	res, err = unlock(ctx, v)
	if err != nil {
		return nil, err
	}
	metrics.RecordDecode(res.Iterations, res.Count)
	s.logger.Debug("opened vault",
		"id", id,
		"correlation_id", cid,
		"iterations", res.Iterations,
		"distinct", res.Distinct,
		"elapsed", time.Since(start))
	return res, nil
}

// unlockable consumes a rate limit token and loads the vault.
func (s *Service) unlockable(ctx context.Context, cid, id string) (*vault.Vault, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if !s.limiter.Allow(id) {
		metrics.RecordRateLimited()
		s.logger.Warn("unlock attempt rejected", "id", id, "correlation_id", cid)
		return nil, fmt.Errorf("%w: vault %s", ErrRateLimited, id)
	}
	_, v, err := s.load(id)
	return v, err
}

// Load returns the stored record and its vault.
func (s *Service) Load(id string) (rec *Record, v *vault.Vault, err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpGet, start, err) }()
	return s.load(id)
}

// Info describes a stored vault.
func (s *Service) Info(id string) (*Info, error) {
	rec, v, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	defer v.Clear()

	return &Info{
		ID:        rec.ID,
		Label:     rec.Label,
		CreatedAt: rec.CreatedAt,
		Params:    v.Params(),
		Features:  v.Size(),
		Field:     v.Field().String(),
		Enrolled:  v.IsEnrolled(),
		Encrypted: v.IsEncrypted(),
		Size:      len(rec.Vault),
	}, nil
}

// List returns the IDs of all stored vaults in sorted order.
func (s *Service) List() (ids []string, err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpList, start, err) }()
	return storage.ListVaults(s.backend)
}

// Delete removes a vault.
func (s *Service) Delete(id string) (err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpDelete, start, err) }()

	if err := validateID(id); err != nil {
		return err
	}
	if err := s.backend.Delete(storage.VaultPath(id)); err != nil {
		return mapStorageError(id, err)
	}
	s.limiter.Forget(id)
	s.logger.Info("deleted vault", "id", id)
	s.updateCount()
	return nil
}

// Encrypt encrypts a stored vault with passphrase.
func (s *Service) Encrypt(id string, passphrase []byte) (err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpEncrypt, start, err) }()
	return s.update(id, func(v *vault.Vault) error { return v.Encrypt(passphrase) })
}

// Decrypt decrypts a stored vault. A wrong passphrase is not detected
// here; the vault then fails to recover its secret when opened.
func (s *Service) Decrypt(id string, passphrase []byte) (err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpDecrypt, start, err) }()
	return s.update(id, func(v *vault.Vault) error { return v.Decrypt(passphrase) })
}

// Close closes the backend and stops the limiter.
func (s *Service) Close() error {
	s.limiter.Stop()
	return s.backend.Close()
}

func (s *Service) update(id string, fn func(*vault.Vault) error) error {
	rec, v, err := s.load(id)
	if err != nil {
		return err
	}
	defer v.Clear()

	if err := fn(v); err != nil {
		return err
	}
	return s.save(rec, v)
}

func (s *Service) load(id string) (*Record, *vault.Vault, error) {
	if err := validateID(id); err != nil {
		return nil, nil, err
	}
	data, err := s.backend.Get(storage.VaultPath(id))
	if err != nil {
		return nil, nil, mapStorageError(id, err)
	}

	var rec Record
	if err := s.dec.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, id, err)
	}
	if rec.ID != id {
		return nil, nil, fmt.Errorf("%w: record %s stored under %s", ErrInvalidRecord, rec.ID, id)
	}
	v, err := vault.Unpack(rec.Vault, len(rec.Vault), s.vaultOpts...)
	if err != nil {
		return nil, nil, err
	}
	return &rec, v, nil
}

func (s *Service) save(rec *Record, v *vault.Vault) error {
	packed, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	rec.Vault = packed
	data, err := s.enc.Marshal(rec)
	if err != nil {
		return fmt.Errorf("service: encode record %s: %w", rec.ID, err)
	}
	return s.backend.Put(storage.VaultPath(rec.ID), data, storage.DefaultOptions())
}

func (s *Service) record(op string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(op, s.backendName, errorType(err))
	}
	metrics.RecordOperation(op, s.backendName, status, time.Since(start).Seconds())
}

func (s *Service) updateCount() {
	ids, err := storage.ListVaults(s.backend)
	if err != nil {
		s.logger.MaybeError(err)
		return
	}
	metrics.SetVaultsTotal(s.backendName, float64(len(ids)))
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func mapStorageError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// errorType classifies err for the errors_total metric.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrInvalidLabel):
		return "invalid_label"
	case errors.Is(err, ErrInvalidRecord), errors.Is(err, vault.ErrInvalidFormat), errors.Is(err, vault.ErrAllocationFailure):
		return "invalid_format"
	case errors.Is(err, vault.ErrInsufficientFeatures):
		return "insufficient_features"
	case errors.Is(err, vault.ErrPreconditionViolation):
		return "precondition"
	case errors.Is(err, vault.ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
