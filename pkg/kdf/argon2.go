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

package kdf

import (
	"golang.org/x/crypto/argon2"
)

const (
	// MinArgon2SaltLength is the minimum recommended salt length in bytes
	MinArgon2SaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024 // 8 MiB

	// MinArgon2Time is the minimum time cost
	MinArgon2Time = 1

	// MinArgon2Threads is the minimum number of threads
	MinArgon2Threads = 1
)

// Argon2 implements Deriver using Argon2.
type Argon2 struct {
	variant Algorithm
}

var _ Deriver = (*Argon2)(nil)

// NewArgon2 creates a deriver for the given variant. Anything other than
// AlgorithmArgon2i selects Argon2id.
func NewArgon2(variant Algorithm) *Argon2 {
	if variant != AlgorithmArgon2i {
		variant = AlgorithmArgon2id
	}
	return &Argon2{variant: variant}
}

// NewArgon2id creates an Argon2id deriver.
func NewArgon2id() *Argon2 {
	return &Argon2{variant: AlgorithmArgon2id}
}

// DeriveKey derives a key using Argon2
func (a *Argon2) DeriveKey(ikm []byte, params *Params) ([]byte, error) {
	if err := a.ValidateParams(params); err != nil {
		return nil, err
	}
	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	if a.variant == AlgorithmArgon2i {
		return argon2.Key(ikm, params.Salt, params.Time, params.Memory, params.Threads, uint32(params.KeyLength)), nil
	}
	return argon2.IDKey(ikm, params.Salt, params.Time, params.Memory, params.Threads, uint32(params.KeyLength)), nil
}

// Algorithm returns the KDF algorithm
func (a *Argon2) Algorithm() Algorithm {
	return a.variant
}

// ValidateParams validates Argon2 parameters
func (a *Argon2) ValidateParams(params *Params) error {
	if params == nil || params.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}
	if len(params.Salt) < MinArgon2SaltLength {
		return ErrInvalidSalt
	}
	if params.Memory < MinArgon2Memory {
		return ErrInvalidMemory
	}
	if params.Time < MinArgon2Time {
		return ErrInvalidTime
	}
	if params.Threads < MinArgon2Threads {
		return ErrInvalidThreads
	}
	return nil
}
