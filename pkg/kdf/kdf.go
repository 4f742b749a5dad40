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

// Package kdf derives symmetric keys from passphrases for encrypting the
// locked polynomial of a vault at rest.
package kdf

import (
	"errors"
)

// Algorithm represents the key derivation function algorithm type
type Algorithm string

const (
	// AlgorithmArgon2i represents Argon2i variant (optimized against side-channel attacks)
	AlgorithmArgon2i Algorithm = "Argon2i"

	// AlgorithmArgon2id represents Argon2id variant (hybrid of Argon2i and Argon2d)
	AlgorithmArgon2id Algorithm = "Argon2id"
)

// String returns the string representation of the KDF algorithm
func (a Algorithm) String() string {
	return string(a)
}

// Params contains parameters for key derivation
type Params struct {
	// Salt is the cryptographic salt (random and unique per encryption)
	Salt []byte

	// Memory is the memory cost in KiB
	Memory uint32

	// Threads is the number of parallel threads
	Threads uint8

	// Time is the time cost/iterations
	Time uint32

	// KeyLength is the desired output key length in bytes
	KeyLength int
}

// Cost holds the tunable work factors of Argon2.
type Cost struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultCost is used when encrypting vaults: 3 passes over 64 MiB with
// 4 lanes.
var DefaultCost = Cost{Time: 3, Memory: 64 * 1024, Threads: 4}

// Params returns derivation parameters for the given salt and key length.
func (c Cost) Params(salt []byte, keyLength int) *Params {
	return &Params{
		Salt:      salt,
		Memory:    c.Memory,
		Threads:   c.Threads,
		Time:      c.Time,
		KeyLength: keyLength,
	}
}

// Deriver derives keys from passphrases.
type Deriver interface {
	// DeriveKey derives a key from the input key material using the specified parameters
	DeriveKey(ikm []byte, params *Params) ([]byte, error)

	// Algorithm returns the KDF algorithm this deriver implements
	Algorithm() Algorithm

	// ValidateParams returns an error if parameters are invalid
	ValidateParams(params *Params) error
}

// Common errors
var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidMemory indicates the memory cost is invalid
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the thread count is invalid
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")
)
