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

package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameters indicates invalid vault or decoder parameters
	ErrInvalidParameters = errors.New("vault: invalid parameters")

	// ErrOutOfEntropyRange indicates more unlocking points than the index
	// sampler can address
	ErrOutOfEntropyRange = errors.New("vault: point count exceeds sampler range")

	// ErrPreconditionViolation indicates the vault is in the wrong state for
	// the requested operation
	ErrPreconditionViolation = errors.New("vault: precondition violation")

	// ErrNotEnrolled indicates the vault does not protect a template
	ErrNotEnrolled = fmt.Errorf("%w: not enrolled", ErrPreconditionViolation)

	// ErrStillEncrypted indicates the locked polynomial must be decrypted first
	ErrStillEncrypted = fmt.Errorf("%w: encrypted", ErrPreconditionViolation)

	// ErrNotEncrypted indicates decryption was requested on a plaintext vault
	ErrNotEncrypted = fmt.Errorf("%w: not encrypted", ErrPreconditionViolation)

	// ErrAlreadyEnrolled indicates the vault must be cleared before enrolling
	ErrAlreadyEnrolled = fmt.Errorf("%w: already enrolled", ErrPreconditionViolation)

	// ErrUnsupportedConfiguration indicates a slow-down factor other than 1
	ErrUnsupportedConfiguration = errors.New("vault: unsupported configuration")

	// ErrAllocationFailure indicates a size derived from input exceeds the
	// supported bounds
	ErrAllocationFailure = errors.New("vault: allocation failure")

	// ErrInvalidFormat indicates malformed vault bytes
	ErrInvalidFormat = errors.New("vault: invalid format")

	// ErrBufferTooSmall indicates the destination buffer cannot hold the vault
	ErrBufferTooSmall = errors.New("vault: buffer too small")

	// ErrInsufficientFeatures indicates fewer distinct features than the
	// secret size
	ErrInsufficientFeatures = errors.New("vault: insufficient features")

	// ErrNoIterations indicates a decoder iteration budget of zero
	ErrNoIterations = errors.New("vault: no decoding iterations")
)

// Error wraps an underlying error with the operation that failed
type Error struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vault.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// opError attaches op to err unless err is nil.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// errorf creates a new Error
func errorf(op string, format string, args ...any) error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf(format, args...),
	}
}
