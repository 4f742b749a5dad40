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

package permutation

import "errors"

var (
	// ErrInvalidArgument is returned for negative dimensions and for data
	// that does not describe a bijection.
	ErrInvalidArgument = errors.New("permutation: invalid argument")

	// ErrOutOfRange is returned when evaluating outside [0, n).
	ErrOutOfRange = errors.New("permutation: index out of range")

	// ErrDimensionMismatch is returned when composing permutations of
	// different dimension.
	ErrDimensionMismatch = errors.New("permutation: dimension mismatch")
)
