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

package gf

import "errors"

var (
	// ErrInvalidDegree is returned when a field degree is outside [1, MaxDegree].
	ErrInvalidDegree = errors.New("gf: invalid field degree")

	// ErrReducible is returned when a defining polynomial is not irreducible.
	ErrReducible = errors.New("gf: defining polynomial is reducible")

	// ErrDivisionByZero is returned when dividing by or inverting zero.
	ErrDivisionByZero = errors.New("gf: division by zero")

	// ErrDuplicateAbscissa is returned by interpolation when two points share
	// the same x coordinate.
	ErrDuplicateAbscissa = errors.New("gf: duplicate abscissa")

	// ErrNotInField is returned when a value is not an element of the field.
	ErrNotInField = errors.New("gf: element not in field")

	// ErrFieldMismatch is returned when combining polynomials over different
	// fields.
	ErrFieldMismatch = errors.New("gf: field mismatch")
)
